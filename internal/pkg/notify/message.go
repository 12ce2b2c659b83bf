package notify

import (
	"fmt"
	"strings"
)

// FormatBRL renders minor units as "R$ 150.00".
func FormatBRL(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%sR$ %d.%02d", sign, cents/100, cents%100)
}

func PaymentConfirmedMessage(amountCents int64) string {
	return fmt.Sprintf(`✅ *Pagamento confirmado!*

Recebemos o seu pagamento de %s.

Obrigado pela preferência!`, FormatBRL(amountCents))
}

// NormalizePhone keeps digits only and prefixes "+". Brazilian numbers
// without a country code get 55.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if !strings.HasPrefix(strings.TrimSpace(phone), "+") && (len(digits) == 10 || len(digits) == 11) {
		digits = "55" + digits
	}
	return "+" + digits
}
