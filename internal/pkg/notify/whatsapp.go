package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioBaseURL = "https://api.twilio.com"

type Sender interface {
	Send(ctx context.Context, to string, body string) error
}

// WhatsAppSender delivers messages through the Twilio Messages API using
// WhatsApp addresses.
type WhatsAppSender struct {
	httpClient *http.Client
	baseURL    string
	accountSID string
	authToken  string
	from       string
}

func NewWhatsAppSender(httpClient *http.Client, baseURL, accountSID, authToken, from string) *WhatsAppSender {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = twilioBaseURL
	}
	return &WhatsAppSender{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
	}
}

func whatsAppAddress(phone string) string {
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	return "whatsapp:" + NormalizePhone(phone)
}

func (s *WhatsAppSender) Send(ctx context.Context, to string, body string) error {
	form := url.Values{}
	form.Set("To", whatsAppAddress(to))
	form.Set("From", whatsAppAddress(s.from))
	form.Set("Body", body)

	httpRequest, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID),
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	httpRequest.SetBasicAuth(s.accountSID, s.authToken)
	httpRequest.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, err := s.httpClient.Do(httpRequest)
	if err != nil {
		return fmt.Errorf("httpClient.Do: %w", err)
	}
	defer response.Body.Close()
	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("io.ReadAll(response.Body): %w", err)
	}

	if response.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("httpClient.Do: returned status %d: %s", response.StatusCode, string(responseBody))
	}
	return nil
}
