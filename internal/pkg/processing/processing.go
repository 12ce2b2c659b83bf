package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/andrey-berenda/locadora/internal/pkg/models"
)

const DefaultBaseURL = "https://api.asaas.com"

type Store interface {
	PaymentLinkCreate(ctx context.Context, l models.PaymentLink) (*models.PaymentLink, error)
}

type Processor interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (*models.PaymentLink, error)
	GetPayment(ctx context.Context, externalID string) (*PaymentResponse, error)
}

type asaasProcessor struct {
	store      Store
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// PaymentRequest describes a charge to issue for a customer already
// registered at the provider.
type PaymentRequest struct {
	CustomerID    string
	AmountCents   int64
	DueDate       time.Time
	Description   string
	BillingType   string
	TransactionID *string
	CustomerPhone *string
}

type CreatePaymentRequest struct {
	Customer          string  `json:"customer"`
	BillingType       string  `json:"billingType"`
	Value             float64 `json:"value"`
	DueDate           string  `json:"dueDate"`
	Description       string  `json:"description,omitempty"`
	ExternalReference string  `json:"externalReference,omitempty"`
}

type PaymentResponse struct {
	ID          string  `json:"id"`
	Customer    string  `json:"customer"`
	Status      string  `json:"status"`
	Value       float64 `json:"value"`
	NetValue    float64 `json:"netValue"`
	BillingType string  `json:"billingType"`
	DueDate     string  `json:"dueDate"`
	InvoiceURL  string  `json:"invoiceUrl"`
}

func New(store Store, httpClient *http.Client, apiKey string, baseURL string) Processor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &asaasProcessor{
		store:      store,
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

func (p *asaasProcessor) CreatePayment(ctx context.Context, req PaymentRequest) (*models.PaymentLink, error) {
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %d", req.AmountCents)
	}
	billingType := req.BillingType
	if billingType == "" {
		billingType = "PIX"
	}
	body := CreatePaymentRequest{
		Customer:    req.CustomerID,
		BillingType: billingType,
		Value:       float64(req.AmountCents) / 100,
		DueDate:     req.DueDate.Format("2006-01-02"),
		Description: req.Description,
	}
	if req.TransactionID != nil {
		body.ExternalReference = *req.TransactionID
	}

	resp := PaymentResponse{}
	if err := p.do(ctx, http.MethodPost, "/v3/payments", body, &resp); err != nil {
		return nil, err
	}

	link := models.PaymentLink{
		ExternalID:    resp.ID,
		Provider:      models.PaymentProviderAsaas,
		Status:        models.PaymentStatusPending,
		AmountCents:   req.AmountCents,
		Description:   req.Description,
		CustomerPhone: req.CustomerPhone,
		TransactionID: req.TransactionID,
	}
	if resp.InvoiceURL != "" {
		link.InvoiceURL = &resp.InvoiceURL
	}

	created, err := p.store.PaymentLinkCreate(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("store.PaymentLinkCreate: %w", err)
	}
	return created, nil
}

func (p *asaasProcessor) GetPayment(ctx context.Context, externalID string) (*PaymentResponse, error) {
	resp := PaymentResponse{}
	if err := p.do(ctx, http.MethodGet, "/v3/payments/"+externalID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (p *asaasProcessor) do(ctx context.Context, method string, path string, in any, out any) error {
	var reader io.Reader
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("json.Marshal: %w", err)
		}
		reader = bytes.NewReader(body)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("access_token", p.apiKey)
	if method == http.MethodPost {
		httpRequest.Header.Set("Idempotency-Key", uuid.New().String())
	}

	response, err := p.httpClient.Do(httpRequest)
	if err != nil {
		return fmt.Errorf("httpClient.Do: %w", err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("io.ReadAll(response.Body): %w", err)
	}

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("httpClient.Do: returned status %d: %s", response.StatusCode, string(responseBody))
	}

	if err = json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("json.Unmarshal(responseBody): %w", err)
	}
	return nil
}
