package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andrey-berenda/locadora/internal/pkg/log"
	"github.com/andrey-berenda/locadora/internal/pkg/models"
	"github.com/andrey-berenda/locadora/internal/pkg/notify"
	"github.com/andrey-berenda/locadora/internal/pkg/storage"
)

const tokenHeader = "asaas-access-token"

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "authorization, x-client-info, apikey, content-type",
}

type LinkStore interface {
	PaymentLinkGetByExternalID(
		ctx context.Context,
		provider models.PaymentProvider,
		externalID string,
	) (*models.PaymentLink, error)
	PaymentLinkMarkReceived(ctx context.Context, linkID uuid.UUID, paidAt time.Time, rawPayload []byte) error
	PaymentLinkSetConfirmationSent(ctx context.Context, linkID uuid.UUID) error
}

type Ledger interface {
	TransactionMarkPaid(ctx context.Context, transactionID string, paidAt time.Time) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, m notify.Message) error
}

type Request struct {
	Method  string
	Headers map[string]string
	Body    []byte
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

type Option func(*Reconciler)

// WithToken makes the reconciler reject requests whose access token header
// does not match.
func WithToken(token string) Option {
	return func(r *Reconciler) { r.token = token }
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// Reconciler applies provider payment events to payment links, the ledger and
// customer notifications. It keeps no state between calls.
type Reconciler struct {
	links      LinkStore
	ledger     Ledger
	dispatcher Dispatcher
	logger     *zap.SugaredLogger
	token      string
	now        func() time.Time
}

func New(links LinkStore, ledger Ledger, dispatcher Dispatcher, logger *zap.SugaredLogger, opts ...Option) *Reconciler {
	r := &Reconciler{
		links:      links,
		ledger:     ledger,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

const linkNotFoundMessage = "Payment link not found"

var errLinkNotFound = errors.New("payment link not found")

func (r *Reconciler) Handle(ctx context.Context, req Request) Response {
	if req.Method == http.MethodOptions {
		return Response{StatusCode: http.StatusOK, Headers: headers()}
	}

	if r.token != "" && header(req.Headers, tokenHeader) != r.token {
		return errorResponse(http.StatusUnauthorized, "Unauthorized")
	}

	err := r.Reconcile(ctx, req.Body)
	switch {
	case err == nil:
		return jsonResponse(http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, errLinkNotFound):
		return errorResponse(http.StatusNotFound, linkNotFoundMessage)
	default:
		r.logger.Errorf("reconcile: %v", err)
		return errorResponse(http.StatusInternalServerError, err.Error())
	}
}

// Reconcile processes one event body. Events of other kinds without a payment
// are acknowledged untouched. Only a missing payment link or a fault
// before the link update produce an error; ledger and notification failures
// are logged and absorbed.
func (r *Reconciler) Reconcile(ctx context.Context, body []byte) error {
	evt, err := ParseEvent(body)
	if err != nil {
		return err
	}
	payment := evt.Payment()
	if payment.ID == "" {
		r.logger.Infow("event without payment ignored", "event", evt.Kind())
		return nil
	}
	logger := r.logger.With(log.ExternalID(payment.ID), zap.String("event", evt.Kind()))

	link, err := r.links.PaymentLinkGetByExternalID(ctx, models.PaymentProviderAsaas, payment.ID)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		logger.Warn("payment link not found")
		return errLinkNotFound
	default:
		return fmt.Errorf("links.PaymentLinkGetByExternalID: %w", err)
	}
	logger = logger.With(log.LinkID(link.ID))

	if !evt.settlesPayment() {
		logger.Info("event ignored")
		return nil
	}

	if link.Status.Terminal() && link.Status != models.PaymentStatusReceived {
		logger.Warnf("payment link was %s, marking received", link.Status)
	}

	now := r.now()
	if err = r.links.PaymentLinkMarkReceived(ctx, link.ID, now, body); err != nil {
		return fmt.Errorf("links.PaymentLinkMarkReceived: %w", err)
	}
	logger.Info("payment link received")

	if link.TransactionID != nil {
		if err = r.ledger.TransactionMarkPaid(ctx, *link.TransactionID, now); err != nil {
			logger.With(log.TransactionID(*link.TransactionID)).Errorf("ledger.TransactionMarkPaid: %v", err)
		}
	}

	if link.CustomerPhone != nil && *link.CustomerPhone != "" && !link.ConfirmationSent {
		r.sendConfirmation(ctx, logger, link)
	}
	return nil
}

func (r *Reconciler) sendConfirmation(ctx context.Context, logger *zap.SugaredLogger, link *models.PaymentLink) {
	linkID := link.ID
	err := r.dispatcher.Dispatch(ctx, notify.Message{
		To:            *link.CustomerPhone,
		Body:          notify.PaymentConfirmedMessage(link.AmountCents),
		PaymentLinkID: &linkID,
	})
	if err != nil {
		logger.Errorf("dispatcher.Dispatch: %v", err)
		return
	}
	if err = r.links.PaymentLinkSetConfirmationSent(ctx, link.ID); err != nil {
		logger.Errorf("links.PaymentLinkSetConfirmationSent: %v", err)
	}
}

func header(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func headers() map[string]string {
	h := make(map[string]string, len(corsHeaders)+1)
	for k, v := range corsHeaders {
		h[k] = v
	}
	return h
}

func jsonResponse(status int, body any) Response {
	b, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"json.Marshal failed"}`)
	}
	h := headers()
	h["Content-Type"] = "application/json"
	return Response{StatusCode: status, Headers: h, Body: b}
}

func errorResponse(status int, message string) Response {
	return jsonResponse(status, map[string]string{"error": message})
}
