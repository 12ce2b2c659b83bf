package webhook_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/andrey-berenda/locadora/internal/pkg/models"
	"github.com/andrey-berenda/locadora/internal/pkg/notify"
	"github.com/andrey-berenda/locadora/internal/pkg/ptr"
	"github.com/andrey-berenda/locadora/internal/pkg/storage"
	"github.com/andrey-berenda/locadora/internal/pkg/webhook"
)

// ---- fakes ----

type fakeLinks struct {
	links          map[string]*models.PaymentLink
	getErr         error
	markErr        error
	markCalls      int
	confirmedCalls int
}

func newFakeLinks(links ...models.PaymentLink) *fakeLinks {
	f := &fakeLinks{links: map[string]*models.PaymentLink{}}
	for i := range links {
		l := links[i]
		f.links[string(l.Provider)+"/"+l.ExternalID] = &l
	}
	return f
}

func (f *fakeLinks) PaymentLinkGetByExternalID(
	_ context.Context,
	provider models.PaymentProvider,
	externalID string,
) (*models.PaymentLink, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	l, ok := f.links[string(provider)+"/"+externalID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeLinks) PaymentLinkMarkReceived(_ context.Context, linkID uuid.UUID, paidAt time.Time, raw []byte) error {
	f.markCalls++
	if f.markErr != nil {
		return f.markErr
	}
	l := f.byID(linkID)
	if l == nil {
		return storage.ErrNotFound
	}
	l.Status = models.PaymentStatusReceived
	l.PaidAt = &paidAt
	l.RawPayload = raw
	l.UpdatedAt = paidAt
	return nil
}

func (f *fakeLinks) PaymentLinkSetConfirmationSent(_ context.Context, linkID uuid.UUID) error {
	f.confirmedCalls++
	l := f.byID(linkID)
	if l == nil {
		return storage.ErrNotFound
	}
	l.ConfirmationSent = true
	return nil
}

func (f *fakeLinks) byID(id uuid.UUID) *models.PaymentLink {
	for _, l := range f.links {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func (f *fakeLinks) get(externalID string) *models.PaymentLink {
	return f.links[string(models.PaymentProviderAsaas)+"/"+externalID]
}

type fakeLedger struct {
	err   error
	calls []string
	at    []time.Time
}

func (f *fakeLedger) TransactionMarkPaid(_ context.Context, transactionID string, paidAt time.Time) error {
	f.calls = append(f.calls, transactionID)
	f.at = append(f.at, paidAt)
	return f.err
}

type fakeDispatcher struct {
	err      error
	messages []notify.Message
}

func (f *fakeDispatcher) Dispatch(_ context.Context, m notify.Message) error {
	f.messages = append(f.messages, m)
	return f.err
}

// ---- helpers ----

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	links      *fakeLinks
	ledger     *fakeLedger
	dispatcher *fakeDispatcher
	clock      *clock
	logs       *observer.ObservedLogs
	reconciler *webhook.Reconciler
}

func newFixture(opts []webhook.Option, links ...models.PaymentLink) *fixture {
	f := &fixture{
		links:      newFakeLinks(links...),
		ledger:     &fakeLedger{},
		dispatcher: &fakeDispatcher{},
		clock:      &clock{t: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)},
	}
	core, logs := observer.New(zapcore.InfoLevel)
	f.logs = logs
	opts = append([]webhook.Option{webhook.WithClock(f.clock.now)}, opts...)
	f.reconciler = webhook.New(f.links, f.ledger, f.dispatcher, zap.New(core).Sugar(), opts...)
	return f
}

func (f *fixture) post(body string) webhook.Response {
	return f.reconciler.Handle(context.Background(), webhook.Request{
		Method: http.MethodPost,
		Body:   []byte(body),
	})
}

func existingLink() models.PaymentLink {
	return models.PaymentLink{
		ID:            uuid.New(),
		ExternalID:    "pay_123",
		Provider:      models.PaymentProviderAsaas,
		Status:        models.PaymentStatusPending,
		AmountCents:   15000,
		TransactionID: ptr.Of("tx_9"),
		CustomerPhone: ptr.Of("+551199999999"),
	}
}

const receivedEvent = `{"event":"PAYMENT_RECEIVED","payment":{"id":"pay_123","customer":"cus_1","value":15000,` +
	`"status":"RECEIVED","dateCreated":"2026-03-01","dueDate":"2026-03-10"}}`

func assertUntouched(t *testing.T, f *fixture) {
	t.Helper()
	assert.Zero(t, f.links.markCalls)
	assert.Zero(t, f.links.confirmedCalls)
	assert.Empty(t, f.ledger.calls)
	assert.Empty(t, f.dispatcher.messages)
}

// ---- tests ----

func TestHandle_EndToEndPaymentReceived(t *testing.T) {
	f := newFixture(nil, existingLink())

	resp := f.post(receivedEvent)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true}`, string(resp.Body))

	link := f.links.get("pay_123")
	assert.Equal(t, models.PaymentStatusReceived, link.Status)
	require.NotNil(t, link.PaidAt)
	assert.Equal(t, f.clock.t, *link.PaidAt)
	assert.True(t, link.ConfirmationSent)
	assert.JSONEq(t, receivedEvent, string(link.RawPayload))

	assert.Equal(t, []string{"tx_9"}, f.ledger.calls)
	assert.Equal(t, f.clock.t, f.ledger.at[0])

	require.Len(t, f.dispatcher.messages, 1)
	assert.Equal(t, "+551199999999", f.dispatcher.messages[0].To)
	assert.Contains(t, f.dispatcher.messages[0].Body, "R$ 150.00")
	require.NotNil(t, f.dispatcher.messages[0].PaymentLinkID)
	assert.Equal(t, link.ID, *f.dispatcher.messages[0].PaymentLinkID)
}

func TestHandle_PaymentConfirmedSettles(t *testing.T) {
	f := newFixture(nil, existingLink())

	resp := f.post(`{"event":"PAYMENT_CONFIRMED","payment":{"id":"pay_123","value":150}}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.PaymentStatusReceived, f.links.get("pay_123").Status)
	assert.Len(t, f.ledger.calls, 1)
}

func TestHandle_OptionsShortCircuits(t *testing.T) {
	f := newFixture(nil, existingLink())

	resp := f.reconciler.Handle(context.Background(), webhook.Request{Method: http.MethodOptions})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Body)
	assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", resp.Headers["Access-Control-Allow-Headers"])
	assertUntouched(t, f)
}

func TestHandle_UnrecognizedEventsAreAcknowledged(t *testing.T) {
	for _, kind := range []string{"PAYMENT_CREATED", "PAYMENT_OVERDUE", "PAYMENT_DELETED", ""} {
		t.Run(kind, func(t *testing.T) {
			f := newFixture(nil, existingLink())

			resp := f.post(`{"event":"` + kind + `","payment":{"id":"pay_123"}}`)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.JSONEq(t, `{"success":true}`, string(resp.Body))
			assertUntouched(t, f)
			assert.Equal(t, models.PaymentStatusPending, f.links.get("pay_123").Status)
		})
	}

	for _, body := range []string{
		`{"event":"SUBSCRIPTION_CREATED","subscription":{"id":"sub_1"}}`,
		`{"event":"PAYMENT_CREATED","payment":{}}`,
		`{"event":"TRANSFER_DONE"}`,
	} {
		t.Run(body, func(t *testing.T) {
			f := newFixture(nil, existingLink())

			resp := f.post(body)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.JSONEq(t, `{"success":true}`, string(resp.Body))
			assertUntouched(t, f)
		})
	}
}

func TestHandle_FailedLinkIsOverwritten(t *testing.T) {
	link := existingLink()
	link.Status = models.PaymentStatusFailed
	f := newFixture(nil, link)

	resp := f.post(receivedEvent)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.PaymentStatusReceived, f.links.get("pay_123").Status)
	warnings := f.logs.FilterLevelExact(zapcore.WarnLevel).FilterMessage("payment link was failed, marking received")
	assert.Equal(t, 1, warnings.Len())
}

func TestHandle_UnknownLinkIsNotFound(t *testing.T) {
	for _, body := range []string{
		`{"event":"PAYMENT_RECEIVED","payment":{"id":"pay_unknown"}}`,
		`{"event":"PAYMENT_OVERDUE","payment":{"id":"pay_unknown"}}`,
	} {
		f := newFixture(nil, existingLink())

		resp := f.post(body)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.JSONEq(t, `{"error":"Payment link not found"}`, string(resp.Body))
		assertUntouched(t, f)
	}
}

func TestHandle_LinkFromOtherProviderDoesNotMatch(t *testing.T) {
	link := existingLink()
	link.Provider = "stripe"
	f := newFixture(nil, link)

	resp := f.post(receivedEvent)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assertUntouched(t, f)
}

func TestHandle_RedeliveryIsIdempotent(t *testing.T) {
	f := newFixture(nil, existingLink())

	first := f.post(receivedEvent)
	firstPaidAt := *f.links.get("pay_123").PaidAt
	f.clock.advance(time.Minute)
	second := f.post(receivedEvent)

	assert.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, http.StatusOK, second.StatusCode)

	link := f.links.get("pay_123")
	assert.Equal(t, models.PaymentStatusReceived, link.Status)
	assert.Equal(t, firstPaidAt.Add(time.Minute), *link.PaidAt)
	assert.Equal(t, 2, f.links.markCalls)
	assert.Len(t, f.dispatcher.messages, 1, "confirmation must be sent once")
}

func TestHandle_LedgerFailureIsIsolated(t *testing.T) {
	f := newFixture(nil, existingLink())
	f.ledger.err = errors.New("ledger unavailable")

	resp := f.post(receivedEvent)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true}`, string(resp.Body))
	link := f.links.get("pay_123")
	assert.Equal(t, models.PaymentStatusReceived, link.Status)
	assert.Len(t, f.dispatcher.messages, 1)
	assert.True(t, link.ConfirmationSent)
}

func TestHandle_ConfirmationAlreadySent(t *testing.T) {
	link := existingLink()
	link.ConfirmationSent = true
	f := newFixture(nil, link)

	resp := f.post(receivedEvent)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, f.dispatcher.messages)
	assert.Zero(t, f.links.confirmedCalls)
}

func TestHandle_DispatcherFailureLeavesFlagUnset(t *testing.T) {
	f := newFixture(nil, existingLink())
	f.dispatcher.err = errors.New("whatsapp down")

	resp := f.post(receivedEvent)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	link := f.links.get("pay_123")
	assert.False(t, link.ConfirmationSent)
	assert.Equal(t, models.PaymentStatusReceived, link.Status)
	assert.Zero(t, f.links.confirmedCalls)

	f.dispatcher.err = nil
	resp = f.post(receivedEvent)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, f.dispatcher.messages, 2, "redelivery retries the notification")
	assert.True(t, f.links.get("pay_123").ConfirmationSent)
}

func TestHandle_NoTransactionNoPhone(t *testing.T) {
	link := existingLink()
	link.TransactionID = nil
	link.CustomerPhone = nil
	f := newFixture(nil, link)

	resp := f.post(receivedEvent)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.PaymentStatusReceived, f.links.get("pay_123").Status)
	assert.Empty(t, f.ledger.calls)
	assert.Empty(t, f.dispatcher.messages)
}

func TestHandle_Faults(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		setup   func(f *fixture)
		message string
	}{
		{
			name:    "malformed json",
			body:    `{"event":`,
			message: "invalid webhook payload",
		},
		{
			name:    "missing payment id",
			body:    `{"event":"PAYMENT_RECEIVED","payment":{}}`,
			message: "missing payment.id",
		},
		{
			name: "ambiguous link",
			body: receivedEvent,
			setup: func(f *fixture) {
				f.links.getErr = storage.ErrAmbiguous
			},
			message: storage.ErrAmbiguous.Error(),
		},
		{
			name: "link update fails",
			body: receivedEvent,
			setup: func(f *fixture) {
				f.links.markErr = errors.New("connection reset")
			},
			message: "connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil, existingLink())
			if tt.setup != nil {
				tt.setup(f)
			}

			resp := f.post(tt.body)

			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			assert.Contains(t, string(resp.Body), tt.message)
			assert.Empty(t, f.ledger.calls)
			assert.Empty(t, f.dispatcher.messages)
		})
	}
}

func TestHandle_AccessToken(t *testing.T) {
	f := newFixture([]webhook.Option{webhook.WithToken("secret")}, existingLink())

	resp := f.post(receivedEvent)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assertUntouched(t, f)

	resp = f.reconciler.Handle(context.Background(), webhook.Request{
		Method:  http.MethodPost,
		Headers: map[string]string{"Asaas-Access-Token": "secret"},
		Body:    []byte(receivedEvent),
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
