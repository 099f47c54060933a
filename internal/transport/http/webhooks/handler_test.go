package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/mediator/internal/adapter/esign"
	"github.com/xiaot623/gogo/mediator/internal/adapter/llm"
	"github.com/xiaot623/gogo/mediator/internal/adapter/payment"
	"github.com/xiaot623/gogo/mediator/internal/config"
	"github.com/xiaot623/gogo/mediator/internal/domain"
	"github.com/xiaot623/gogo/mediator/internal/push"
	"github.com/xiaot623/gogo/mediator/internal/ratelimit"
	"github.com/xiaot623/gogo/mediator/internal/service"
	"github.com/xiaot623/gogo/mediator/policy"
	"github.com/xiaot623/gogo/mediator/tests/helpers"
)

const (
	alice = "user-alice"
	bob   = "user-bob"
)

type fixture struct {
	e   *echo.Echo
	svc *service.Service
	h   *Handler
}

func newFixture(t *testing.T, limiter ratelimit.Limiter, opts Options) *fixture {
	t.Helper()
	st := helpers.NewTestSQLiteStore(t)
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	svc, err := service.New(st, llm.NewMockClient(), payment.NewMockProvider(), esign.NewMockProvider(), push.NewHub(), &config.Config{ProfileCacheSize: 8}, engine)
	require.NoError(t, err)

	e := echo.New()
	h := NewHandler(svc, limiter, opts)
	h.RegisterRoutes(e)
	return &fixture{e: e, svc: svc, h: h}
}

func (f *fixture) post(path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

// checkedOut drives a session to the point where payment can be confirmed.
func (f *fixture) checkedOut(t *testing.T) (*domain.Session, *domain.CheckoutResponse) {
	t.Helper()
	ctx := context.Background()
	sess, err := f.svc.CreateSession(ctx, alice, domain.CreateSessionRequest{Title: "Contract Dispute", Description: "The client refuses payment of invoice 1042"})
	require.NoError(t, err)
	_, err = f.svc.JoinSession(ctx, sess.Code, bob)
	require.NoError(t, err)
	_, err = f.svc.RecordPartyPositions(ctx, sess.SessionID, alice, "Pay in full", "Pay half")
	require.NoError(t, err)
	_, err = f.svc.GenerateSettlement(ctx, sess.SessionID, alice)
	require.NoError(t, err)
	for i := 0; i < domain.MaxEditsPerParty; i++ {
		_, err = f.svc.SubmitEdit(ctx, sess.SessionID, alice, "alice edit")
		require.NoError(t, err)
		_, err = f.svc.SubmitEdit(ctx, sess.SessionID, bob, "bob edit")
		require.NoError(t, err)
	}
	for id, name := range map[string]string{alice: "Alice", bob: "Bob"} {
		_, err = f.svc.UpsertProfile(ctx, id, domain.ProfileRequest{FullName: name, Email: id + "@example.com"})
		require.NoError(t, err)
	}
	checkout, err := f.svc.CreateCheckout(ctx, sess.SessionID, alice, "")
	require.NoError(t, err)
	return sess, checkout
}

func (f *fixture) sentEnvelope(t *testing.T) (*domain.Session, *domain.Envelope) {
	t.Helper()
	sess, checkout := f.checkedOut(t)
	ok, err := f.svc.ConfirmPayment(context.Background(), checkout.CheckoutID)
	require.NoError(t, err)
	require.True(t, ok)
	env, err := f.svc.CreateEnvelope(context.Background(), sess.SessionID, alice)
	require.NoError(t, err)
	return sess, env
}

func envelopeEvent(event, envelopeID, recipientID string) string {
	return fmt.Sprintf(`{"event":%q,"data":{"envelopeId":%q,"recipientId":%q}}`, event, envelopeID, recipientID)
}

func checkoutEvent(eventType, checkoutID, sessionID string) string {
	return checkoutEventWithStatus(eventType, checkoutID, sessionID, "paid")
}

func checkoutEventWithStatus(eventType, checkoutID, sessionID, status string) string {
	return fmt.Sprintf(`{"id":"evt_1","type":%q,"data":{"object":{"id":%q,"payment_status":%q,"metadata":{"session_id":%q}}}}`, eventType, checkoutID, status, sessionID)
}

func TestESignEventCompletesSession(t *testing.T) {
	f := newFixture(t, nil, Options{ESignSecret: "whsec"})
	sess, env := f.sentEnvelope(t)

	sign := func(body string) map[string]string {
		return map[string]string{esign.SignatureHeader: esign.Sign([]byte(body), "whsec")}
	}

	body := envelopeEvent("recipient-completed", env.EnvelopeID, "1")
	rec := f.post("/webhooks/esign", body, sign(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "applied")

	got, err := f.svc.GetEnvelope(context.Background(), sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.EnvelopeStatusPartiallySigned, got.EffectiveStatus())

	body = envelopeEvent("envelope-completed", env.EnvelopeID, "")
	rec = f.post("/webhooks/esign", body, sign(body))
	require.Equal(t, http.StatusOK, rec.Code)

	final, err := f.svc.GetSession(context.Background(), sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCompleted, final.Status)

	rec = f.post("/webhooks/esign", body, sign(body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "noop")
}

func TestESignEventRejectsBadSignature(t *testing.T) {
	f := newFixture(t, nil, Options{ESignSecret: "whsec"})

	body := envelopeEvent("envelope-completed", "env-1", "")
	rec := f.post("/webhooks/esign", body, map[string]string{esign.SignatureHeader: esign.Sign([]byte(body), "other")})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.post("/webhooks/esign", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestESignEventIgnoresMalformedAndUnknown(t *testing.T) {
	f := newFixture(t, nil, Options{})

	rec := f.post("/webhooks/esign", `{"event":""}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")

	rec = f.post("/webhooks/esign", envelopeEvent("envelope-completed", "env-missing", ""), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")

	_, env := f.sentEnvelope(t)
	rec = f.post("/webhooks/esign", envelopeEvent("envelope-sent", env.EnvelopeID, ""), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")
}

func TestPaymentEventConfirmsPayment(t *testing.T) {
	f := newFixture(t, nil, Options{PaymentSecret: "pay_secret"})
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	f.h.now = func() time.Time { return now }
	sess, checkout := f.checkedOut(t)

	signed := func(body string) map[string]string {
		ts := now.Unix()
		return map[string]string{"Stripe-Signature": "t=" + strconv.FormatInt(ts, 10) + ",v1=" + payment.Sign([]byte(body), "pay_secret", ts)}
	}

	body := checkoutEvent(payment.EventCheckoutCompleted, checkout.CheckoutID, sess.SessionID)
	rec := f.post("/webhooks/payment", body, map[string]string{"Stripe-Signature": "t=1,v1=deadbeef"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.post("/webhooks/payment", body, signed(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "applied")

	got, err := f.svc.GetSession(context.Background(), sess.SessionID)
	require.NoError(t, err)
	assert.True(t, got.PaymentConfirmed)

	rec = f.post("/webhooks/payment", body, signed(body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "noop")

	other := checkoutEvent("payment_intent.created", checkout.CheckoutID, sess.SessionID)
	rec = f.post("/webhooks/payment", other, signed(other))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")
}

func TestPaymentEventUnknownSession(t *testing.T) {
	f := newFixture(t, nil, Options{})

	rec := f.post("/webhooks/payment", checkoutEvent(payment.EventCheckoutCompleted, "cs_unknown", "missing"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")

	rec = f.post("/webhooks/payment", `not json`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")

	rec = f.post("/webhooks/payment", `{"id":"evt_2"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")
}

func TestPaymentEventIgnoresUnpaidCheckout(t *testing.T) {
	f := newFixture(t, nil, Options{})
	sess, checkout := f.checkedOut(t)

	rec := f.post("/webhooks/payment", checkoutEventWithStatus(payment.EventCheckoutCompleted, checkout.CheckoutID, sess.SessionID, "unpaid"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")

	got, err := f.svc.GetSession(context.Background(), sess.SessionID)
	require.NoError(t, err)
	assert.False(t, got.PaymentConfirmed)

	rec = f.post("/webhooks/payment", checkoutEventWithStatus(payment.EventCheckoutCompleted, checkout.CheckoutID, sess.SessionID, "no_payment_required"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "applied")
}

func TestPaymentEventIgnoresForgedCheckout(t *testing.T) {
	f := newFixture(t, nil, Options{})
	sess, _ := f.checkedOut(t)

	rec := f.post("/webhooks/payment", checkoutEvent(payment.EventCheckoutCompleted, "cs_forged", sess.SessionID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")

	got, err := f.svc.GetSession(context.Background(), sess.SessionID)
	require.NoError(t, err)
	assert.False(t, got.PaymentConfirmed)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, ratelimit.NewMemoryLimiter(2, time.Minute), Options{})
	body := envelopeEvent("envelope-completed", "env-1", "")

	for i := 0; i < 2; i++ {
		rec := f.post("/webhooks/esign", body, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec := f.post("/webhooks/esign", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	open := newFixture(t, failingLimiter{}, Options{})
	rec = open.post("/webhooks/esign", body, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
