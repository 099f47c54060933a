package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/mediator/internal/adapter/esign"
	"github.com/xiaot623/gogo/mediator/internal/adapter/llm"
	"github.com/xiaot623/gogo/mediator/internal/adapter/payment"
	"github.com/xiaot623/gogo/mediator/internal/analysis"
	"github.com/xiaot623/gogo/mediator/internal/config"
	"github.com/xiaot623/gogo/mediator/internal/domain"
	"github.com/xiaot623/gogo/mediator/internal/repository"
	"github.com/xiaot623/gogo/mediator/policy"
	"github.com/xiaot623/gogo/mediator/tests/helpers"
)

const (
	alice = "user-alice"
	bob   = "user-bob"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.PushEvent
}

func (p *recordingPublisher) Publish(ev domain.PushEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) count(t domain.PushEventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

type testEnv struct {
	svc       *Service
	store     *store.SQLiteStore
	llm       *llm.MockClient
	payments  *payment.MockProvider
	esign     *esign.MockProvider
	publisher *recordingPublisher
}

func newTestService(t *testing.T) *testEnv {
	t.Helper()
	st := helpers.NewTestSQLiteStore(t)
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	env := &testEnv{
		store:     st,
		llm:       llm.NewMockClient(),
		payments:  payment.NewMockProvider(),
		esign:     esign.NewMockProvider(),
		publisher: &recordingPublisher{},
	}
	env.svc, err = New(st, env.llm, env.payments, env.esign, env.publisher, &config.Config{ProfileCacheSize: 16}, engine)
	require.NoError(t, err)
	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	env.svc.now = func() time.Time {
		fixed = fixed.Add(time.Millisecond)
		return fixed
	}
	return env
}

func (e *testEnv) activeSession(t *testing.T, title, description string) *domain.Session {
	t.Helper()
	ctx := context.Background()
	sess, err := e.svc.CreateSession(ctx, alice, domain.CreateSessionRequest{Title: title, Description: description})
	require.NoError(t, err)
	_, err = e.svc.JoinSession(ctx, sess.Code, bob)
	require.NoError(t, err)
	return sess
}

func (e *testEnv) settledDocument(t *testing.T) *domain.Session {
	t.Helper()
	ctx := context.Background()
	sess := e.activeSession(t, "Contract Dispute", "The client refuses payment of invoice 1042 for delivered goods")
	_, err := e.svc.RecordPartyPositions(ctx, sess.SessionID, alice, "Pay the invoice in full", "Pay half after repairs")
	require.NoError(t, err)
	_, err = e.svc.GenerateSettlement(ctx, sess.SessionID, alice)
	require.NoError(t, err)
	return sess
}

func (e *testEnv) completeEdits(t *testing.T, sessionID string) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= domain.MaxEditsPerParty; i++ {
		_, err := e.svc.SubmitEdit(ctx, sessionID, alice, fmt.Sprintf("alice change %d", i))
		require.NoError(t, err)
		_, err = e.svc.SubmitEdit(ctx, sessionID, bob, fmt.Sprintf("bob change %d", i))
		require.NoError(t, err)
	}
}

func (e *testEnv) paidSession(t *testing.T) *domain.Session {
	t.Helper()
	ctx := context.Background()
	sess := e.settledDocument(t)
	e.completeEdits(t, sess.SessionID)
	for id, name := range map[string]string{alice: "Alice Smith", bob: "Bob Jones"} {
		_, err := e.svc.UpsertProfile(ctx, id, domain.ProfileRequest{FullName: name, Email: id + "@example.com"})
		require.NoError(t, err)
	}
	checkout, err := e.svc.CreateCheckout(ctx, sess.SessionID, alice, "")
	require.NoError(t, err)
	ok, err := e.svc.ConfirmPayment(ctx, checkout.CheckoutID)
	require.NoError(t, err)
	require.True(t, ok)
	return sess
}

func TestCreateSession(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	sess, err := env.svc.CreateSession(ctx, alice, domain.CreateSessionRequest{Title: "Rent", Description: "Deposit not returned"})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusWaiting, sess.Status)
	assert.Equal(t, alice, sess.PartyAID)
	assert.Empty(t, sess.PartyBID)
	assert.Regexp(t, `^[A-Z0-9]{8}$`, sess.Code)

	_, err = env.svc.CreateSession(ctx, "", domain.CreateSessionRequest{Title: "x", Description: "y"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = env.svc.CreateSession(ctx, alice, domain.CreateSessionRequest{Title: "<script>alert(1)</script>", Description: "y"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestJoinSession(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	sess, err := env.svc.CreateSession(ctx, alice, domain.CreateSessionRequest{Title: "Rent", Description: "Deposit"})
	require.NoError(t, err)

	_, err = env.svc.JoinSession(ctx, sess.Code, alice)
	assert.ErrorIs(t, err, domain.ErrAlreadyJoined)

	joined, err := env.svc.JoinSession(ctx, strings.ToLower(sess.Code), bob)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusActive, joined.Status)
	assert.Equal(t, bob, joined.PartyBID)
	assert.Equal(t, 1, env.publisher.count(domain.PushEventSessionUpdated))

	_, err = env.svc.JoinSession(ctx, sess.Code, bob)
	assert.ErrorIs(t, err, domain.ErrAlreadyJoined)

	_, err = env.svc.JoinSession(ctx, sess.Code, "user-carol")
	assert.ErrorIs(t, err, domain.ErrSessionFull)

	_, err = env.svc.JoinSession(ctx, "NOPE0000", "user-carol")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestJoinCancelledSession(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	sess, err := env.svc.CreateSession(ctx, alice, domain.CreateSessionRequest{Title: "Rent", Description: "Deposit"})
	require.NoError(t, err)
	_, err = env.svc.CancelSession(ctx, sess.SessionID, alice)
	require.NoError(t, err)

	_, err = env.svc.JoinSession(ctx, sess.Code, bob)
	assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err))
}

func TestConcurrentJoinHasOneWinner(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	sess, err := env.svc.CreateSession(ctx, alice, domain.CreateSessionRequest{Title: "Rent", Description: "Deposit"})
	require.NoError(t, err)

	const joiners = 8
	var wg sync.WaitGroup
	errs := make([]error, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.JoinSession(ctx, sess.Code, fmt.Sprintf("joiner-%d", i))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrSessionFull)
	}
	assert.Equal(t, 1, winners)

	final, err := env.svc.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusActive, final.Status)
	assert.NotEmpty(t, final.PartyBID)
}

func TestOutsiderIsForbidden(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess := env.activeSession(t, "Rent", "Deposit")

	_, err := env.svc.PostMessage(ctx, sess.SessionID, "user-mallory", domain.CreateMessageRequest{Content: "hi"})
	assert.ErrorIs(t, err, domain.ErrNotParty)

	_, err = env.svc.SubmitEdit(ctx, sess.SessionID, "", "change")
	assert.ErrorIs(t, err, domain.ErrNotParty)
}

func TestRecordPositions(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	sess, err := env.svc.CreateSession(ctx, alice, domain.CreateSessionRequest{Title: "Rent", Description: "Deposit"})
	require.NoError(t, err)
	_, err = env.svc.RecordPartyPosition(ctx, sess.SessionID, alice, "Return the deposit")
	assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err), "waiting sessions take no positions")

	_, err = env.svc.JoinSession(ctx, sess.Code, bob)
	require.NoError(t, err)

	_, err = env.svc.RecordPartyPosition(ctx, sess.SessionID, alice, "Return the deposit")
	require.NoError(t, err)
	updated, err := env.svc.RecordPartyPosition(ctx, sess.SessionID, bob, "Keep half for cleaning")
	require.NoError(t, err)
	assert.Equal(t, "Return the deposit", updated.PartyAPosition)
	assert.Equal(t, "Keep half for cleaning", updated.PartyBPosition)
	assert.True(t, updated.HasPositions())
}

// Scenario A: classification drives the template header.
func TestGenerateSettlementClassifiesFinancial(t *testing.T) {
	env := newTestService(t)
	env.llm.Response = "Party B pays the invoice within 14 days."
	sess := env.settledDocument(t)

	got, err := env.svc.GetSession(context.Background(), sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryFinancial, got.Category)
	require.True(t, got.HasDocument())
	assert.True(t, strings.HasPrefix(*got.SettlementText, "FINANCIAL SETTLEMENT AGREEMENT"))
	assert.Contains(t, *got.SettlementText, "Party B pays the invoice within 14 days.")
	assert.Contains(t, *got.SettlementText, "TIME IS OF THE ESSENCE")
	assert.Equal(t, 1, env.llm.CallCount())
}

func TestGenerateSettlementRequiresPositions(t *testing.T) {
	env := newTestService(t)
	sess := env.activeSession(t, "Rent", "Deposit")

	_, err := env.svc.GenerateSettlement(context.Background(), sess.SessionID, alice)
	assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err))
	assert.Zero(t, env.llm.CallCount())
}

func TestGenerateSettlementAIFailureWritesNothing(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess := env.activeSession(t, "Rent", "Deposit")
	_, err := env.svc.RecordPartyPositions(ctx, sess.SessionID, alice, "a", "b")
	require.NoError(t, err)

	env.llm.Err = errors.New("upstream 503: secret detail")
	_, err = env.svc.GenerateSettlement(ctx, sess.SessionID, alice)
	require.Error(t, err)
	assert.Equal(t, domain.KindUpstream, domain.KindOf(err))
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.NotContains(t, de.Message, "secret detail")

	got, err := env.svc.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.False(t, got.HasDocument())
	assert.Empty(t, got.Category)
}

func TestGenerateSettlementRejectedAfterEdits(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess := env.settledDocument(t)

	_, err := env.svc.GenerateSettlement(ctx, sess.SessionID, bob)
	require.NoError(t, err, "regeneration before edits overwrites")

	_, err = env.svc.SubmitEdit(ctx, sess.SessionID, alice, "first change")
	require.NoError(t, err)

	before, err := env.svc.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	_, err = env.svc.GenerateSettlement(ctx, sess.SessionID, alice)
	assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err))

	after, err := env.svc.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, *before.SettlementText, *after.SettlementText)
}

// Scenario C: the edit round completes only after both parties used two edits.
func TestEditRound(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess := env.settledDocument(t)

	_, err := env.svc.SubmitEdit(ctx, sess.SessionID, alice, "extend the deadline")
	require.NoError(t, err)
	_, err = env.svc.SubmitEdit(ctx, sess.SessionID, alice, "add interest")
	require.NoError(t, err)
	view, err := env.svc.SubmitEdit(ctx, sess.SessionID, bob, "remove interest")
	require.NoError(t, err)
	assert.False(t, view.EditRound().Complete())
	assert.False(t, view.PaymentEligible())

	_, err = env.svc.SubmitEdit(ctx, sess.SessionID, alice, "one more")
	assert.ErrorIs(t, err, domain.ErrEditLimit)

	final, err := env.svc.SubmitEdit(ctx, sess.SessionID, bob, "agree to the rest")
	require.NoError(t, err)
	assert.True(t, final.EditRound().Complete())
	assert.True(t, final.PaymentEligible())

	text := *final.SettlementText
	assert.Contains(t, text, "\n\nParty A Edit 1: extend the deadline")
	assert.Contains(t, text, "\n\nParty A Edit 2: add interest")
	assert.Contains(t, text, "\n\nParty B Edit 1: remove interest")
	assert.Contains(t, text, "\n\nParty B Edit 2: agree to the rest")
	assert.NotContains(t, text, "one more")

	_, err = env.svc.SubmitEdit(ctx, sess.SessionID, bob, "third")
	assert.ErrorIs(t, err, domain.ErrEditLimit)
	unchanged, err := env.svc.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, text, *unchanged.SettlementText)
}

func TestEditRequiresDocument(t *testing.T) {
	env := newTestService(t)
	sess := env.activeSession(t, "Rent", "Deposit")

	_, err := env.svc.SubmitEdit(context.Background(), sess.SessionID, alice, "change")
	assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err))
}

func TestConcurrentEditsRespectCap(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess := env.settledDocument(t)

	var wg sync.WaitGroup
	results := make([]error, 6)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = env.svc.SubmitEdit(ctx, sess.SessionID, alice, fmt.Sprintf("edit %d", i))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, domain.MaxEditsPerParty, ok)
	got, err := env.svc.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxEditsPerParty, got.PartyAEdits)
	assert.Equal(t, domain.MaxEditsPerParty, strings.Count(*got.SettlementText, "Party A Edit "))
}

func TestSetSettlementAmount(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess := env.activeSession(t, "Rent", "Deposit")

	_, err := env.svc.SetSettlementAmount(ctx, sess.SessionID, alice, "-5")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	got, err := env.svc.SetSettlementAmount(ctx, sess.SessionID, alice, "1250.5")
	require.NoError(t, err)
	require.NotNil(t, got.SettlementAmount)
	assert.Equal(t, "1250.50", got.SettlementAmount.StringFixed(2))
}

func TestCheckoutAndPayment(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess := env.settledDocument(t)

	_, err := env.svc.CreateCheckout(ctx, sess.SessionID, alice, "")
	assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err), "edits incomplete")

	env.completeEdits(t, sess.SessionID)
	checkout, err := env.svc.CreateCheckout(ctx, sess.SessionID, bob, payment.DiscountCode)
	require.NoError(t, err)
	assert.Equal(t, payment.DiscountPriceCents, checkout.AmountCents)
	assert.NotEmpty(t, checkout.RedirectURL)

	ok, err := env.svc.ConfirmPayment(ctx, checkout.CheckoutID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.svc.ConfirmPayment(ctx, checkout.CheckoutID)
	require.NoError(t, err)
	assert.False(t, ok, "duplicate delivery")

	rec, err := env.store.GetPayment(ctx, checkout.CheckoutID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, rec.Status)

	_, err = env.svc.CreateCheckout(ctx, sess.SessionID, alice, "")
	assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err), "already paid")

	_, err = env.svc.SetSettlementAmount(ctx, sess.SessionID, alice, "10")
	assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err), "amount frozen after payment")
}

func TestConfirmPaymentRequiresRecordedCheckout(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess := env.settledDocument(t)
	env.completeEdits(t, sess.SessionID)

	_, err := env.svc.ConfirmPayment(ctx, "cs_forged")
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
	_, err = env.svc.ConfirmPayment(ctx, "")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	got, err := env.svc.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.False(t, got.PaymentConfirmed)
}

func TestCheckoutProviderFailure(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess := env.settledDocument(t)
	env.completeEdits(t, sess.SessionID)

	env.payments.Err = errors.New("card network down")
	_, err := env.svc.CreateCheckout(ctx, sess.SessionID, alice, "")
	assert.Equal(t, domain.KindUpstream, domain.KindOf(err))
}

func TestCreateEnvelopeProviderFailureReleasesClaim(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess := env.paidSession(t)

	env.esign.Err = errors.New("docusign unavailable")
	_, err := env.svc.CreateEnvelope(ctx, sess.SessionID, alice)
	assert.Equal(t, domain.KindUpstream, domain.KindOf(err))

	got, err := env.svc.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.False(t, got.EnvelopeClaimed)
	_, err = env.svc.GetEnvelope(ctx, sess.SessionID)
	assert.ErrorIs(t, err, domain.ErrEnvelopeNotFound)

	env.esign.Err = nil
	created, err := env.svc.CreateEnvelope(ctx, sess.SessionID, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.EnvelopeStatusSent, created.Status)

	again, err := env.svc.CreateEnvelope(ctx, sess.SessionID, bob)
	require.NoError(t, err)
	assert.Equal(t, created.EnvelopeID, again.EnvelopeID)
	assert.Equal(t, 1, env.esign.RequestCount())

	req := env.esign.Requests[0]
	assert.Equal(t, "Alice Smith", req.PartyA.Name)
	assert.Equal(t, bob+"@example.com", req.PartyB.Email)
}

// flakyEnvelopeStore fails the first envelope inserts it sees.
type flakyEnvelopeStore struct {
	store.Store
	failures int
}

func (f *flakyEnvelopeStore) CreateEnvelope(ctx context.Context, env *domain.Envelope) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("database is locked")
	}
	return f.Store.CreateEnvelope(ctx, env)
}

func TestCreateEnvelopeResumesAfterFailedInsert(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess := env.paidSession(t)
	env.svc.store = &flakyEnvelopeStore{Store: env.store, failures: 1}

	_, err := env.svc.CreateEnvelope(ctx, sess.SessionID, alice)
	require.Error(t, err)

	got, err := env.store.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.True(t, got.EnvelopeClaimed)
	assert.NotEmpty(t, got.PendingEnvelopeID)

	created, err := env.svc.CreateEnvelope(ctx, sess.SessionID, bob)
	require.NoError(t, err)
	assert.Equal(t, got.PendingEnvelopeID, created.EnvelopeID)
	assert.Equal(t, domain.EnvelopeStatusSent, created.Status)
	assert.Equal(t, 1, env.esign.RequestCount(), "provider is not asked twice")
	assert.Equal(t, 1, env.publisher.count(domain.PushEventEnvelopeUpdated))

	again, err := env.svc.GetEnvelope(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, created.EnvelopeID, again.EnvelopeID)
}

func TestCreateEnvelopeRequiresPayment(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess := env.settledDocument(t)
	env.completeEdits(t, sess.SessionID)

	_, err := env.svc.CreateEnvelope(ctx, sess.SessionID, alice)
	assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err))
	assert.Zero(t, env.esign.RequestCount())
}

func TestEnvelopeDocumentCarriesAmount(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess := env.activeSession(t, "Contract Dispute", "Unpaid invoice")
	_, err := env.svc.SetSettlementAmount(ctx, sess.SessionID, alice, "300")
	require.NoError(t, err)
	_, err = env.svc.RecordPartyPositions(ctx, sess.SessionID, alice, "a", "b")
	require.NoError(t, err)
	_, err = env.svc.GenerateSettlement(ctx, sess.SessionID, alice)
	require.NoError(t, err)
	env.completeEdits(t, sess.SessionID)
	for _, id := range []string{alice, bob} {
		_, err := env.svc.UpsertProfile(ctx, id, domain.ProfileRequest{FullName: id, Email: id + "@example.com"})
		require.NoError(t, err)
	}
	checkout, err := env.svc.CreateCheckout(ctx, sess.SessionID, alice, "")
	require.NoError(t, err)
	_, err = env.svc.ConfirmPayment(ctx, checkout.CheckoutID)
	require.NoError(t, err)

	_, err = env.svc.CreateEnvelope(ctx, sess.SessionID, alice)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(env.esign.Requests[0].DocumentText, "SETTLEMENT AMOUNT\n$300.00"))
}

func (e *testEnv) sentEnvelope(t *testing.T) (*domain.Session, *domain.Envelope) {
	t.Helper()
	sess := e.paidSession(t)
	env, err := e.svc.CreateEnvelope(context.Background(), sess.SessionID, alice)
	require.NoError(t, err)
	return sess, env
}

func TestReconcileRecipientsThenCompleted(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess, envelope := env.sentEnvelope(t)

	out, err := env.svc.ApplyEnvelopeEvent(ctx, domain.EnvelopeEvent{EnvelopeID: envelope.EnvelopeID, Type: domain.EnvelopeEventRecipientCompleted, RecipientID: "1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	got, err := env.svc.GetEnvelope(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.EnvelopeStatusPartiallySigned, got.EffectiveStatus())

	out, err = env.svc.ApplyEnvelopeEvent(ctx, domain.EnvelopeEvent{EnvelopeID: envelope.EnvelopeID, Type: domain.EnvelopeEventRecipientCompleted, RecipientID: "1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, out, "replayed recipient event")

	_, err = env.svc.ApplyEnvelopeEvent(ctx, domain.EnvelopeEvent{EnvelopeID: envelope.EnvelopeID, Type: domain.EnvelopeEventRecipientCompleted, RecipientID: "2"})
	require.NoError(t, err)
	out, err = env.svc.ApplyEnvelopeEvent(ctx, domain.EnvelopeEvent{EnvelopeID: envelope.EnvelopeID, Type: domain.EnvelopeEventCompleted})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	final, err := env.svc.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCompleted, final.Status)
	assert.True(t, final.IsSettled)

	got, err = env.svc.GetEnvelope(ctx, sess.SessionID)
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	completedAt := *got.CompletedAt

	out, err = env.svc.ApplyEnvelopeEvent(ctx, domain.EnvelopeEvent{EnvelopeID: envelope.EnvelopeID, Type: domain.EnvelopeEventCompleted})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, out)
	got, err = env.svc.GetEnvelope(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.True(t, completedAt.Equal(*got.CompletedAt), "completion time is stamped once")
}

func TestReconcileCompletedWithoutRecipientEvents(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess, envelope := env.sentEnvelope(t)

	_, err := env.svc.ApplyEnvelopeEvent(ctx, domain.EnvelopeEvent{EnvelopeID: envelope.EnvelopeID, Type: domain.EnvelopeEventCompleted})
	require.NoError(t, err)
	out, err := env.svc.ApplyEnvelopeEvent(ctx, domain.EnvelopeEvent{EnvelopeID: envelope.EnvelopeID, Type: domain.EnvelopeEventRecipientCompleted, RecipientID: "2"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, out, "late recipient event after completion")

	got, err := env.svc.GetEnvelope(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.True(t, got.FullySigned())
	assert.Equal(t, domain.EnvelopeStatusCompleted, got.Status)
}

// Scenario D: a declined envelope fails without settling the session.
func TestReconcileDeclined(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess, envelope := env.sentEnvelope(t)

	_, err := env.svc.ApplyEnvelopeEvent(ctx, domain.EnvelopeEvent{EnvelopeID: envelope.EnvelopeID, Type: domain.EnvelopeEventRecipientCompleted, RecipientID: "1"})
	require.NoError(t, err)
	out, err := env.svc.ApplyEnvelopeEvent(ctx, domain.EnvelopeEvent{EnvelopeID: envelope.EnvelopeID, Type: domain.EnvelopeEventDeclined})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	got, err := env.svc.GetEnvelope(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.EnvelopeStatusFailed, got.Status)
	assert.True(t, got.PartyASigned, "flags are untouched")

	after, err := env.svc.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusActive, after.Status)
	assert.False(t, after.IsSettled)

	out, err = env.svc.ApplyEnvelopeEvent(ctx, domain.EnvelopeEvent{EnvelopeID: envelope.EnvelopeID, Type: domain.EnvelopeEventCompleted})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, out, "first terminal status wins")
	after, err = env.svc.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.False(t, after.IsSettled)
}

func TestReconcileIgnoresUnknown(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	_, envelope := env.sentEnvelope(t)

	out, err := env.svc.ApplyEnvelopeEvent(ctx, domain.EnvelopeEvent{EnvelopeID: "missing", Type: domain.EnvelopeEventCompleted})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out)

	out, err = env.svc.ApplyEnvelopeEvent(ctx, domain.EnvelopeEvent{EnvelopeID: envelope.EnvelopeID, Type: "envelope-sent"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out)

	out, err = env.svc.ApplyEnvelopeEvent(ctx, domain.EnvelopeEvent{EnvelopeID: envelope.EnvelopeID, Type: domain.EnvelopeEventRecipientCompleted, RecipientID: "3"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out)
}

func TestFinalizeTwiceIsNoop(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess, envelope := env.sentEnvelope(t)

	err := env.svc.Finalize(ctx, sess.SessionID)
	assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err), "unsigned envelope")

	_, err = env.store.CompleteEnvelope(ctx, envelope.EnvelopeID, time.Now())
	require.NoError(t, err)
	require.NoError(t, env.svc.Finalize(ctx, sess.SessionID))
	first, err := env.svc.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)

	require.NoError(t, env.svc.Finalize(ctx, sess.SessionID))
	second, err := env.svc.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCompleted, second.Status)
	assert.True(t, first.UpdatedAt.Equal(second.UpdatedAt))
}

func TestCancelAndFail(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess := env.activeSession(t, "Rent", "Deposit")

	failed, err := env.svc.FailSession(ctx, sess.SessionID, "operator-1", "parties unreachable")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusFailed, failed.Status)
	assert.Equal(t, "parties unreachable", failed.FailureReason)

	_, err = env.svc.CancelSession(ctx, sess.SessionID, alice)
	assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err))

	_, err = env.svc.PostMessage(ctx, sess.SessionID, alice, domain.CreateMessageRequest{Content: "hello"})
	assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err))
}

func TestPostMessage(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess := env.activeSession(t, "Rent", "Deposit")

	msg, err := env.svc.PostMessage(ctx, sess.SessionID, bob, domain.CreateMessageRequest{Content: "<p>I <em>want</em> my deposit</p>"})
	require.NoError(t, err)
	assert.Equal(t, domain.SenderRolePartyB, msg.SenderRole)
	assert.Equal(t, domain.MessageTypeText, msg.MessageType)
	assert.Equal(t, "<p>I <em>want</em> my deposit</p>", msg.Content)

	stripped, err := env.svc.PostMessage(ctx, sess.SessionID, alice, domain.CreateMessageRequest{Content: `<a href="x">link</a> text`})
	require.NoError(t, err)
	assert.Equal(t, "link text", stripped.Content)

	_, err = env.svc.PostMessage(ctx, sess.SessionID, alice, domain.CreateMessageRequest{Content: "x", MessageType: domain.MessageTypeAIResponse})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = env.svc.PostMessage(ctx, sess.SessionID, alice, domain.CreateMessageRequest{Content: `<img src=x onerror=alert(1)>`})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = env.svc.PostMessage(ctx, sess.SessionID, alice, domain.CreateMessageRequest{Content: strings.Repeat("a", maxContentLength+1)})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	messages, err := env.svc.GetMessages(ctx, sess.SessionID, 0, "")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Less(t, messages[0].MessageID, messages[1].MessageID)
	assert.Equal(t, 2, env.publisher.count(domain.PushEventMessageCreated))
}

// Scenario B: the fifteenth message moves the stage to resolution.
func TestConversationReportStages(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess := env.activeSession(t, "Rent", "Deposit")

	for i := 0; i < 14; i++ {
		caller := alice
		if i%2 == 1 {
			caller = bob
		}
		_, err := env.svc.PostMessage(ctx, sess.SessionID, caller, domain.CreateMessageRequest{Content: fmt.Sprintf("message %d", i)})
		require.NoError(t, err)
	}
	rep, err := env.svc.GetConversationReport(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, analysis.StageNegotiation, rep.CurrentStage)
	assert.Equal(t, 70, rep.ProgressScore)
	assert.InDelta(t, 100, rep.ParticipationBalance, 0.001)

	_, err = env.svc.PostMessage(ctx, sess.SessionID, alice, domain.CreateMessageRequest{Content: "final"})
	require.NoError(t, err)
	rep, err = env.svc.GetConversationReport(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, analysis.StageResolution, rep.CurrentStage)
	assert.NotEmpty(t, rep.Recommendations)
}

func TestAdvanceStage(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess := env.activeSession(t, "Rent", "Deposit")

	rep, err := env.svc.AdvanceStage(ctx, sess.SessionID, bob)
	require.NoError(t, err)
	assert.Equal(t, analysis.StageDisputeClarification, rep.CurrentStage)
	assert.Equal(t, 20, rep.ProgressScore)

	for i := 0; i < 5; i++ {
		rep, err = env.svc.AdvanceStage(ctx, sess.SessionID, alice)
		require.NoError(t, err)
	}
	assert.Equal(t, analysis.StageResolution, rep.CurrentStage)
	assert.Equal(t, 80, rep.ProgressScore, "advance at resolution changes nothing")

	again, err := env.svc.GetConversationReport(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, analysis.StageResolution, again.CurrentStage)
	assert.Equal(t, analysis.StageInitial, again.DerivedStage)
}

func TestExtractInfo(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess := env.activeSession(t, "Rent", "Deposit")

	_, err := env.svc.PostMessage(ctx, sess.SessionID, alice, domain.CreateMessageRequest{Content: "The payment was late"})
	require.NoError(t, err)
	info, err := env.svc.ExtractInfo(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, analysis.SourceKeywords, info.Source)
	assert.Equal(t, "Payment Dispute", info.DisputeType)
	assert.Zero(t, env.llm.CallCount())

	for _, c := range []string{"Quality was poor", "I disagree"} {
		_, err := env.svc.PostMessage(ctx, sess.SessionID, bob, domain.CreateMessageRequest{Content: c})
		require.NoError(t, err)
	}
	env.llm.Response = "```json\n{\"dispute_type\":\"Deposit Dispute\",\"key_issues\":[\"Cleaning\"],\"positions\":{\"party_a\":\"refund\"}}\n```"
	info, err = env.svc.ExtractInfo(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, analysis.SourceAI, info.Source)
	assert.Equal(t, "Deposit Dispute", info.DisputeType)
	assert.Equal(t, "refund", info.Positions.PartyA)

	env.llm.Response = "not json"
	info, err = env.svc.ExtractInfo(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, analysis.SourceKeywords, info.Source)
}

func TestRequestMediator(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	sess := env.activeSession(t, "Rent", "Deposit")
	env.llm.Response = "Both parties agree the deposit exists."

	msg, err := env.svc.RequestMediator(ctx, sess.SessionID, alice, domain.MediatorActionSummary)
	require.NoError(t, err)
	assert.Equal(t, domain.SenderRoleMediator, msg.SenderRole)
	assert.Equal(t, domain.MessageTypeAIResponse, msg.MessageType)
	assert.Equal(t, "Both parties agree the deposit exists.", msg.Content)

	_, err = env.svc.RequestMediator(ctx, sess.SessionID, alice, "poem")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	env.llm.Err = errors.New("timeout")
	_, err = env.svc.RequestMediator(ctx, sess.SessionID, alice, domain.MediatorActionProgressAnalysis)
	assert.Equal(t, domain.KindUpstream, domain.KindOf(err))

	messages, err := env.svc.GetMessages(ctx, sess.SessionID, 0, "")
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestProfileCache(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	_, err := env.svc.GetProfile(ctx, alice)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	_, err = env.svc.UpsertProfile(ctx, alice, domain.ProfileRequest{FullName: "Alice", Email: "a@example.com"})
	require.NoError(t, err)
	p, err := env.svc.GetProfile(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.FullName)

	_, err = env.svc.UpsertProfile(ctx, alice, domain.ProfileRequest{FullName: "Alice B", Email: "a@example.com"})
	require.NoError(t, err)
	p, err = env.svc.GetProfile(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "Alice B", p.FullName, "upsert refreshes the cache")
}
