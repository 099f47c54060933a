package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/mediator/internal/adapter/payment"
	"github.com/xiaot623/gogo/mediator/internal/domain"
	"github.com/xiaot623/gogo/mediator/policy"
)

// CreateCheckout starts payment for a settlement whose edit round is complete.
func (s *Service) CreateCheckout(ctx context.Context, sessionID, callerID, discountCode string) (*domain.CheckoutResponse, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, sess, callerID, policy.ActionCheckout); err != nil {
		return nil, err
	}
	if sess.PaymentConfirmed {
		return nil, rejected("checkout", domain.InvalidTransition("settlement has already been paid"))
	}
	if !sess.PaymentEligible() {
		return nil, rejected("checkout", domain.InvalidTransition("both parties must complete their edits before payment"))
	}

	amount := payment.Price(discountCode)
	var email string
	if p := s.lookupProfile(ctx, callerID); p != nil {
		email = p.Email
	}

	checkout, err := s.payments.CreateCheckout(ctx, payment.CheckoutRequest{
		SessionID:    sessionID,
		SessionCode:  sess.Code,
		AmountCents:  amount,
		DiscountCode: discountCode,
		CustomerMail: email,
	})
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("checkout creation failed")
		return nil, domain.Upstream("payment", err)
	}

	if err := s.store.CreatePayment(ctx, &domain.Payment{
		CheckoutID:   checkout.ID,
		SessionID:    sessionID,
		AmountCents:  amount,
		DiscountCode: discountCode,
		Status:       domain.PaymentStatusPending,
		CreatedAt:    s.now(),
	}); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	return &domain.CheckoutResponse{
		CheckoutID:  checkout.ID,
		RedirectURL: checkout.URL,
		AmountCents: amount,
	}, nil
}

// ConfirmPayment applies a completed checkout. Only checkouts this service
// created are honored; the session comes from the recorded payment, never from
// event metadata. It reports whether anything changed.
func (s *Service) ConfirmPayment(ctx context.Context, checkoutID string) (bool, error) {
	if checkoutID == "" {
		return false, domain.ErrPaymentNotFound
	}
	p, err := s.store.GetPayment(ctx, checkoutID)
	if err != nil {
		return false, fmt.Errorf("failed to get payment: %w", err)
	}
	if p == nil {
		return false, domain.ErrPaymentNotFound
	}
	sessionID := p.SessionID
	if _, err := s.loadSession(ctx, sessionID); err != nil {
		return false, err
	}
	if _, err := s.store.MarkPaymentPaid(ctx, checkoutID); err != nil {
		return false, fmt.Errorf("failed to mark payment paid: %w", err)
	}

	ok, err := s.store.ConfirmPayment(ctx, sessionID, s.now())
	if err != nil {
		return false, fmt.Errorf("failed to confirm payment: %w", err)
	}
	if !ok {
		return false, nil
	}
	log.Info().Str("session_id", sessionID).Str("checkout_id", checkoutID).Msg("payment confirmed")
	if _, err := s.afterSessionWrite(ctx, sessionID); err != nil {
		return true, err
	}
	s.systemMessage(ctx, sessionID, "Payment confirmed. The settlement can now be sent for signature.")
	return true, nil
}
