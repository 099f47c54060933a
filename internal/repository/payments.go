package store

import (
	"context"
	"database/sql"

	"github.com/xiaot623/gogo/mediator/internal/domain"
)

// CreatePayment records a checkout created with the payment provider.
func (s *SQLiteStore) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (checkout_id, session_id, amount_cents, discount_code, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		payment.CheckoutID, payment.SessionID, payment.AmountCents, nullString(payment.DiscountCode),
		payment.Status, payment.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetPayment retrieves a checkout by provider id.
func (s *SQLiteStore) GetPayment(ctx context.Context, checkoutID string) (*domain.Payment, error) {
	var p domain.Payment
	var code sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT checkout_id, session_id, amount_cents, discount_code, status, created_at FROM payments WHERE checkout_id = ?`,
		checkoutID).Scan(&p.CheckoutID, &p.SessionID, &p.AmountCents, &code, &p.Status, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.DiscountCode = code.String
	return &p, nil
}

// MarkPaymentPaid moves a pending checkout to paid.
func (s *SQLiteStore) MarkPaymentPaid(ctx context.Context, checkoutID string) (bool, error) {
	return affected(s.db.ExecContext(ctx,
		`UPDATE payments SET status = 'paid' WHERE checkout_id = ? AND status = 'pending'`,
		checkoutID))
}
