package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sho/internal/x402gate"
)

// SettlementStatus is the lifecycle state of one audited x402 payment
// attempt, picking up where the gate's own NO_PAYMENT -> CHALLENGED ->
// VERIFIED -> SETTLED state machine leaves off.
type SettlementStatus string

const (
	SettlementReserved SettlementStatus = "reserved"
	SettlementSettling SettlementStatus = "settling"
	SettlementComplete SettlementStatus = "complete"
	SettlementFailed   SettlementStatus = "failed"
	SettlementExpired  SettlementStatus = "expired"
)

// Settlement is one row of the settlement audit log.
type Settlement struct {
	ID                   uuid.UUID
	Payer                string
	Route                string
	Network              string
	Asset                string
	PayTo                string
	Amount               string // atomic units, decimal string
	PayloadJSON          string
	Status               SettlementStatus
	FacilitatorPaymentID string
	Attempts             int
	LastError            string
	CreatedAt            time.Time
	SettledAt            *time.Time
}

// AsPendingSettlement converts a stored row back into the shape the gate
// originally reserved it as, so the retry worker can rebuild a facilitator
// request from it.
func (s Settlement) AsPendingSettlement() x402gate.PendingSettlement {
	return x402gate.PendingSettlement{
		Payer:       s.Payer,
		Route:       s.Route,
		Network:     s.Network,
		Asset:       s.Asset,
		PayTo:       s.PayTo,
		Amount:      s.Amount,
		PayloadJSON: s.PayloadJSON,
	}
}

// SettlementStore implements x402gate.AuditLog against Postgres, giving the
// retry worker a durable backlog of payments that failed verify or settle.
type SettlementStore struct {
	db *DB
}

// NewSettlementStore wraps db as an x402gate.AuditLog.
func NewSettlementStore(db *DB) *SettlementStore {
	return &SettlementStore{db: db}
}

var _ x402gate.AuditLog = (*SettlementStore)(nil)

// Reserve records a payment attempt before the facilitator verify/settle
// round trip, returning the row's ID as the record the gate later completes
// or fails.
func (s *SettlementStore) Reserve(ctx context.Context, rec x402gate.PendingSettlement) (string, error) {
	query := `
		INSERT INTO x402_settlements (payer, route, network, asset, pay_to, amount, payload_json, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var id uuid.UUID
	err := s.db.QueryRow(ctx, query, rec.Payer, rec.Route, rec.Network, rec.Asset, rec.PayTo, rec.Amount, rec.PayloadJSON, SettlementReserved).
		Scan(&id)
	if err != nil {
		return "", fmt.Errorf("db: reserve settlement: %w", err)
	}
	return id.String(), nil
}

// Complete marks a settlement as settled by the facilitator.
func (s *SettlementStore) Complete(ctx context.Context, id, facilitatorPaymentID string) error {
	recID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("db: complete settlement: bad id %q: %w", id, err)
	}
	query := `
		UPDATE x402_settlements
		SET status = $2, facilitator_payment_id = $3, settled_at = NOW()
		WHERE id = $1
	`
	if _, err := s.db.ExecResult(ctx, query, recID, SettlementComplete, facilitatorPaymentID); err != nil {
		return fmt.Errorf("db: complete settlement: %w", err)
	}
	return nil
}

// Fail records a verify/settle failure and increments the retry counter.
func (s *SettlementStore) Fail(ctx context.Context, id, reason string) error {
	recID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("db: fail settlement: bad id %q: %w", id, err)
	}
	query := `
		UPDATE x402_settlements
		SET status = $2, last_error = $3, attempts = attempts + 1
		WHERE id = $1
	`
	if _, err := s.db.ExecResult(ctx, query, recID, SettlementFailed, reason); err != nil {
		return fmt.Errorf("db: fail settlement: %w", err)
	}
	return nil
}

// MarkSettling transitions a failed settlement back to settling so the retry
// worker can attempt it again without a second worker picking it up too.
func (s *SettlementStore) MarkSettling(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE x402_settlements
		SET status = $2
		WHERE id = $1 AND status = $3
	`
	result, err := s.db.ExecResult(ctx, query, id, SettlementSettling, SettlementFailed)
	if err != nil {
		return fmt.Errorf("db: mark settling: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("db: mark settling: %s not in failed state", id)
	}
	return nil
}

// PendingSettlements returns failed settlements still under maxAttempts,
// oldest first, for the retry worker to replay against the facilitator.
func (s *SettlementStore) PendingSettlements(ctx context.Context, maxAttempts, limit int) ([]*Settlement, error) {
	query := `
		SELECT id, payer, route, network, asset, pay_to, amount, payload_json, status,
		       facilitator_payment_id, attempts, last_error, created_at, settled_at
		FROM x402_settlements
		WHERE status = $1 AND attempts < $2
		ORDER BY created_at ASC
		LIMIT $3
	`
	rows, err := s.db.Query(ctx, query, SettlementFailed, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("db: query pending settlements: %w", err)
	}
	defer rows.Close()

	var out []*Settlement
	for rows.Next() {
		var row Settlement
		if err := rows.Scan(&row.ID, &row.Payer, &row.Route, &row.Network, &row.Asset, &row.PayTo, &row.Amount, &row.PayloadJSON,
			&row.Status, &row.FacilitatorPaymentID, &row.Attempts, &row.LastError, &row.CreatedAt, &row.SettledAt); err != nil {
			return nil, fmt.Errorf("db: scan settlement: %w", err)
		}
		out = append(out, &row)
	}
	return out, rows.Err()
}

// ExpireStaleReservations marks reservations that never reached a terminal
// state within olderThan as expired, e.g. when the process crashed between
// reserving and calling the facilitator.
func (s *SettlementStore) ExpireStaleReservations(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE x402_settlements
		SET status = $1
		WHERE status = $2 AND created_at < NOW() - make_interval(secs => $3)
	`
	result, err := s.db.ExecResult(ctx, query, SettlementExpired, SettlementReserved, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("db: expire stale reservations: %w", err)
	}
	return result.RowsAffected(), nil
}
