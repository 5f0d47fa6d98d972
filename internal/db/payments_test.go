package db

import (
	"context"
	"testing"
	"time"

	"sho/internal/config"
	"sho/internal/x402gate"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TestSettlementLifecycle exercises reserve -> fail -> retry -> complete,
// the path a payment takes when the first settle call to the facilitator
// fails and the retry worker picks it back up.
func TestSettlementLifecycle(t *testing.T) {
	pool := getTestPool(t)
	if pool == nil {
		t.Skip("No database connection available")
	}
	store := NewSettlementStore(NewFromPool(pool))
	ctx := context.Background()

	rec := x402gate.PendingSettlement{
		Payer:   "0x1234567890123456789012345678901234567890",
		Route:   "/oracle/btcusd",
		Network: "eip155:8453",
		Asset:   "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		PayTo:   "0x0987654321098765432109876543210987654321",
		Amount:  "1000",
	}

	id, err := store.Reserve(ctx, rec)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty settlement id")
	}

	if err := store.Fail(ctx, id, "facilitator unavailable"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	pending, err := store.PendingSettlements(ctx, 5, 10)
	if err != nil {
		t.Fatalf("PendingSettlements: %v", err)
	}
	var found bool
	for _, p := range pending {
		if p.ID.String() == id {
			found = true
			if p.Status != SettlementFailed {
				t.Errorf("expected status %s, got %s", SettlementFailed, p.Status)
			}
			if p.Attempts != 1 {
				t.Errorf("expected 1 attempt, got %d", p.Attempts)
			}
			if p.LastError != "facilitator unavailable" {
				t.Errorf("expected stored error message, got %q", p.LastError)
			}
		}
	}
	if !found {
		t.Fatal("expected reservation in pending settlements")
	}

	recID := pending[0].ID
	if err := store.MarkSettling(ctx, recID); err != nil {
		t.Fatalf("MarkSettling: %v", err)
	}

	if err := store.Complete(ctx, id, "facilitator-payment-123"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	// Cleanup.
	_, _ = pool.Exec(ctx, "DELETE FROM x402_settlements WHERE id = $1", recID)
}

// TestExpireStaleReservations confirms reservations that never reach a
// terminal state age out.
func TestExpireStaleReservations(t *testing.T) {
	pool := getTestPool(t)
	if pool == nil {
		t.Skip("No database connection available")
	}
	store := NewSettlementStore(NewFromPool(pool))
	ctx := context.Background()

	id, err := store.Reserve(ctx, x402gate.PendingSettlement{
		Payer:   "0x1234567890123456789012345678901234567890",
		Route:   "/oracle/btcusd",
		Network: "eip155:8453",
		Asset:   "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		PayTo:   "0x0987654321098765432109876543210987654321",
		Amount:  "1000",
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	// Backdate the reservation so it reads as stale.
	_, err = pool.Exec(ctx, "UPDATE x402_settlements SET created_at = NOW() - INTERVAL '1 hour' WHERE id = $1", id)
	if err != nil {
		t.Fatalf("backdate reservation: %v", err)
	}

	count, err := store.ExpireStaleReservations(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("ExpireStaleReservations: %v", err)
	}
	if count < 1 {
		t.Error("expected at least 1 expired reservation")
	}

	_, _ = pool.Exec(ctx, "DELETE FROM x402_settlements WHERE id = $1", id)
}

// getTestPool returns a connection pool for testing, or nil if unavailable.
func getTestPool(t *testing.T) *pgxpool.Pool {
	cfg := config.Load().Database
	if cfg.Password == "" {
		return nil
	}

	db, err := New(&Config{
		Host: cfg.Host, Port: cfg.Port, User: cfg.User,
		Password: cfg.Password, Name: cfg.Name, SSLMode: cfg.SSLMode, MaxConns: cfg.MaxConns,
	})
	if err != nil {
		t.Logf("Could not connect to database: %v", err)
		return nil
	}

	return db.pool
}
