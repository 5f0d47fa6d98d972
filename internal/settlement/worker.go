// Package settlement provides a background worker that retries x402
// payments which failed their facilitator settle call, and expires payment
// reservations that never completed.
package settlement

import (
	"context"
	"log"
	"sync"
	"time"

	"sho/internal/db"
	"sho/internal/x402gate"
)

// WorkerConfig holds configuration for the settlement worker.
type WorkerConfig struct {
	// RetryInterval is how often to check for failed settlements.
	RetryInterval time.Duration
	// MaxRetryAttempts is the maximum number of settlement retry attempts.
	MaxRetryAttempts int
	// BatchSize is the maximum number of settlements to process per retry cycle.
	BatchSize int
	// ExpirationCheckInterval is how often to check for expired reservations.
	ExpirationCheckInterval time.Duration
	// ReservationMaxAge is how long a reservation can sit without reaching a
	// terminal state before it is expired.
	ReservationMaxAge time.Duration
}

// DefaultWorkerConfig returns sensible defaults for the worker.
func DefaultWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		RetryInterval:           30 * time.Second,
		MaxRetryAttempts:        5,
		BatchSize:               100,
		ExpirationCheckInterval: 1 * time.Minute,
		ReservationMaxAge:       10 * time.Minute,
	}
}

// Worker retries failed x402 settlements and expires stale reservations,
// replaying failed settle calls through the same facilitator client the live
// x402 gate uses.
type Worker struct {
	store       *db.SettlementStore
	facilitator *x402gate.FacilitatorClient
	config      *WorkerConfig
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewWorker creates a new settlement worker. facilitator should be the same
// client instance the live Gate uses, obtained via Gate.Facilitator(), so
// retries authenticate identically to the original request.
func NewWorker(store *db.SettlementStore, facilitator *x402gate.FacilitatorClient, cfg *WorkerConfig) *Worker {
	if cfg == nil {
		cfg = DefaultWorkerConfig()
	}
	return &Worker{
		store:       store,
		facilitator: facilitator,
		config:      cfg,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the background worker.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(2)

	go func() {
		defer w.wg.Done()
		w.runRetryLoop(ctx)
	}()

	go func() {
		defer w.wg.Done()
		w.runExpirationLoop(ctx)
	}()

	log.Println("settlement worker started")
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	log.Println("settlement worker stopped")
}

func (w *Worker) runRetryLoop(ctx context.Context) {
	ticker := time.NewTicker(w.config.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.retryFailedSettlements(ctx)
		}
	}
}

func (w *Worker) runExpirationLoop(ctx context.Context) {
	ticker := time.NewTicker(w.config.ExpirationCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.expireStaleReservations(ctx)
		}
	}
}

// retryFailedSettlements replays every failed settlement still under the
// attempt ceiling whose backoff window has elapsed.
func (w *Worker) retryFailedSettlements(ctx context.Context) {
	settlements, err := w.store.PendingSettlements(ctx, w.config.MaxRetryAttempts, w.config.BatchSize)
	if err != nil {
		log.Printf("failed to get pending settlements: %v", err)
		return
	}
	if len(settlements) == 0 {
		return
	}

	log.Printf("retrying %d failed settlements", len(settlements))

	for _, s := range settlements {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		backoff := w.calculateBackoff(s.Attempts)
		if time.Since(s.CreatedAt) < backoff {
			continue
		}

		if err := w.store.MarkSettling(ctx, s.ID); err != nil {
			log.Printf("failed to mark settlement %s as settling: %v", s.ID, err)
			continue
		}

		txHash, err := w.settle(ctx, s.AsPendingSettlement())
		if err != nil {
			log.Printf("settlement retry failed for %s (attempt %d): %v", s.ID, s.Attempts+1, err)
			if err := w.store.Fail(ctx, s.ID.String(), err.Error()); err != nil {
				log.Printf("failed to record settlement failure: %v", err)
			}
			continue
		}

		if err := w.store.Complete(ctx, s.ID.String(), txHash); err != nil {
			log.Printf("failed to mark settlement %s as completed: %v", s.ID, err)
			continue
		}

		log.Printf("settled %s on retry attempt %d", s.ID, s.Attempts+1)
	}
}

func (w *Worker) expireStaleReservations(ctx context.Context) {
	count, err := w.store.ExpireStaleReservations(ctx, w.config.ReservationMaxAge)
	if err != nil {
		log.Printf("failed to expire stale reservations: %v", err)
		return
	}
	if count > 0 {
		log.Printf("expired %d stale settlement reservations", count)
	}
}

// calculateBackoff returns the backoff duration for a given attempt number.
// Exponential: 5s, 10s, 20s, 40s, 80s, capped at 5m.
func (w *Worker) calculateBackoff(attempts int) time.Duration {
	baseDelay := 5 * time.Second
	maxDelay := 5 * time.Minute

	delay := baseDelay
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
			break
		}
	}

	return delay
}

// settle rebuilds the original facilitator request from the stored
// reservation and replays Settle through the shared facilitator client.
func (w *Worker) settle(ctx context.Context, rec x402gate.PendingSettlement) (string, error) {
	req, err := x402gate.RebuildFacilitatorRequest(rec)
	if err != nil {
		return "", err
	}

	resp, err := w.facilitator.Settle(ctx, req)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", errSettleRejected(resp.ErrorReason)
	}
	return resp.TxHash, nil
}

type errSettleRejected string

func (e errSettleRejected) Error() string { return "facilitator rejected settlement: " + string(e) }
