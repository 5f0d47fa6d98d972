package dlc

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PriceFetcher resolves the current price for the scheduler's pair —
// backed by the feed aggregator (§4.B) in production.
type PriceFetcher func(ctx context.Context) (price float64, sources []string, err error)

// Scheduler drives the DLC attest/announce cadence: attest the current
// hour's event, keep a 24-hour horizon of announcements ahead of it, and
// sleep until the next hour boundary.
type Scheduler struct {
	attestor *Attestor
	store    *Store
	pair     string
	fetch    PriceFetcher
	log      *slog.Logger
}

// NewScheduler builds a Scheduler for one pair.
func NewScheduler(attestor *Attestor, store *Store, pair string, fetch PriceFetcher, log *slog.Logger) *Scheduler {
	return &Scheduler{attestor: attestor, store: store, pair: pair, fetch: fetch, log: log}
}

// AnnounceUpcoming ensures announcements exist for the next n hourly
// events, skipping any that already exist. Returns the count created.
func (s *Scheduler) AnnounceUpcoming(ctx context.Context, n int, now time.Time) (int, error) {
	created := 0
	for _, maturity := range NextHours(n, now) {
		eventID := EventID(s.pair, maturity)
		if s.store.AnnouncementExists(eventID) {
			continue
		}
		if _, err := s.attestor.CreateAnnouncement(s.pair, maturity, now); err != nil {
			return created, fmt.Errorf("dlc: announce %s: %w", eventID, err)
		}
		s.log.Info("dlc announced", "event_id", eventID)
		created++
	}
	return created, nil
}

// AttestCurrentHour attests the current hour's event, creating its
// announcement first if one is missing, and does nothing if it has
// already been attested.
func (s *Scheduler) AttestCurrentHour(ctx context.Context, now time.Time) (*Attestation, error) {
	maturity := CurrentHour(now)
	eventID := EventID(s.pair, maturity)

	if s.store.AttestationExists(eventID) {
		s.log.Info("dlc already attested", "event_id", eventID)
		return nil, nil
	}

	if !s.store.AnnouncementExists(eventID) {
		s.log.Warn("dlc event not announced, announcing now", "event_id", eventID)
		if _, err := s.attestor.CreateAnnouncement(s.pair, maturity, now); err != nil {
			return nil, err
		}
	}

	price, sources, err := s.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("dlc: fetch price for %s: %w", eventID, err)
	}
	s.log.Info("dlc price fetched", "event_id", eventID, "price", price, "sources", sources)

	att, err := s.attestor.CreateAttestation(s.pair, maturity, price, now)
	if err != nil {
		return nil, err
	}
	s.log.Info("dlc attested", "event_id", eventID, "price", att.Price, "digits", att.PriceDigits)
	return &att, nil
}

// RunOnce attests the current hour and tops up the 24-hour announcement
// horizon, then returns — the --once mode.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) error {
	if _, err := s.AttestCurrentHour(ctx, now); err != nil {
		return err
	}
	created, err := s.AnnounceUpcoming(ctx, 24, now)
	if err != nil {
		return err
	}
	s.log.Info("dlc announced upcoming events", "count", created)
	return nil
}

// RunLoop runs forever: an initial attest+announce pass, then sleeps
// until each hour boundary (plus a 5-second buffer) and repeats. It never
// cancels mid-cycle; ctx is only observed between cycles.
func (s *Scheduler) RunLoop(ctx context.Context, nowFn func() time.Time) error {
	cycleCtx := context.WithoutCancel(ctx)
	if err := s.RunOnce(cycleCtx, nowFn()); err != nil {
		s.log.Error("dlc cycle failed", "error", err)
	}

	for {
		wait := SecondsUntilNextHour(nowFn())
		s.log.Info("dlc sleeping until next hour", "seconds", wait.Seconds())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if err := s.RunOnce(cycleCtx, nowFn()); err != nil {
			s.log.Error("dlc cycle failed", "error", err)
		}
	}
}
