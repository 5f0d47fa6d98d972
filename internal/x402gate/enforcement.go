package x402gate

import (
	"sync"
	"time"
)

// Tier is the enforcement disposition for a payer address.
type Tier int

const (
	TierAllow     Tier = 0
	TierCooldown  Tier = 1
	TierHardBlock Tier = 3
)

const (
	rollingWindow  = 7 * 24 * time.Hour
	gracePeriod    = 600 * time.Second
	hardBlockAfter = 10
)

// Enforcement tracks failure timestamps per payer address, pruned to a
// 7-day rolling window, and promotes a payer to a hard block once that
// window accumulates 10 failures.
type Enforcement struct {
	mu         sync.Mutex
	failures   map[string][]time.Time
	hardBlocks map[string]bool
	now        func() time.Time
}

// NewEnforcement builds an empty enforcement tracker.
func NewEnforcement() *Enforcement {
	return &Enforcement{
		failures:   make(map[string][]time.Time),
		hardBlocks: make(map[string]bool),
		now:        time.Now,
	}
}

// Check reports a payer's current tier without recording anything.
func (e *Enforcement) Check(address string) (tier Tier, cooldownRemaining time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.hardBlocks[address] {
		return TierHardBlock, 0
	}

	now := e.now()
	recent := e.pruneLocked(address, now)
	if len(recent) == 0 {
		return TierAllow, 0
	}

	last := recent[len(recent)-1]
	since := now.Sub(last)
	if since < gracePeriod {
		return TierCooldown, gracePeriod - since
	}
	return TierAllow, 0
}

// RecordFailure appends a failure timestamp for the payer and promotes it
// to a hard block once 10 failures accumulate within the rolling window.
func (e *Enforcement) RecordFailure(address string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	recent := e.pruneLocked(address, now)
	recent = append(recent, now)
	e.failures[address] = recent

	if len(recent) >= hardBlockAfter {
		e.hardBlocks[address] = true
	}
}

// Clear manually lifts a hard block, the only way one is removed.
func (e *Enforcement) Clear(address string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.hardBlocks, address)
	delete(e.failures, address)
}

// pruneLocked drops failures older than the rolling window. Caller must
// hold e.mu.
func (e *Enforcement) pruneLocked(address string, now time.Time) []time.Time {
	existing := e.failures[address]
	cutoff := now.Add(-rollingWindow)
	pruned := existing[:0:0]
	for _, t := range existing {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}
	e.failures[address] = pruned
	return pruned
}
