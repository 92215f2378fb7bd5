package monitor

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// anchor is one user's drop baseline. Its mutex serialises the scheduler
// tick against enable/disable for the same user; different users share
// nothing.
type anchor struct {
	mu          sync.Mutex
	anchorUSD   decimal.Decimal
	anchorSetAt time.Time
	lastAlertAt time.Time
}

func (a *anchor) seeded() bool {
	return !a.anchorSetAt.IsZero()
}

// anchorTable is the in-memory keyed store of anchors. It holds no durable
// state: a restart starts empty and anchors re-seed from storage's enabled
// flags on the next tick.
type anchorTable struct {
	mu      sync.RWMutex
	anchors map[int64]*anchor
}

func newAnchorTable() *anchorTable {
	return &anchorTable{anchors: make(map[int64]*anchor)}
}

// getOrCreate returns the user's anchor entry, creating an unseeded one if
// absent.
func (t *anchorTable) getOrCreate(userID int64) *anchor {
	t.mu.RLock()
	a, ok := t.anchors[userID]
	t.mu.RUnlock()
	if ok {
		return a
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if a, ok := t.anchors[userID]; ok {
		return a
	}
	a = &anchor{}
	t.anchors[userID] = a
	return a
}

func (t *anchorTable) delete(userID int64) {
	t.mu.Lock()
	delete(t.anchors, userID)
	t.mu.Unlock()
}

// retain drops anchors for users no longer in the enabled set, keeping the
// table in step with the storage-owned enabled flags. The enabled set is a
// snapshot taken at asOf, so anchors seeded after that instant are kept even
// when absent from it: a concurrent Enable may have landed between the
// snapshot and this sweep, and its baseline must survive.
func (t *anchorTable) retain(enabled map[int64]struct{}, asOf time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for userID, a := range t.anchors {
		if _, ok := enabled[userID]; ok {
			continue
		}
		a.mu.Lock()
		seededAfter := a.anchorSetAt.After(asOf)
		a.mu.Unlock()
		if !seededAfter {
			delete(t.anchors, userID)
		}
	}
}
