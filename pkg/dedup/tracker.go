// Package dedup tracks which orders have already produced a notification
// so the push and poll paths never announce the same fill twice.
package dedup

import (
	"errors"
	"fmt"

	"github.com/raykavin/tradesharer/pkg/core"
	"github.com/raykavin/tradesharer/pkg/logger"
	"github.com/tidwall/buntdb"
)

// Tracker records order observations for the lifetime of a pipeline run.
// State lives in an in-memory BuntDB and is discarded on Close; entries
// are never evicted within a session.
type Tracker struct {
	db  *buntdb.DB
	log logger.Logger
}

// NewTracker creates an empty tracker
func NewTracker(log logger.Logger) (*Tracker, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open tracker storage: %w", err)
	}

	return &Tracker{db: db, log: log}, nil
}

// ShouldNotify reports whether a notification should go out for the given
// order observation and records the observation. It returns true exactly
// once per order id: the first time the id is seen with status "filled".
//
// Non-filled statuses are recorded too, so a later poll can tell "seen
// before, still open" from "never seen". A recorded fill is sticky: a
// later observation with any status never re-arms the id. Orders without
// an id cannot be tracked and are notified whenever they report filled.
func (t *Tracker) ShouldNotify(id, status string) bool {
	if id == "" {
		return status == core.OrderStatusFilled
	}

	notify := false
	err := t.db.Update(func(tx *buntdb.Tx) error {
		prev, err := tx.Get(id)
		if err != nil && !errors.Is(err, buntdb.ErrNotFound) {
			return err
		}

		if prev == core.OrderStatusFilled {
			return nil
		}

		if status == core.OrderStatusFilled {
			notify = true
		}

		_, _, err = tx.Set(id, status, nil)
		return err
	})
	if err != nil {
		// Suppress on storage failure: a missed notification is preferable
		// to a duplicate one.
		t.log.WithError(err).WithField("order_id", id).Error("tracker update failed")
		return false
	}

	return notify
}

// Status returns the last recorded status for an order id.
func (t *Tracker) Status(id string) (string, bool) {
	var status string
	err := t.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(id)
		if err != nil {
			return err
		}
		status = value
		return nil
	})
	if err != nil {
		return "", false
	}
	return status, true
}

// Len returns the number of tracked orders
func (t *Tracker) Len() int {
	var n int
	_ = t.db.View(func(tx *buntdb.Tx) error {
		var err error
		n, err = tx.Len()
		return err
	})
	return n
}

// Close discards the tracker state
func (t *Tracker) Close() error {
	return t.db.Close()
}
