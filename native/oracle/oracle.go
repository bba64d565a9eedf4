// Package oracle provides the unit price feed consumed by the risk engine.
// Prices are pushed by the owner and carry an explicit validity window; when
// a price nears expiry the oracle schedules a one-shot refresh callback for
// itself rather than running a polling loop.
package oracle

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sunidhiii/mando-lending-borrowing-sub000/crypto"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/schedule"
)

var (
	ErrPriceUnset = errors.New("oracle: price not set")
	ErrPriceStale = errors.New("oracle: price validity window elapsed")
	errNotOwner   = errors.New("oracle: caller is not the owner")
)

// RefreshFunc is invoked when a reserve's price approaches the end of its
// validity window. Implementations typically fetch a fresh quote and call
// SetPrice again, which re-arms the cycle.
type RefreshFunc func(reserveID string)

type entry struct {
	price      *big.Int
	validUntil time.Time
}

// Oracle is an in-memory price store with deferred self-refresh. The mutex
// guards against the refresh timer goroutine; protocol operations themselves
// remain serialized by the host.
type Oracle struct {
	mu        sync.Mutex
	owner     crypto.Address
	prices    map[string]entry
	pending   map[string]uuid.UUID
	scheduler *schedule.Scheduler
	refresh   RefreshFunc
	logger    *slog.Logger
	now       func() time.Time
}

// New returns an empty oracle. The scheduler may be nil, in which case no
// refresh tasks are armed and prices simply expire.
func New(owner crypto.Address, scheduler *schedule.Scheduler, logger *slog.Logger) *Oracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Oracle{
		owner:     owner,
		prices:    make(map[string]entry),
		pending:   make(map[string]uuid.UUID),
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
	}
}

// SetRefresh installs the callback fired shortly before a price expires.
func (o *Oracle) SetRefresh(fn RefreshFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refresh = fn
}

// SetPrice stores the 1e9 fixed-point unit price for a reserve, valid for
// validFor from now. Owner-gated. Any previously armed refresh task for the
// reserve is cancelled before the next one is scheduled, so repeated updates
// never stack callbacks.
func (o *Oracle) SetPrice(caller crypto.Address, reserveID string, price *big.Int, validFor time.Duration) error {
	if !caller.Equal(o.owner) {
		return errNotOwner
	}
	if price == nil || price.Sign() <= 0 {
		return fmt.Errorf("oracle: price must be positive for %q", reserveID)
	}
	if validFor <= 0 {
		return fmt.Errorf("oracle: validity window must be positive for %q", reserveID)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.prices[reserveID] = entry{
		price:      new(big.Int).Set(price),
		validUntil: o.now().Add(validFor),
	}

	if taskID, ok := o.pending[reserveID]; ok {
		o.scheduler.Cancel(taskID)
		delete(o.pending, reserveID)
	}
	if o.scheduler == nil || o.refresh == nil {
		return nil
	}

	// Fire the refresh at ~90% of the window so a fresh quote can land
	// before consumers start seeing a stale price.
	lead := validFor / 10
	delay := validFor - lead
	refresh := o.refresh
	taskID, err := o.scheduler.Schedule(delay, validFor, func() {
		o.mu.Lock()
		delete(o.pending, reserveID)
		o.mu.Unlock()
		refresh(reserveID)
	})
	if err != nil {
		// A failed reschedule must not corrupt the stored price; the
		// quote simply expires without a follow-up.
		o.logger.Warn("price refresh scheduling failed", "reserve", reserveID, "error", err)
		return nil
	}
	o.pending[reserveID] = taskID
	return nil
}

// Price returns the current unit price for a reserve. Unset and expired
// prices fail the lookup, which aborts the calling operation.
func (o *Oracle) Price(reserveID string) (*big.Int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.prices[reserveID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPriceUnset, reserveID)
	}
	if o.now().After(e.validUntil) {
		return nil, fmt.Errorf("%w: %s", ErrPriceStale, reserveID)
	}
	return new(big.Int).Set(e.price), nil
}
