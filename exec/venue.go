package exec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"predictor/market"
)

// ErrNotArmed is returned when real execution is attempted without both
// arming confirmations in place.
var ErrNotArmed = errors.New("real trading not armed")

// OrderPlacer is the slice of the venue client the real executor needs.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order market.Order) (venueRef string, fillPrice market.Price, err error)
}

// Compile-time interface check.
var _ Executor = (*Venue)(nil)

// Venue submits orders to the real venue. It fails closed unless two
// independent confirmations are present: the persisted config flag and the
// explicit runtime flag. One flag alone never trades real money.
type Venue struct {
	placer     OrderPlacer
	configArm  bool // live_trading: true in the config file
	runtimeArm bool // --live passed on this invocation
}

// NewVenue builds the real executor. Both arm flags are captured at
// construction; there is no way to arm it later.
func NewVenue(placer OrderPlacer, configArm, runtimeArm bool) *Venue {
	return &Venue{placer: placer, configArm: configArm, runtimeArm: runtimeArm}
}

// Armed reports whether both confirmations are present.
func (v *Venue) Armed() bool {
	return v.configArm && v.runtimeArm
}

// Execute submits the order to the venue and records the venue's own
// reference id in the fill. A submission failure is returned as an explicit
// error; callers must not retry automatically, since a retried real order
// risks a duplicate position.
func (v *Venue) Execute(ctx context.Context, order market.Order) (Fill, error) {
	if !v.Armed() {
		return Fill{}, fmt.Errorf("order %s: %w (config=%t runtime=%t)",
			order.ID, ErrNotArmed, v.configArm, v.runtimeArm)
	}
	if order.Simulated {
		return Fill{}, fmt.Errorf("order %s: simulated order routed to real executor", order.ID)
	}

	ref, fillPrice, err := v.placer.PlaceOrder(ctx, order)
	if err != nil {
		return Fill{}, fmt.Errorf("submit order %s to venue: %w", order.ID, err)
	}
	return Fill{
		OrderID:  order.ID,
		Price:    fillPrice,
		FilledAt: time.Now(),
		VenueRef: ref,
	}, nil
}

// Settle applies the shared settlement formula: the fee and payout structure
// is venue-defined, not execution-mode-defined.
func (v *Venue) Settle(order market.Order, fill Fill, outcome market.Outcome, at time.Time) SettledTrade {
	return Settle(order, fill, outcome, at)
}
