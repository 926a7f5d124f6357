// Package lifecycle implements the driver loop that advances markets
// through End and AutoResolve by issuing transactions. State is never
// cached: every poll recomputes each market's required transition from a
// fresh on-chain read.
package lifecycle

import (
	"time"

	"github.com/Peer2Pepu/p2p-sub001/internal/domain"
)

// Action is the transition the driver should attempt for one market in one
// poll cycle.
type Action int

const (
	// ActionNone: no transition is due yet.
	ActionNone Action = iota
	// ActionEnd: the market is active and its end time has been reached.
	ActionEnd
	// ActionAutoResolve: the market is ended, carries a price feed, is not
	// yet resolved, and its resolution window has closed.
	ActionAutoResolve
	// ActionSkip: the market is terminal for this subsystem.
	ActionSkip
)

// String returns the action name for logs.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionEnd:
		return "end"
	case ActionAutoResolve:
		return "auto_resolve"
	case ActionSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Decide computes the required transition for a market at the given time.
//
// An ended market without a price feed is terminal here: it awaits the
// external assertion/vote resolution path. A market with a feed but an
// unexpired resolution window is left alone until the window closes.
func Decide(m domain.OnChainMarket, now time.Time) Action {
	switch m.State {
	case domain.MarketStateActive:
		if !m.EndTime.IsZero() && !now.Before(m.EndTime) {
			return ActionEnd
		}
		return ActionNone
	case domain.MarketStateEnded:
		if m.HasPriceFeed() && !m.IsResolved &&
			!m.ResolutionEndTime.IsZero() && !now.Before(m.ResolutionEndTime) {
			return ActionAutoResolve
		}
		return ActionNone
	case domain.MarketStateResolved, domain.MarketStateCancelled:
		return ActionSkip
	default:
		return ActionSkip
	}
}
