package handler

import (
	"context"
	"net/http"
	"time"
)

// HeightSource reports the last block height the ingestion loop has fully
// processed. Zero means ingestion has not bootstrapped yet or is not running.
type HeightSource interface {
	LastProcessedHeight() uint64
}

// MarketCounter reports how many market records the datastore holds.
type MarketCounter interface {
	Count(ctx context.Context) (int64, error)
}

// StatusHandler serves a snapshot of the bot's run state.
type StatusHandler struct {
	Mode    string
	started time.Time
	heights HeightSource
	markets MarketCounter
}

// NewStatusHandler creates a StatusHandler. heights and markets may be nil
// when the corresponding subsystem is not running in the current mode.
func NewStatusHandler(mode string, heights HeightSource, markets MarketCounter) *StatusHandler {
	return &StatusHandler{
		Mode:    mode,
		started: time.Now().UTC(),
		heights: heights,
		markets: markets,
	}
}

// GetStatus responds with the current mode, uptime, last processed block
// height, and stored market count.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"mode":           h.Mode,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}

	if h.heights != nil {
		resp["last_processed_height"] = h.heights.LastProcessedHeight()
	}
	if h.markets != nil {
		if count, err := h.markets.Count(r.Context()); err == nil {
			resp["market_count"] = count
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
