package handler

import (
	"context"
	"net/http"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/scheduler"
)

// Ticker runs one scheduler poll cycle. *scheduler.Poller satisfies it.
type Ticker interface {
	Tick(ctx context.Context) (*scheduler.TickReport, error)
}

// SchedulerHandler exposes a manual scheduler tick
type SchedulerHandler struct {
	ticker Ticker
}

// NewSchedulerHandler creates a new SchedulerHandler
func NewSchedulerHandler(ticker Ticker) *SchedulerHandler {
	return &SchedulerHandler{ticker: ticker}
}

// Tick handles POST /scheduler/tick and returns the tick report. Like a
// direct send, the tick is not canceled when the client goes away.
func (h *SchedulerHandler) Tick(w http.ResponseWriter, r *http.Request) {
	report, err := h.ticker.Tick(context.WithoutCancel(r.Context()))
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}
	WriteOK(w, r, report)
}
