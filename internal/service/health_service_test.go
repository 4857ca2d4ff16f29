package service

import (
	"context"
	"errors"
	"testing"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

type fakeQueue struct{ connected bool }

func (q fakeQueue) IsConnected() bool { return q.connected }

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		queue      QueueProbe
		wantStatus string
		wantQueue  string
	}{
		{"all up", fakePinger{}, fakeQueue{connected: true}, StatusHealthy, StatusConnected},
		{"queue disabled", fakePinger{}, nil, StatusHealthy, StatusDisabled},
		{"queue down", fakePinger{}, fakeQueue{connected: false}, StatusDegraded, StatusDisconnected},
		{"database down", fakePinger{err: errors.New("refused")}, fakeQueue{connected: true}, StatusUnhealthy, StatusConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthService(tt.db, tt.queue, "test")
			status := h.CheckHealth(context.Background())

			AssertEqual(t, status.Status, tt.wantStatus)
			AssertEqual(t, status.Services["queue"], tt.wantQueue)
			AssertEqual(t, status.Version, "test")
		})
	}
}
