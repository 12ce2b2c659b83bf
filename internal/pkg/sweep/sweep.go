package sweep

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Store interface {
	TransactionsMarkOverdue(ctx context.Context, cutoff time.Time) (int64, error)
}

type Result struct {
	Success bool  `json:"success"`
	Updated int64 `json:"updated"`
}

// Sweeper marks pending transactions as overdue once their due date is
// before yesterday in the business time zone.
type Sweeper struct {
	store    Store
	logger   *zap.SugaredLogger
	location *time.Location
	now      func() time.Time
}

func New(store Store, location *time.Location, logger *zap.SugaredLogger) *Sweeper {
	if location == nil {
		location = time.UTC
	}
	return &Sweeper{
		store:    store,
		logger:   logger,
		location: location,
		now:      time.Now,
	}
}

func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Cutoff is midnight at the start of yesterday in loc. Due dates strictly
// before it are overdue.
func Cutoff(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()-1, 0, 0, 0, 0, loc)
}

func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	cutoff := Cutoff(s.now(), s.location)
	updated, err := s.store.TransactionsMarkOverdue(ctx, cutoff)
	if err != nil {
		return Result{}, fmt.Errorf("store.TransactionsMarkOverdue: %w", err)
	}
	s.logger.Infow("overdue sweep finished", "cutoff", cutoff.Format("2006-01-02"), "updated", updated)
	return Result{Success: true, Updated: updated}, nil
}

// Respond runs the sweep and renders the HTTP status and JSON body.
func (s *Sweeper) Respond(ctx context.Context) (int, []byte) {
	result, err := s.Run(ctx)
	if err != nil {
		s.logger.Errorf("sweep.Run: %v", err)
		b, _ := json.Marshal(map[string]string{"error": err.Error()})
		return http.StatusInternalServerError, b
	}
	b, _ := json.Marshal(result)
	return http.StatusOK, b
}

// Every runs the sweep on each tick until ctx is done.
func (s *Sweeper) Every(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
		if _, err := s.Run(ctx); err != nil {
			s.logger.Errorf("sweep.Run: %v", err)
		}
	}
}
