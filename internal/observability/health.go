package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/render"
)

// Checker is a dependency the readiness check verifies, such as the Postgres
// pool or the Redis queue. Check must honour ctx.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc struct {
	Component string
	Fn        func(ctx context.Context) error
}

func (f CheckerFunc) Name() string                    { return f.Component }
func (f CheckerFunc) Check(ctx context.Context) error { return f.Fn(ctx) }

// readinessReport is the body of the readiness check. Orchestrators only look
// at the status code; the body is for operators.
type readinessReport struct {
	Ready     bool              `json:"ready"`
	Status    map[string]string `json:"status"`
	CheckedAt time.Time         `json:"checked_at"`
}

func (s *Server) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness runs every checker concurrently under the configured timeout and
// answers 503 when any of them fails.
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	errs := make([]error, len(s.checkers))
	var wg sync.WaitGroup
	for i, c := range s.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.Check(ctx)
		}()
	}
	wg.Wait()

	report := readinessReport{
		Ready:     true,
		Status:    make(map[string]string, len(s.checkers)),
		CheckedAt: time.Now().UTC(),
	}
	for i, c := range s.checkers {
		if err := errs[i]; err != nil {
			// WARN: the orchestrator retries, an outage shows up as a streak.
			s.logger.Warn("readiness check failed",
				slog.String("component", c.Name()),
				slog.String("error", err.Error()),
			)
			ReadinessFailuresTotal.WithLabelValues(c.Name()).Inc()
			report.Status[c.Name()] = fmt.Sprintf("down: %v", err)
			report.Ready = false
			continue
		}
		report.Status[c.Name()] = "up"
	}

	if report.Ready {
		render.Status(r, http.StatusOK)
	} else {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, report)
}
