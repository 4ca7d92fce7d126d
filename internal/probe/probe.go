package probe

import (
	"context"
	"time"

	"github.com/hamed0406/servermonitor/internal/domain"
)

// Result is the outcome of a single probe.
//
// Fields:
//   - Status: classification; never left as Unknown or Checking.
//   - StatusCode: HTTP status code when a response arrived; 0 for transport/DNS errors.
//   - Reason: short human readable explanation, used in logs.
type Result struct {
	Status     domain.Status
	StatusCode int
	Latency    time.Duration
	Reason     string
}

// Checker performs a single check for a given target URL. Implementations
// must resolve every failure to a Status and must honour ctx's deadline.
type Checker interface {
	Check(ctx context.Context, target string) Result
}

// Probe runs one check bounded by timeout and returns only the status.
func Probe(ctx context.Context, c Checker, target string, timeout time.Duration) domain.Status {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Check(cctx, target).Status
}
