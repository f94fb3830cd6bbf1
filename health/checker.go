package health

import (
	"context"
	"time"
)

// Status represents the health status of a component.
type Status int

const (
	// StatusHealthy indicates the component is functioning normally.
	StatusHealthy Status = iota
	// StatusDegraded indicates the component works with reduced capacity,
	// for example behind a half-open circuit.
	StatusDegraded
	// StatusUnhealthy indicates the component cannot deliver messages.
	StatusUnhealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status as its name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result contains the outcome of a health check.
type Result struct {
	Status    Status
	Message   string
	Details   map[string]any
	Duration  time.Duration
	Timestamp time.Time
	Error     error
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message, Timestamp: time.Now()}
}

// Degraded creates a degraded result.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message, Timestamp: time.Now()}
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Error: err, Timestamp: time.Now()}
}

// WithDetails adds details to a result.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker is the interface for health checks.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to a Checker.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc creates a new CheckerFunc.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name returns the name of this checker.
func (f *CheckerFunc) Name() string {
	return f.name
}

// Check performs the health check.
func (f *CheckerFunc) Check(ctx context.Context) Result {
	return f.fn(ctx)
}

// Pinger is implemented by transports that can probe their backend without
// sending a message.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Combine returns a Checker named name that runs checks in order and
// reports the worst status among them. The message and error come from the
// first check with that status.
func Combine(name string, checks ...Checker) Checker {
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		worst := Healthy("")
		for _, c := range checks {
			if c == nil {
				continue
			}
			r := c.Check(ctx)
			if r.Status > worst.Status || worst.Message == "" && r.Status == worst.Status {
				worst = r
			}
		}
		return worst
	})
}

// PingCheck returns a Checker that pings p.
func PingCheck(name string, p Pinger) Checker {
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		if err := p.Ping(ctx); err != nil {
			return Unhealthy("unreachable", err)
		}
		return Healthy("reachable")
	})
}
