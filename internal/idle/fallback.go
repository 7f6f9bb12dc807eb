package idle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	logx "jautolock/pkg/logx"
)

// Policy decides what a failed idle query means.
type Policy string

const (
	// PolicyFatal propagates the error; the daemon stops.
	PolicyFatal Policy = "fatal"
	// PolicyAssumeActive reports idle = 0 and keeps running.
	PolicyAssumeActive Policy = "assume_active"
)

// ParsePolicy maps a config value to a Policy. Empty means PolicyFatal.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFatal:
		return PolicyFatal, nil
	case PolicyAssumeActive, "lenient":
		return PolicyAssumeActive, nil
	default:
		return "", fmt.Errorf("unknown idle error policy %q (use fatal or assume_active)", s)
	}
}

// WithFallback applies p to src. For PolicyFatal src is returned unchanged.
func WithFallback(src Source, p Policy, log logx.Logger) Source {
	if p != PolicyAssumeActive {
		return src
	}
	return &fallback{
		Source: src,
		log:    log,
		warn:   rate.NewLimiter(rate.Every(time.Minute), 1),
	}
}

type fallback struct {
	Source
	log  logx.Logger
	warn *rate.Limiter
}

func (f *fallback) Idle(ctx context.Context) (time.Duration, error) {
	d, err := f.Source.Idle(ctx)
	if err == nil {
		return d, nil
	}
	if f.warn.Allow() && !f.log.IsZero() {
		f.log.Warn("idle query failed; assuming the user is active", logx.String("source", f.Source.Name()), logx.Err(err))
	}
	return 0, nil
}
