package config

import (
	"fmt"
	"strings"
	"time"
)

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// ActivityEpsilonDuration returns idle.activity_epsilon, defaulting to 10ms.
func (c IdleConfig) ActivityEpsilonDuration() (time.Duration, error) {
	return ParseDurationOrDefault("idle.activity_epsilon", c.ActivityEpsilon, 10*time.Millisecond)
}

// MinSleepDuration returns idle.min_sleep, defaulting to 10ms.
func (c IdleConfig) MinSleepDuration() (time.Duration, error) {
	return ParseDurationOrDefault("idle.min_sleep", c.MinSleep, 10*time.Millisecond)
}
