package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultThreshold applies to tasks without a time.
const DefaultThreshold = 600 * time.Second

// Threshold is a task idle threshold. In config it is either an integer
// number of seconds or a Go duration string ("10m30s"); a digits-only string
// also counts as seconds.
type Threshold struct {
	d   time.Duration
	set bool
}

func Seconds(n int64) Threshold { return Threshold{d: time.Duration(n) * time.Second, set: true} }

// Duration returns the threshold, or DefaultThreshold when it was omitted.
func (t Threshold) Duration() time.Duration {
	if !t.set {
		return DefaultThreshold
	}
	return t.d
}

func (t Threshold) IsSet() bool { return t.set }

func (t *Threshold) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = Threshold{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d, err := ParseThreshold(s)
		if err != nil {
			return err
		}
		*t = Threshold{d: d, set: true}
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("threshold %s: want whole seconds or a duration string", b)
	}
	*t = Seconds(n)
	return nil
}

func (t Threshold) MarshalJSON() ([]byte, error) {
	if !t.set {
		return []byte("null"), nil
	}
	return json.Marshal(t.d.String())
}

// ParseThreshold parses "90", "1m30s" or "10m".
func ParseThreshold(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty threshold")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid threshold %q: %w", raw, err)
	}
	return d, nil
}
