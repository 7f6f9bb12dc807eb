package idle

import (
	"context"
	"errors"
	"testing"
	"time"

	logx "jautolock/pkg/logx"
)

func TestStaticSource(t *testing.T) {
	t.Parallel()
	s := NewStatic(3 * time.Second)
	d, err := s.Idle(context.Background())
	if err != nil || d != 3*time.Second {
		t.Fatalf("Idle = %v, %v", d, err)
	}

	s.Fail(errors.New("no display"))
	_, err = s.Idle(context.Background())
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("err = %v, want *QueryError", err)
	}
	if qe.Source != "static" {
		t.Fatalf("source = %q", qe.Source)
	}
}

func TestFallbackPolicies(t *testing.T) {
	t.Parallel()
	s := NewStatic(time.Minute)
	s.Fail(errors.New("boom"))

	strict := WithFallback(s, PolicyFatal, logx.Nop())
	if _, err := strict.Idle(context.Background()); err == nil {
		t.Fatal("fatal policy must propagate query errors")
	}

	lenient := WithFallback(s, PolicyAssumeActive, logx.Nop())
	d, err := lenient.Idle(context.Background())
	if err != nil {
		t.Fatalf("assume_active returned error: %v", err)
	}
	if d != 0 {
		t.Fatalf("idle = %v, want 0", d)
	}

	s.Fail(nil)
	if d, _ = lenient.Idle(context.Background()); d != time.Minute {
		t.Fatalf("idle after recovery = %v, want 1m", d)
	}
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Policy{
		"":              PolicyFatal,
		"FATAL":         PolicyFatal,
		"assume_active": PolicyAssumeActive,
		"lenient":       PolicyAssumeActive,
	} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParsePolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePolicy("retry"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestOpenRejectsUnknown(t *testing.T) {
	t.Parallel()
	if _, err := Open("carrier-pigeon"); !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("err = %v, want ErrUnknownSource", err)
	}
	src, err := Open("static")
	if err != nil || src.Name() != "static" {
		t.Fatalf("Open(static) = %v, %v", src, err)
	}
}
