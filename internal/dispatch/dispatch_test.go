package dispatch

import (
	"testing"

	"github.com/latentspeed/tradingengine/pkg/domain"
)

func TestClassifyKnownTokens(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want domain.Action
	}{
		{"place", domain.ActionPlace},
		{"cancel", domain.ActionCancel},
		{"replace", domain.ActionReplace},
	}
	for _, c := range cases {
		got, ok := Classify(c.raw)
		if !ok {
			t.Fatalf("Classify(%q) returned ok=false", c.raw)
		}
		if got != c.want {
			t.Errorf("Classify(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestClassifyUnknownTokenRejected(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "PLACE", "delete", "plac"} {
		if _, ok := Classify(raw); ok {
			t.Errorf("Classify(%q) = ok, want rejected", raw)
		}
	}
}

func TestDispatcherInvokesRegisteredHandler(t *testing.T) {
	t.Parallel()

	var called domain.Action
	d := NewDispatcher()
	d.Register(domain.ActionPlace, func(o *domain.ExecutionOrder) { called = domain.ActionPlace })
	d.Register(domain.ActionCancel, func(o *domain.ExecutionOrder) { called = domain.ActionCancel })

	order := &domain.ExecutionOrder{Action: domain.ActionCancel}
	if ok := d.Dispatch(order); !ok {
		t.Fatal("expected Dispatch to succeed")
	}
	if called != domain.ActionCancel {
		t.Errorf("handler called = %q, want cancel", called)
	}
}

func TestDispatcherUnknownActionReturnsFalse(t *testing.T) {
	t.Parallel()

	d := NewDispatcher()
	d.Register(domain.ActionPlace, func(o *domain.ExecutionOrder) {})

	order := &domain.ExecutionOrder{Action: domain.Action("bogus")}
	if ok := d.Dispatch(order); ok {
		t.Error("expected Dispatch to fail for unrecognized action")
	}
}

func TestDispatcherMissingRegistrationReturnsFalse(t *testing.T) {
	t.Parallel()

	d := NewDispatcher()
	order := &domain.ExecutionOrder{Action: domain.ActionReplace}
	if ok := d.Dispatch(order); ok {
		t.Error("expected Dispatch to fail when no handler is registered")
	}
}
