package automation

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRegistry_AddAssignsIDAndTime(t *testing.T) {
	r := NewRegistry()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	stored := r.Add(Rule{Source: "dht", ID: "ignored"})

	if stored.ID == "" || stored.ID == "ignored" {
		t.Errorf("ID = %q, want generated", stored.ID)
	}
	if !stored.RegisteredAt.Equal(fixed) {
		t.Errorf("RegisteredAt = %v, want %v", stored.RegisteredAt, fixed)
	}

	got, err := r.Get(stored.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Source != "dht" {
		t.Errorf("Get().Source = %q, want dht", got.Source)
	}
}

func TestRegistry_AppendsWithoutDedup(t *testing.T) {
	r := NewRegistry()
	rule := Rule{Source: "dht", Method: "read", InputParams: "temperature", Condition: ConditionGreater}

	r.Add(rule)
	r.Add(rule)

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	snap := r.Snapshot()
	if snap[0].ID == snap[1].ID {
		t.Error("identical registrations share an ID")
	}
}

func TestRegistry_SnapshotOrderAndIsolation(t *testing.T) {
	r := NewRegistry()
	for i := range 3 {
		r.Add(Rule{Source: fmt.Sprintf("p%d", i)})
	}

	snap := r.Snapshot()
	for i, rule := range snap {
		if want := fmt.Sprintf("p%d", i); rule.Source != want {
			t.Errorf("snapshot[%d].Source = %q, want %q", i, rule.Source, want)
		}
	}

	snap[0].Source = "mutated"
	r.Add(Rule{Source: "p3"})
	if r.Snapshot()[0].Source != "p0" {
		t.Error("mutating a snapshot changed the registry")
	}
	if len(snap) != 3 {
		t.Error("snapshot grew after Add")
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("nope"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("Get() error = %v, want ErrRuleNotFound", err)
	}
}

func TestRegistry_ConcurrentAdd(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Add(Rule{Source: "x"})
			_ = r.Snapshot()
		}()
	}
	wg.Wait()

	if r.Len() != 50 {
		t.Errorf("Len() = %d, want 50", r.Len())
	}
}
