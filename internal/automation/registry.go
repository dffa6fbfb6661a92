package automation

import (
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry and Evaluator.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry holds the automation rules in registration order.
//
// Rules are appended and never removed; there is no deduplication, so
// registering the same message twice yields two rules. Nothing is persisted.
//
// All public methods are thread-safe.
type Registry struct {
	mu     sync.RWMutex
	rules  []Rule
	logger Logger

	now   func() time.Time
	newID func() string
}

// NewRegistry creates an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: noopLogger{},
		now:    time.Now,
		newID:  GenerateID,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// Add appends a rule, assigning its ID and registration time.
//
// Returns the stored rule.
func (r *Registry) Add(rule Rule) Rule {
	rule.ID = r.newID()
	rule.RegisteredAt = r.now().UTC()

	r.mu.Lock()
	r.rules = append(r.rules, rule)
	count := len(r.rules)
	r.mu.Unlock()

	r.logger.Info("automation registered",
		"rule_id", rule.ID,
		"source", rule.Source,
		"condition", string(rule.Condition),
		"output_device", rule.OutputDeviceID,
		"rules", count,
	)
	if !rule.Condition.Valid() {
		r.logger.Warn("automation has unknown condition and will never fire",
			"rule_id", rule.ID, "condition", string(rule.Condition))
	}
	return rule
}

// Snapshot returns a copy of all rules in registration order.
// Evaluation iterates the copy so registration never blocks on it.
func (r *Registry) Snapshot() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Get returns a rule by ID.
func (r *Registry) Get(id string) (Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rule := range r.rules {
		if rule.ID == id {
			return rule, nil
		}
	}
	return Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}
