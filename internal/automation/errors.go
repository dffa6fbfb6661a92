package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, automation.ErrRuleNotFound) {
//	    // handle not found case
//	}
var (
	// ErrRuleNotFound is returned when a rule ID does not exist.
	ErrRuleNotFound = errors.New("automation: rule not found")

	// ErrInvalidRule is returned when a registration message is not a JSON object.
	ErrInvalidRule = errors.New("automation: invalid rule")

	// ErrUnknownCondition is returned for conditions other than gt, lt and eq.
	ErrUnknownCondition = errors.New("automation: unknown condition")

	// ErrNotComparable is returned when a peripheral value is not a number or bool.
	ErrNotComparable = errors.New("automation: value not comparable")

	// ErrInvalidDevice is returned when a rule's output device id is not a
	// non-negative integer.
	ErrInvalidDevice = errors.New("automation: invalid output device id")

	// ErrPublishUnavailable is returned when no publisher is configured.
	ErrPublishUnavailable = errors.New("automation: publisher unavailable")
)
