package agent

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when the agent is running.
	ErrAlreadyRunning = errors.New("agent: already running")

	// ErrSubscribeFailed is returned by Start when the command topic
	// subscription is refused.
	ErrSubscribeFailed = errors.New("agent: subscribing to command topic failed")
)
