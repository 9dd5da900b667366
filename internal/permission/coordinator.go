// Package permission coordinates the device-location permission request.
package permission

import (
	"log/slog"

	"bikestreets/internal/metrics"
)

// Location is the permission the coordinator asks for.
const Location = "location"

type State int

const (
	Unrequested State = iota
	Explaining
	Granted
	Denied
)

func (s State) String() string {
	switch s {
	case Explaining:
		return "explaining"
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "unrequested"
	}
}

// Checker reports whether the OS already granted the permission.
type Checker interface {
	Granted() bool
}

// Listener receives the outcome of a permission request. Calls may arrive on
// any goroutine.
type Listener interface {
	OnExplanationNeeded(permissions []string)
	OnPermissionResult(granted bool)
}

// Requester asks the OS for the permission.
type Requester interface {
	Request(l Listener)
}

// Coordinator runs the one-time check/request at startup and reports a grant
// through onGranted. All state changes happen inside post, which runs them
// on the UI loop.
type Coordinator struct {
	checker   Checker
	requester Requester
	post      func(func())
	onGranted func()
	logger    *slog.Logger

	state   State
	started bool
}

func NewCoordinator(checker Checker, requester Requester, post func(func()), onGranted func(), logger *slog.Logger) *Coordinator {
	if post == nil {
		post = func(fn func()) { fn() }
	}
	if onGranted == nil {
		onGranted = func() {}
	}
	return &Coordinator{
		checker:   checker,
		requester: requester,
		post:      post,
		onGranted: onGranted,
		logger:    logger,
	}
}

// Start checks the permission and requests it if needed. Only the first
// call has an effect. Must run on the UI loop.
func (c *Coordinator) Start() {
	if c.started {
		return
	}
	c.started = true

	if c.checker.Granted() {
		c.logger.Info("Location permission already granted")
		c.transition(Granted)
		return
	}

	c.logger.Info("Requesting location permission")
	c.requester.Request(listener{c})
}

// State returns the last observed state. UI loop only.
func (c *Coordinator) State() State {
	return c.state
}

// Granted implements Checker with the observed state.
func (c *Coordinator) Granted() bool {
	return c.state == Granted
}

func (c *Coordinator) transition(to State) {
	from := c.state
	switch {
	case from == Granted || from == Denied:
		c.logger.Warn("Ignoring permission callback after result", "state", from, "callback", to)
		return
	case from == Explaining && to == Explaining:
		return
	}

	c.state = to
	c.logger.Debug("Permission state changed", "from", from, "to", to)

	switch to {
	case Granted:
		metrics.PermissionResults.WithLabelValues(to.String()).Inc()
		c.onGranted()
	case Denied:
		metrics.PermissionResults.WithLabelValues(to.String()).Inc()
		c.logger.Info("Location permission denied, location indicator disabled")
	}
}

// listener marshals requester callbacks onto the UI loop.
type listener struct {
	c *Coordinator
}

func (l listener) OnExplanationNeeded(permissions []string) {
	l.c.post(func() {
		l.c.logger.Info("Location permission needs explanation", "permissions", permissions)
		l.c.transition(Explaining)
	})
}

func (l listener) OnPermissionResult(granted bool) {
	l.c.post(func() {
		if granted {
			l.c.transition(Granted)
		} else {
			l.c.transition(Denied)
		}
	})
}
