// Package guard decides, for a request and the current session state, whether
// to render a loading placeholder, redirect, or serve the route.
package guard

import (
	"github.com/paneld-dev/paneld/internal/session"
)

// Mode selects which visitors a guard turns away
type Mode int

const (
	// Protected routes require an authenticated visitor
	Protected Mode = iota
	// LoginArea routes are for visitors who are not signed in
	LoginArea
)

func (m Mode) String() string {
	if m == LoginArea {
		return "login_area"
	}
	return "protected"
}

type Action int

const (
	RenderLoading Action = iota
	Redirect
	RenderChildren
)

func (a Action) String() string {
	switch a {
	case RenderLoading:
		return "loading"
	case Redirect:
		return "redirect"
	default:
		return "render"
	}
}

// Decision is the outcome of Decide. Target is set only for Redirect.
type Decision struct {
	Action Action
	Target string
}

// Decide never lets children through before the session has settled.
// A redirect is never issued to the location already being requested.
func Decide(snap session.Snapshot, location string, mode Mode, loginPath, homePath string) Decision {
	if !snap.Status.Settled() {
		return Decision{Action: RenderLoading}
	}

	switch {
	case mode == Protected && snap.Status == session.StatusUnauthenticated && location != loginPath:
		return Decision{Action: Redirect, Target: loginPath}
	case mode == LoginArea && snap.Status == session.StatusAuthenticated && location != homePath:
		return Decision{Action: Redirect, Target: homePath}
	}

	return Decision{Action: RenderChildren}
}
