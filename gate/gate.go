// Package gate decides what a protected route does for a given session state.
package gate

import "civichero-be/models"

// LoginPath is where unauthenticated visitors are sent.
const LoginPath = "/login"

// AnyRole lets every authorized profile through.
const AnyRole models.ProfileType = ""

// Phase of session restoration.
type Phase int

const (
	Loading Phase = iota
	Unauthenticated
	Authorized
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Authorized:
		return "authorized"
	default:
		return "unauthenticated"
	}
}

// State is what the gate knows about the caller.
type State struct {
	Phase Phase
	Role  models.ProfileType
}

// AuthorizedAs is the state of a restored session holding role.
func AuthorizedAs(role models.ProfileType) State {
	return State{Phase: Authorized, Role: role}
}

// Action is the outcome of evaluating a state.
type Action int

const (
	Placeholder Action = iota
	Redirect
	Render
)

// Decision is an action plus, for redirects, where to go.
type Decision struct {
	Action Action
	Target string
}

// Evaluate is a pure function of the session state and the role a route
// requires. The originally requested route is never part of a redirect.
func Evaluate(state State, required models.ProfileType) Decision {
	switch state.Phase {
	case Loading:
		return Decision{Action: Placeholder}
	case Authorized:
		if !state.Role.Valid() {
			return Decision{Action: Redirect, Target: LoginPath}
		}
		if required == AnyRole || state.Role == required {
			return Decision{Action: Render}
		}
		return Decision{Action: Redirect, Target: state.Role.Dashboard()}
	default:
		return Decision{Action: Redirect, Target: LoginPath}
	}
}
