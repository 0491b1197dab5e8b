package panel

import (
	"fmt"

	"github.com/mkefalas/sigmalink/internal/transcript"
)

// Credentials authenticate one user against one panel. Immutable once set.
type Credentials struct {
	Username string
	Password string
}

// Action is a control command the panel accepts.
type Action string

const (
	ActionArmAway Action = "arm_away"
	ActionArmStay Action = "arm_stay"
	ActionDisarm  Action = "disarm"
)

// Endpoint returns the panel page that triggers the action. These are fixed
// endpoints on the panel's embedded server; there is no parameterized API.
func (a Action) Endpoint() string {
	switch a {
	case ActionArmAway:
		return "arm.html"
	case ActionArmStay:
		return "stay.html"
	case ActionDisarm:
		return "disarm.html"
	}
	return ""
}

// ExpectedState returns the alarm state the panel should report once the
// action has taken effect. Command verification compares against this.
func (a Action) ExpectedState() transcript.AlarmState {
	switch a {
	case ActionArmAway:
		return transcript.StateArmedAway
	case ActionArmStay:
		return transcript.StateArmedStay
	case ActionDisarm:
		return transcript.StateDisarmed
	}
	return transcript.StateUnknown
}

// Valid reports whether a names a known action.
func (a Action) Valid() bool {
	return a.Endpoint() != ""
}

func (a Action) String() string { return string(a) }

// ParseAction converts user input to an Action.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionArmAway, ActionArmStay, ActionDisarm:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action %q (want arm_away, arm_stay, or disarm)", s)
}
