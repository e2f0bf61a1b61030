package remediation

import "github.com/leonardo-meireles/vm-remediator/pkg/errors"

// Decide maps a lifecycle state to its single corrective action.
//
// RUNNING gets a reset, STOPPED and TERMINATED get a start. Anything else,
// including transitional states like PROVISIONING or STOPPING, yields
// ActionNone with an unsupported-state error; acting there could collide
// with an operation already in flight.
func Decide(state State) (Action, error) {
	switch state {
	case StateRunning:
		return ActionReset, nil
	case StateStopped, StateTerminated:
		return ActionStart, nil
	default:
		return ActionNone, errors.Newf(errors.KindUnsupportedState, "decide", "no action for instance status %q", string(state))
	}
}
