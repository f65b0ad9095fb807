package lifecycle

import (
	"github.com/ruteri/campuscred-backend/interfaces"
)

// Action is a lifecycle operation applied to a claim.
type Action string

const (
	ActionApprove   Action = "approve"
	ActionReject    Action = "reject"
	ActionMint      Action = "mint"
	ActionRevoke    Action = "revoke"
	ActionReconcile Action = "reconcile"
)

// Actions lists every action known to the state machine.
var Actions = []Action{ActionApprove, ActionReject, ActionMint, ActionRevoke, ActionReconcile}

// transitions is the state machine: current status × action → next status.
// Absent entries are rejected.
var transitions = map[interfaces.ClaimStatus]map[Action]interfaces.ClaimStatus{
	interfaces.StatusPending: {
		ActionApprove: interfaces.StatusApproved,
		ActionReject:  interfaces.StatusDenied,
	},
	interfaces.StatusApproved: {
		ActionMint: interfaces.StatusMinted,
	},
	interfaces.StatusMinted: {
		ActionRevoke:    interfaces.StatusRevoked,
		ActionReconcile: interfaces.StatusMinted,
	},
}

// Next returns the status reached by applying action in status from.
func Next(from interfaces.ClaimStatus, action Action) (interfaces.ClaimStatus, bool) {
	next, ok := transitions[from][action]
	return next, ok
}

// Source returns the single status from which action is allowed.
func Source(action Action) (interfaces.ClaimStatus, bool) {
	for from, actions := range transitions {
		if _, ok := actions[action]; ok {
			return from, true
		}
	}
	return "", false
}

// check verifies that action may be applied to a claim in status current.
func check(current interfaces.ClaimStatus, action Action) (interfaces.ClaimStatus, error) {
	next, ok := Next(current, action)
	if !ok {
		return "", interfaces.NewConflict(current, string(action))
	}
	return next, nil
}
