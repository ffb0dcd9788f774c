package expense

import (
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
)

type Action string

const (
	ActionSubmit      Action = "submit"
	ActionAutoApprove Action = "auto_approve"
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionCancel      Action = "cancel"
)

// Transition returns the approval status reached by applying action to an
// expense in status from. Creation is modelled as a transition from the
// empty status.
func Transition(from ApprovalStatus, action Action) (ApprovalStatus, error) {
	switch {
	case from == "" && action == ActionSubmit:
		return ApprovalPending, nil
	case from == "" && action == ActionAutoApprove:
		return ApprovalAutoApproved, nil
	case from == ApprovalPending && action == ActionApprove:
		return ApprovalApproved, nil
	case from == ApprovalPending && action == ActionReject:
		return ApprovalRejected, nil
	case action == ActionCancel && (from == ApprovalPending || from == ApprovalApproved || from == ApprovalAutoApproved):
		return ApprovalCancelled, nil
	}

	if from == "" {
		return "", apperr.StateConflict("cannot %s a new expense", action)
	}

	return "", apperr.StateConflict("cannot %s an expense that is %s", action, from)
}

// Authorize checks that actor may perform action on an expense paid by
// payer in an event created by creator.
func Authorize(action Action, actor, creator, payer uuid.UUID) error {
	switch action {
	case ActionApprove, ActionReject:
		if actor != creator {
			return apperr.Unauthorized("only the event creator can %s expenses", action)
		}
	case ActionCancel:
		if actor != creator && actor != payer {
			return apperr.Unauthorized("only the event creator or the payer can cancel an expense")
		}
	}

	return nil
}
