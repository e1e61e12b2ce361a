package domain

import (
	"fmt"
)

// Event names a lifecycle trigger applied to a payment.
type Event string

const (
	EventInitAccepted          Event = "INIT_ACCEPTED"
	EventFormShowed            Event = "FORM_SHOWED"
	EventCardSubmitted         Event = "CARD_SUBMITTED"
	Event3DSRequired           Event = "3DS_REQUIRED"
	Event3DSCompleted          Event = "3DS_COMPLETED"
	EventAuthSucceeded         Event = "AUTH_SUCCEEDED"
	EventAuthFailed            Event = "AUTH_FAILED"
	EventConfirmRequested      Event = "CONFIRM_REQUESTED"
	EventConfirmCompleted      Event = "CONFIRM_COMPLETED"
	EventCancelRequested       Event = "CANCEL_REQUESTED"
	EventCancelCompleted       Event = "CANCEL_COMPLETED"
	EventReverseRequested      Event = "REVERSE_REQUESTED"
	EventReverseCompleted      Event = "REVERSE_COMPLETED"
	EventRefundRequested       Event = "REFUND_REQUESTED"
	EventRefundCompleted       Event = "REFUND_COMPLETED"
	EventPartialRefundComplete Event = "PARTIAL_REFUND_COMPLETED"
	EventRejected              Event = "REJECTED"
	EventDeadlineExpired       Event = "DEADLINE_EXPIRED"
	EventUnrecoverableError    Event = "UNRECOVERABLE_ERROR"
)

// ErrIllegalTransition is returned by Propose when no edge matches.
type ErrIllegalTransition struct {
	From  Status
	Event Event
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal transition: event %s in status %s", e.Event, e.From)
}

// transitions is the legal edge relation of the payment lifecycle,
// keyed by current status, then by event.
var transitions = map[Status]map[Event]Status{
	StatusInit: {
		EventInitAccepted: StatusNew,
	},
	StatusNew: {
		EventFormShowed:    StatusFormShowed,
		EventCardSubmitted: StatusAuthorizing,
		EventCancelRequested: StatusCancelling,
	},
	StatusFormShowed: {
		EventCardSubmitted:   StatusAuthorizing,
		EventCancelRequested: StatusCancelling,
	},
	StatusAuthorizing: {
		Event3DSRequired:   Status3DSChecking,
		EventAuthSucceeded: StatusAuthorized,
		EventAuthFailed:    StatusAuthFail,
		EventRejected:      StatusRejected,
	},
	Status3DSChecking: {
		Event3DSCompleted: Status3DSChecked,
		EventAuthFailed:   StatusAuthFail,
	},
	Status3DSChecked: {
		EventAuthSucceeded: StatusAuthorized,
		EventAuthFailed:    StatusAuthFail,
	},
	StatusAuthorized: {
		EventConfirmRequested: StatusConfirming,
		EventReverseRequested: StatusReversing,
	},
	StatusConfirming: {
		EventConfirmCompleted: StatusConfirmed,
	},
	StatusConfirmed: {
		EventRefundRequested: StatusRefunding,
	},
	StatusCancelling: {
		EventCancelCompleted: StatusCancelled,
	},
	StatusReversing: {
		EventReverseCompleted: StatusReversed,
	},
	StatusRefunding: {
		EventRefundCompleted:       StatusRefunded,
		EventPartialRefundComplete: StatusPartialRefunded,
	},
	StatusPartialRefunded: {
		EventRefundRequested: StatusRefunding,
	},
}

// Propose returns the next status for the given event, without side effects.
// Deadline expiry applies to any non-terminal state; an unrecoverable acquirer
// error fails any active state. Everything else follows the edge relation.
func Propose(current Status, event Event) (Status, error) {
	if event == EventDeadlineExpired {
		if IsTerminalStatus(current) {
			return "", &ErrIllegalTransition{From: current, Event: event}
		}
		return StatusDeadlineExpired, nil
	}
	if event == EventUnrecoverableError {
		if IsTerminalStatus(current) {
			return "", &ErrIllegalTransition{From: current, Event: event}
		}
		return StatusFailed, nil
	}
	if next, ok := transitions[current][event]; ok {
		return next, nil
	}
	return "", &ErrIllegalTransition{From: current, Event: event}
}

// CanTransition reports whether a direct edge from one status to another
// exists, counting the deadline and failure edges available everywhere.
func CanTransition(from, to Status) bool {
	if IsTerminalStatus(from) {
		return false
	}
	if to == StatusDeadlineExpired || to == StatusFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidPath reports whether the ordered status sequence is a legal walk
// through the transition relation. Used by audit verification and tests.
func ValidPath(path []Status) bool {
	if len(path) == 0 {
		return false
	}
	if path[0] != StatusInit && path[0] != StatusNew {
		return false
	}
	for i := 1; i < len(path); i++ {
		if !CanTransition(path[i-1], path[i]) {
			return false
		}
	}
	return true
}
