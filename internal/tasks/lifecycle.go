package tasks

import (
	"errors"
	"fmt"
	"strings"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"

	// StatusUnknown is any remote status we cannot map. No action is offered for it.
	StatusUnknown Status = "unknown"
)

type Action string

const (
	ActionStart  Action = "start"
	ActionStop   Action = "stop"
	ActionDelete Action = "delete"
)

var AllActions = []Action{ActionStart, ActionStop, ActionDelete}

var statusAliases = map[string]Status{
	"":            StatusDraft,
	"draft":       StatusDraft,
	"queued":      StatusQueued,
	"pending":     StatusQueued,
	"running":     StatusRunning,
	"in_progress": StatusRunning,
	"succeeded":   StatusSucceeded,
	"success":     StatusSucceeded,
	"successful":  StatusSucceeded,
	"completed":   StatusSucceeded,
	"complete":    StatusSucceeded,
	"done":        StatusSucceeded,
	"finished":    StatusSucceeded,
	"failed":      StatusFailed,
	"fail":        StatusFailed,
	"error":       StatusFailed,
	"cancelled":   StatusCancelled,
	"canceled":    StatusCancelled,
}

// NormalizeStatus maps a status string from the remote API onto the closed
// lifecycle set.
func NormalizeStatus(raw string) Status {
	if status, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status
	}
	return StatusUnknown
}

func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

var permittedActions = map[Status][]Action{
	StatusDraft:     {ActionStart, ActionDelete},
	StatusQueued:    {ActionStop},
	StatusRunning:   {ActionStop},
	StatusSucceeded: {},
	StatusFailed:    {},
	StatusCancelled: {ActionDelete},
}

// AllowedActions lists the actions the console may offer for a task in the
// given status. Start additionally requires admission.
func AllowedActions(status Status) []Action {
	return append([]Action{}, permittedActions[status]...)
}

func Permits(status Status, action Action) bool {
	for _, a := range permittedActions[status] {
		if a == action {
			return true
		}
	}
	return false
}

var ErrActionNotPermitted = errors.New("action not permitted")

type ActionError struct {
	Action Action
	Status Status
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("cannot %s a task with status %s", e.Action, e.Status)
}

func (e *ActionError) Unwrap() error {
	return ErrActionNotPermitted
}

// Check rejects an action outside its permitted states. It must be called
// before the corresponding API request is issued.
func Check(status Status, action Action) error {
	if !Permits(status, action) {
		return &ActionError{Action: action, Status: status}
	}
	return nil
}

var transitions = map[Status][]Status{
	StatusDraft:   {StatusQueued, StatusCancelled},
	StatusQueued:  {StatusRunning, StatusCancelled, StatusFailed},
	StatusRunning: {StatusSucceeded, StatusFailed, StatusCancelled},
}

// CanTransition reports whether the task execution system may move a task
// from one status to another. Status changes are made remotely; this is only
// used to spot unexpected jumps when refreshing cached tasks.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
