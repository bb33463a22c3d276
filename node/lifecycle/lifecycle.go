package lifecycle

import (
	"github.com/bioimage-io/backoffice/types"
)

type Decision int

const (
	// Reject drops a transition to an earlier step.
	Reject Decision = iota
	Apply
	// ApplyWithWarning applies a transition that skips steps.
	ApplyWithWarning
)

func (d Decision) String() string {
	switch d {
	case Reject:
		return "reject"
	case Apply:
		return "apply"
	case ApplyWithWarning:
		return "apply with warning"
	default:
		return "unknown"
	}
}

// NextStageNumber returns the number for a new staged version.
func NextStageNumber(v *types.Versions) types.StageNumber {
	next := types.StageNumber(1)
	for n := range v.Staged {
		if n >= next {
			next = n + 1
		}
	}
	return next
}

// NextPublishNumber returns the number for a new published version.
func NextPublishNumber(v *types.Versions) types.PublishNumber {
	next := types.PublishNumber(1)
	for n := range v.Published {
		if n >= next {
			next = n + 1
		}
	}
	return next
}

// Decide classifies the transition from current to next. current is nil
// for a version without status.
func Decide(current types.StagedStatus, next types.StagedStatus) Decision {
	if current == nil {
		return Apply
	}

	cur, nxt := current.Step(), next.Step()
	switch {
	case nxt < cur:
		return Reject
	case nxt == cur || nxt == cur+1:
		return Apply
	}

	if _, ok := current.(types.AwaitingReviewStatus); ok {
		if _, ok := next.(types.SupersededStatus); ok {
			return Apply
		}
	}
	return ApplyWithWarning
}

// IsTerminal reports whether no further transition is expected from s.
func IsTerminal(s types.StagedStatus) bool {
	switch s.(type) {
	case types.SupersededStatus, types.PublishedStagedStatus:
		return true
	default:
		return false
	}
}
