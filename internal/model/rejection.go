package model

import "errors"

// Code is a machine-readable rejection code.
type Code string

const (
	CodeNotEligible Code = "NOT_ELIGIBLE"
	CodeOnCooldown  Code = "ON_COOLDOWN"
	CodeRollFailed  Code = "ROLL_FAILED"
)

var (
	ErrNotEligible = errors.New("not eligible")
	ErrOnCooldown  = errors.New("on cooldown")
	ErrRollFailed  = errors.New("roll failed")

	// ErrPersistence marks infrastructure failures. They are fatal for the
	// current request and never retried by the engine.
	ErrPersistence = errors.New("persistence failure")
)

// Rejection is a recoverable, user-displayable refusal. Reason is suitable
// for direct display.
type Rejection struct {
	Code           Code   `json:"code"`
	Reason         string `json:"reason"`
	RemainingHours int    `json:"remaining_hours,omitempty"`
}

func (r *Rejection) Error() string {
	return r.Reason
}

func (r *Rejection) Is(target error) bool {
	switch r.Code {
	case CodeNotEligible:
		return target == ErrNotEligible
	case CodeOnCooldown:
		return target == ErrOnCooldown
	case CodeRollFailed:
		return target == ErrRollFailed
	default:
		return false
	}
}

func NotEligible(reason string) *Rejection {
	return &Rejection{Code: CodeNotEligible, Reason: reason}
}

func OnCooldown(reason string, remainingHours int) *Rejection {
	return &Rejection{Code: CodeOnCooldown, Reason: reason, RemainingHours: remainingHours}
}

func RollFailed(reason string) *Rejection {
	return &Rejection{Code: CodeRollFailed, Reason: reason}
}

// AsRejection unwraps err to a *Rejection when it carries one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
