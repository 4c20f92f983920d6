package breeding

import (
	"context"
	"fmt"
	"math"
	"time"

	"gyeol/internal/model"
)

const (
	MinGeneration    = 2
	MinCompatibility = 50
	CooldownPeriod   = 72 * time.Hour
)

// Ledger is the append-only record of breeding attempts.
type Ledger interface {
	// MostRecentAttempt returns the newest attempt naming any of agentIDs as
	// either parent, successful or not.
	MostRecentAttempt(ctx context.Context, agentIDs []string) (model.BreedingAttempt, bool, error)
	Append(ctx context.Context, attempt model.BreedingAttempt) error
}

type Eligibility struct {
	Eligible  bool             `json:"eligible"`
	Reason    string           `json:"reason"`
	Rejection *model.Rejection `json:"rejection,omitempty"`
}

func eligible() Eligibility {
	return Eligibility{Eligible: true, Reason: "eligible for breeding"}
}

func rejected(r *model.Rejection) Eligibility {
	return Eligibility{Reason: r.Reason, Rejection: r}
}

// CheckEligibility runs the breeding gates in order and stops at the first
// failure: generation floor, compatibility floor, then the shared cooldown.
// Any recorded attempt touching either parent starts a cooldown, including
// failed rolls.
//
// The returned error is reserved for ledger failures and wraps
// model.ErrPersistence; rejections are reported through Eligibility.
func CheckEligibility(ctx context.Context, a, b model.Agent, compatibility int, ledger Ledger, now time.Time) (Eligibility, error) {
	if a.ID == b.ID {
		return rejected(model.NotEligible("an agent cannot breed with itself")), nil
	}
	if a.Generation < MinGeneration || b.Generation < MinGeneration {
		return rejected(model.NotEligible(fmt.Sprintf(
			"breeding requires generation %d or higher (current: gen %d, gen %d)",
			MinGeneration, a.Generation, b.Generation,
		))), nil
	}
	if compatibility < MinCompatibility {
		return rejected(model.NotEligible(fmt.Sprintf(
			"compatibility of at least %d is required (current: %d)",
			MinCompatibility, compatibility,
		))), nil
	}

	last, ok, err := ledger.MostRecentAttempt(ctx, []string{a.ID, b.ID})
	if err != nil {
		return Eligibility{}, fmt.Errorf("read breeding ledger: %w: %w", model.ErrPersistence, err)
	}
	if ok {
		if remaining, cooling := cooldownRemaining(last.CreatedAt, now); cooling {
			return rejected(model.OnCooldown(
				fmt.Sprintf("breeding is on cooldown (%d hours remaining)", remaining),
				remaining,
			)), nil
		}
	}
	return eligible(), nil
}

// cooldownRemaining returns the whole hours left, rounded up, while the
// cooldown window opened at last is still running.
func cooldownRemaining(last, now time.Time) (int, bool) {
	elapsed := now.Sub(last)
	if elapsed >= CooldownPeriod {
		return 0, false
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return int(math.Ceil((CooldownPeriod - elapsed).Hours())), true
}
