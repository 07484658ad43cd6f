package models

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Activity represents a pari-mutuel wager with a fixed set of choices
type Activity struct {
	ID            int64          `db:"id"`
	Creator       common.Address `db:"creator"`
	Content       string         `db:"content"`
	ChoiceCount   int            `db:"choice_count"`
	Deadline      time.Time      `db:"deadline"`
	InitialPool   *uint256.Int   `db:"initial_pool"`
	TotalPool     *uint256.Int   `db:"total_pool"`
	Settled       bool           `db:"settled"`
	WinningChoice *int           `db:"winning_choice"`
	CreatedAt     time.Time      `db:"created_at"`
	SettledAt     *time.Time     `db:"settled_at"`
}

// ActivityChoice is one outcome of an activity together with the amount bet on it
type ActivityChoice struct {
	ActivityID  int64        `db:"activity_id"`
	ChoiceIndex int          `db:"choice_index"`
	Label       string       `db:"label"`
	Pool        *uint256.Int `db:"pool"`
}

// ActivityDetail combines an activity with its choices and the ids of its tickets
type ActivityDetail struct {
	Activity  *Activity
	Choices   []*ActivityChoice
	TicketIDs []int64
}

// IsSettled reports whether the activity has been settled
func (a *Activity) IsSettled() bool {
	return a.Settled
}

// CanAcceptBets checks if the activity is unsettled and its deadline is still ahead of now
func (a *Activity) CanAcceptBets(now time.Time) bool {
	return !a.Settled && now.Before(a.Deadline)
}

// IsValidChoice checks if index addresses one of the activity's choices
func (a *Activity) IsValidChoice(index int) bool {
	return index >= 0 && index < a.ChoiceCount
}

// IsCreator checks if the given identity created the activity
func (a *Activity) IsCreator(identity common.Address) bool {
	return a.Creator == identity
}

// PerChoicePool returns the pool of every choice ordered by choice index
func (d *ActivityDetail) PerChoicePool() []*uint256.Int {
	pools := make([]*uint256.Int, len(d.Choices))
	for _, choice := range d.Choices {
		if choice.ChoiceIndex >= 0 && choice.ChoiceIndex < len(pools) {
			pools[choice.ChoiceIndex] = choice.Pool
		}
	}
	return pools
}

// ChoiceLabels returns the choice labels ordered by choice index
func (d *ActivityDetail) ChoiceLabels() []string {
	labels := make([]string, len(d.Choices))
	for _, choice := range d.Choices {
		if choice.ChoiceIndex >= 0 && choice.ChoiceIndex < len(labels) {
			labels[choice.ChoiceIndex] = choice.Label
		}
	}
	return labels
}

// VerifyPools checks that there is one pool per choice and that the total pool
// is exactly the initial pool plus every choice pool.
func (d *ActivityDetail) VerifyPools() error {
	if len(d.Choices) != d.Activity.ChoiceCount {
		return fmt.Errorf("activity %d has %d choice pools for %d choices",
			d.Activity.ID, len(d.Choices), d.Activity.ChoiceCount)
	}

	sum := new(uint256.Int).Set(d.Activity.InitialPool)
	for _, pool := range d.PerChoicePool() {
		if pool == nil {
			return fmt.Errorf("activity %d is missing a choice pool", d.Activity.ID)
		}
		if _, overflow := sum.AddOverflow(sum, pool); overflow {
			return fmt.Errorf("activity %d pool sum overflows", d.Activity.ID)
		}
	}

	if !sum.Eq(d.Activity.TotalPool) {
		return fmt.Errorf("activity %d total pool %s does not match parts %s",
			d.Activity.ID, d.Activity.TotalPool.Dec(), sum.Dec())
	}
	return nil
}
