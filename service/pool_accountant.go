package service

import (
	"fmt"

	"betledger/models"

	"github.com/holiman/uint256"
)

// CalculateSettlement distributes the total pool of an activity among its tickets.
//
// With a non-empty winner pool each winning ticket receives
// amount * totalPool / winnerPool, rounded down, and losing tickets receive
// nothing. The rounding remainder goes to the creator. With an empty winner
// pool every ticket is refunded its amount and the creator gets the initial
// pool back. In both cases the payouts plus the creator credit equal the total pool.
func CalculateSettlement(activity *models.Activity, pools []*uint256.Int, tickets []*models.Ticket, winningChoice int) (*models.Settlement, error) {
	if !activity.IsValidChoice(winningChoice) || winningChoice >= len(pools) {
		return nil, fmt.Errorf("%w: choice %d of activity %d", ErrInvalidChoice, winningChoice, activity.ID)
	}

	totalPool := new(uint256.Int).Set(activity.TotalPool)
	winnerPool := new(uint256.Int).Set(pools[winningChoice])

	settlement := &models.Settlement{
		ActivityID:    activity.ID,
		WinningChoice: winningChoice,
		TotalPool:     totalPool,
		WinnerPool:    winnerPool,
		Payouts:       make([]models.TicketPayout, 0, len(tickets)),
		Residue:       new(uint256.Int),
	}

	distributed := new(uint256.Int)
	winningStake := new(uint256.Int)

	if winnerPool.IsZero() {
		settlement.Refunded = true
		for _, ticket := range tickets {
			settlement.Payouts = append(settlement.Payouts, models.TicketPayout{
				TicketID: ticket.ID,
				Owner:    ticket.Owner,
				Amount:   new(uint256.Int).Set(ticket.Amount),
				IsRefund: true,
			})
			distributed.Add(distributed, ticket.Amount)
		}
		settlement.CreatorCredit = new(uint256.Int).Set(activity.InitialPool)
	} else {
		for _, ticket := range tickets {
			payout := new(uint256.Int)
			winner := ticket.IsWinner(winningChoice)
			if winner {
				var overflow bool
				payout, overflow = new(uint256.Int).MulDivOverflow(ticket.Amount, totalPool, winnerPool)
				if overflow {
					return nil, fmt.Errorf("payout of ticket %d overflows", ticket.ID)
				}
				winningStake.Add(winningStake, ticket.Amount)
			}
			settlement.Payouts = append(settlement.Payouts, models.TicketPayout{
				TicketID: ticket.ID,
				Owner:    ticket.Owner,
				Amount:   payout,
				IsWinner: winner,
			})
			distributed.Add(distributed, payout)
		}

		if !winningStake.Eq(winnerPool) {
			return nil, fmt.Errorf("winning tickets of activity %d stake %s but the winner pool is %s",
				activity.ID, winningStake.Dec(), winnerPool.Dec())
		}
		if distributed.Gt(totalPool) {
			return nil, fmt.Errorf("payouts of activity %d exceed the total pool", activity.ID)
		}
		settlement.Residue = new(uint256.Int).Sub(totalPool, distributed)
		settlement.CreatorCredit = new(uint256.Int).Set(settlement.Residue)
	}

	if total := settlement.TotalDistributed(); !total.Eq(totalPool) {
		return nil, fmt.Errorf("settlement of activity %d distributes %s of a %s pool",
			activity.ID, total.Dec(), totalPool.Dec())
	}

	return settlement, nil
}
