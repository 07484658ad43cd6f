package api

import (
	"fmt"
	"strings"
	"time"

	"betledger/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Amounts cross the wire as decimal wei strings.

type createActivityRequest struct {
	Content  string    `json:"content"`
	Choices  []string  `json:"choices"`
	Deadline time.Time `json:"deadline"`
	Attached string    `json:"attached"`
}

type attachedRequest struct {
	Attached string `json:"attached"`
}

type buyTicketRequest struct {
	ChoiceIndex int    `json:"choice_index"`
	Attached    string `json:"attached"`
}

type settleRequest struct {
	WinningChoice int `json:"winning_choice"`
}

type listTicketRequest struct {
	Price string `json:"price"`
}

type withdrawRequest struct {
	Amount string `json:"amount"`
}

type idResponse struct {
	ID int64 `json:"id"`
}

type choiceResponse struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	Pool  string `json:"pool"`
}

type activityResponse struct {
	ID            int64            `json:"id"`
	Creator       string           `json:"creator"`
	Content       string           `json:"content"`
	Deadline      time.Time        `json:"deadline"`
	InitialPool   string           `json:"initial_pool"`
	TotalPool     string           `json:"total_pool"`
	Settled       bool             `json:"settled"`
	WinningChoice *int             `json:"winning_choice,omitempty"`
	Choices       []choiceResponse `json:"choices"`
	TicketIDs     []int64          `json:"ticket_ids"`
	CreatedAt     time.Time        `json:"created_at"`
	SettledAt     *time.Time       `json:"settled_at,omitempty"`
}

type ticketResponse struct {
	ID          int64     `json:"id"`
	ActivityID  int64     `json:"activity_id"`
	ChoiceIndex int       `json:"choice_index"`
	Amount      string    `json:"amount"`
	Owner       string    `json:"owner"`
	Approved    bool      `json:"approved"`
	Claimed     bool      `json:"claimed"`
	Payout      *string   `json:"payout,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type listingResponse struct {
	ID        int64      `json:"id"`
	TokenID   int64      `json:"token_id"`
	Seller    string     `json:"seller"`
	Price     string     `json:"price"`
	Status    string     `json:"status"`
	Buyer     *string    `json:"buyer,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

type payoutResponse struct {
	TicketID int64  `json:"ticket_id"`
	Owner    string `json:"owner"`
	Amount   string `json:"amount"`
	Winner   bool   `json:"winner"`
	Refund   bool   `json:"refund"`
}

type settlementResponse struct {
	ActivityID    int64            `json:"activity_id"`
	WinningChoice int              `json:"winning_choice"`
	TotalPool     string           `json:"total_pool"`
	WinnerPool    string           `json:"winner_pool"`
	CreatorCredit string           `json:"creator_credit"`
	Residue       string           `json:"residue"`
	Refunded      bool             `json:"refunded"`
	Payouts       []payoutResponse `json:"payouts"`
}

type balanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type historyResponse struct {
	ID            int64          `json:"id"`
	Direction     string         `json:"direction"`
	Amount        string         `json:"amount"`
	BalanceBefore string         `json:"balance_before"`
	BalanceAfter  string         `json:"balance_after"`
	EntryType     string         `json:"entry_type"`
	RelatedType   *string        `json:"related_type,omitempty"`
	RelatedID     *int64         `json:"related_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

type withdrawalResponse struct {
	ID            int64      `json:"id"`
	Address       string     `json:"address"`
	Amount        string     `json:"amount"`
	Status        string     `json:"status"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

type existsResponse struct {
	Exists bool `json:"exists"`
}

type countResponse struct {
	Count int `json:"count"`
}

type ticketIDsResponse struct {
	TicketIDs []int64 `json:"ticket_ids"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func parseAmount(field, value string) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("%s must be a decimal wei amount: %w", field, err)
	}
	return amount, nil
}

func parseAddress(value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid address %q", value)
	}
	return common.HexToAddress(value), nil
}

func toActivityResponse(detail *models.ActivityDetail) activityResponse {
	a := detail.Activity
	resp := activityResponse{
		ID:            a.ID,
		Creator:       a.Creator.Hex(),
		Content:       a.Content,
		Deadline:      a.Deadline,
		InitialPool:   a.InitialPool.Dec(),
		TotalPool:     a.TotalPool.Dec(),
		Settled:       a.Settled,
		WinningChoice: a.WinningChoice,
		Choices:       make([]choiceResponse, 0, len(detail.Choices)),
		TicketIDs:     detail.TicketIDs,
		CreatedAt:     a.CreatedAt,
		SettledAt:     a.SettledAt,
	}
	if resp.TicketIDs == nil {
		resp.TicketIDs = []int64{}
	}
	for _, c := range detail.Choices {
		resp.Choices = append(resp.Choices, choiceResponse{Index: c.ChoiceIndex, Label: c.Label, Pool: c.Pool.Dec()})
	}
	return resp
}

func toTicketResponse(t *models.Ticket) ticketResponse {
	resp := ticketResponse{
		ID:          t.ID,
		ActivityID:  t.ActivityID,
		ChoiceIndex: t.ChoiceIndex,
		Amount:      t.Amount.Dec(),
		Owner:       t.Owner.Hex(),
		Approved:    t.Approved,
		Claimed:     t.Claimed,
		CreatedAt:   t.CreatedAt,
	}
	if t.Payout != nil {
		payout := t.Payout.Dec()
		resp.Payout = &payout
	}
	return resp
}

func toTicketResponses(tickets []*models.Ticket) []ticketResponse {
	resp := make([]ticketResponse, 0, len(tickets))
	for _, t := range tickets {
		resp = append(resp, toTicketResponse(t))
	}
	return resp
}

func toListingResponse(l *models.Listing) listingResponse {
	resp := listingResponse{
		ID:        l.ID,
		TokenID:   l.TokenID,
		Seller:    l.Seller.Hex(),
		Price:     l.Price.Dec(),
		Status:    string(l.Status),
		CreatedAt: l.CreatedAt,
		ClosedAt:  l.ClosedAt,
	}
	if l.Buyer != nil {
		buyer := l.Buyer.Hex()
		resp.Buyer = &buyer
	}
	return resp
}

func toListingResponses(listings []*models.Listing) []listingResponse {
	resp := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		resp = append(resp, toListingResponse(l))
	}
	return resp
}

func toSettlementResponse(s *models.Settlement) settlementResponse {
	resp := settlementResponse{
		ActivityID:    s.ActivityID,
		WinningChoice: s.WinningChoice,
		TotalPool:     s.TotalPool.Dec(),
		WinnerPool:    s.WinnerPool.Dec(),
		CreatorCredit: s.CreatorCredit.Dec(),
		Residue:       s.Residue.Dec(),
		Refunded:      s.Refunded,
		Payouts:       make([]payoutResponse, 0, len(s.Payouts)),
	}
	for _, p := range s.Payouts {
		resp.Payouts = append(resp.Payouts, payoutResponse{
			TicketID: p.TicketID,
			Owner:    p.Owner.Hex(),
			Amount:   p.Amount.Dec(),
			Winner:   p.IsWinner,
			Refund:   p.IsRefund,
		})
	}
	return resp
}

func toHistoryResponses(history []*models.VaultHistory) []historyResponse {
	resp := make([]historyResponse, 0, len(history))
	for _, h := range history {
		entry := historyResponse{
			ID:            h.ID,
			Direction:     string(h.Direction),
			Amount:        h.Amount.Dec(),
			BalanceBefore: h.BalanceBefore.Dec(),
			BalanceAfter:  h.BalanceAfter.Dec(),
			EntryType:     string(h.EntryType),
			RelatedID:     h.RelatedID,
			Metadata:      h.Metadata,
			CreatedAt:     h.CreatedAt,
		}
		if h.RelatedType != nil {
			related := string(*h.RelatedType)
			entry.RelatedType = &related
		}
		resp = append(resp, entry)
	}
	return resp
}

func toWithdrawalResponse(w *models.Withdrawal) withdrawalResponse {
	return withdrawalResponse{
		ID:            w.ID,
		Address:       w.Address.Hex(),
		Amount:        w.Amount.Dec(),
		Status:        string(w.Status),
		FailureReason: w.FailureReason,
		CreatedAt:     w.CreatedAt,
		CompletedAt:   w.CompletedAt,
	}
}
