package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"betledger/models"
	"betledger/service"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

var withdrawalNamespace = uuid.MustParse("5b0c7e2a-3f41-4c8e-9d7a-1e6f0b2c4a90")

// WithdrawalInstruction asks the payout system to send funds to an address
type WithdrawalInstruction struct {
	InstructionID string    `json:"instruction_id"`
	WithdrawalID  int64     `json:"withdrawal_id"`
	Address       string    `json:"address"`
	Amount        string    `json:"amount"`
	RequestedAt   time.Time `json:"requested_at"`
}

// InstructionID is the stable identity of the instruction for a withdrawal.
// It doubles as the Nats-Msg-Id, so every publish of the same withdrawal
// collapses into one stored message and one payout.
func InstructionID(withdrawalID int64) string {
	return uuid.NewSHA1(withdrawalNamespace, []byte(strconv.FormatInt(withdrawalID, 10))).String()
}

// NATSPayer hands withdrawals to the payout system over JetStream.
// A transfer succeeds once the stream has stored the instruction.
type NATSPayer struct {
	publisher MessagePublisher
	subject   string
}

// NewNATSPayer creates a payer publishing instructions to subject
func NewNATSPayer(publisher MessagePublisher, subject string) *NATSPayer {
	return &NATSPayer{
		publisher: publisher,
		subject:   subject,
	}
}

// Transfer publishes the withdrawal instruction. Errors that prove the stream never
// stored it wrap service.ErrTransferRejected; anything else, such as a timeout
// waiting for the ack, leaves delivery unknown.
func (p *NATSPayer) Transfer(ctx context.Context, withdrawal *models.Withdrawal) error {
	instruction := WithdrawalInstruction{
		InstructionID: InstructionID(withdrawal.ID),
		WithdrawalID:  withdrawal.ID,
		Address:       withdrawal.Address.Hex(),
		Amount:        withdrawal.Amount.Dec(),
		RequestedAt:   withdrawal.CreatedAt,
	}

	data, err := json.Marshal(instruction)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal withdrawal instruction: %w", service.ErrTransferRejected, err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, instruction.InstructionID)

	if err := p.publisher.PublishMsg(ctx, msg); err != nil {
		if notDelivered(err) {
			return fmt.Errorf("%w: withdrawal %d: %w", service.ErrTransferRejected, withdrawal.ID, err)
		}
		return fmt.Errorf("failed to publish withdrawal %d: %w", withdrawal.ID, err)
	}

	log.WithFields(log.Fields{
		"withdrawalId":  withdrawal.ID,
		"instructionId": instruction.InstructionID,
		"address":       instruction.Address,
		"amount":        instruction.Amount,
	}).Info("Withdrawal instruction published")
	return nil
}

// notDelivered reports publish errors raised before the message could reach a
// stream, or a stream ack that refused it.
func notDelivered(err error) bool {
	var apiErr *nats.APIError
	switch {
	case errors.Is(err, ErrNotConnected),
		errors.Is(err, nats.ErrNoStreamResponse),
		errors.Is(err, nats.ErrNoResponders),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionDraining),
		errors.Is(err, nats.ErrDisconnected):
		return true
	case errors.As(err, &apiErr):
		return true
	default:
		return false
	}
}
