package infrastructure

import (
	"context"

	"betledger/models"

	log "github.com/sirupsen/logrus"
)

// NoopPayer accepts every transfer without moving funds.
// Used when no message bus is configured.
type NoopPayer struct{}

// NewNoopPayer creates a new no-op payer
func NewNoopPayer() *NoopPayer {
	return &NoopPayer{}
}

func (p *NoopPayer) Transfer(ctx context.Context, withdrawal *models.Withdrawal) error {
	log.WithFields(log.Fields{
		"withdrawalId": withdrawal.ID,
		"address":      withdrawal.Address.Hex(),
		"amount":       withdrawal.Amount.Dec(),
	}).Warn("No payer configured, withdrawal accepted without transfer")
	return nil
}
