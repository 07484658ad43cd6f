package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"betledger/models"
	"betledger/service"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testWithdrawal() *models.Withdrawal {
	return &models.Withdrawal{
		ID:        12,
		Address:   common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		Amount:    uint256.NewInt(150),
		Status:    models.WithdrawalStatusPending,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNATSPayer_PublishesInstruction(t *testing.T) {
	publisher := new(MockMessagePublisher)
	payer := NewNATSPayer(publisher, "betledger.withdrawals")

	var published *nats.Msg
	publisher.On("PublishMsg", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			published = args.Get(1).(*nats.Msg)
		}).Return(nil)

	require.NoError(t, payer.Transfer(context.Background(), testWithdrawal()))
	require.NotNil(t, published)
	assert.Equal(t, "betledger.withdrawals", published.Subject)

	var instruction WithdrawalInstruction
	require.NoError(t, json.Unmarshal(published.Data, &instruction))
	assert.Equal(t, int64(12), instruction.WithdrawalID)
	assert.Equal(t, "150", instruction.Amount)
	assert.Equal(t, testWithdrawal().Address.Hex(), instruction.Address)
	assert.Equal(t, InstructionID(12), instruction.InstructionID)
	assert.Equal(t, instruction.InstructionID, published.Header.Get(nats.MsgIdHdr))
}

func TestInstructionID(t *testing.T) {
	assert.Equal(t, InstructionID(12), InstructionID(12))
	assert.NotEqual(t, InstructionID(12), InstructionID(13))

	_, err := uuid.Parse(InstructionID(12))
	assert.NoError(t, err)
}

func TestNATSPayer_ResendKeepsMessageID(t *testing.T) {
	publisher := new(MockMessagePublisher)
	payer := NewNATSPayer(publisher, "betledger.withdrawals")

	var ids []string
	record := func(args mock.Arguments) {
		ids = append(ids, args.Get(1).(*nats.Msg).Header.Get(nats.MsgIdHdr))
	}
	publisher.On("PublishMsg", mock.Anything, mock.Anything).Run(record).Return(context.DeadlineExceeded).Once()
	publisher.On("PublishMsg", mock.Anything, mock.Anything).Run(record).Return(nil).Once()

	err := payer.Transfer(context.Background(), testWithdrawal())
	require.Error(t, err)
	require.NoError(t, payer.Transfer(context.Background(), testWithdrawal()))

	require.Len(t, ids, 2)
	assert.Equal(t, ids[0], ids[1])
}

func TestNATSPayer_TimeoutLeavesDeliveryUnknown(t *testing.T) {
	for _, publishErr := range []error{context.DeadlineExceeded, nats.ErrTimeout, errors.New("connection reset")} {
		t.Run(publishErr.Error(), func(t *testing.T) {
			publisher := new(MockMessagePublisher)
			payer := NewNATSPayer(publisher, "betledger.withdrawals")
			publisher.On("PublishMsg", mock.Anything, mock.Anything).Return(publishErr)

			err := payer.Transfer(context.Background(), testWithdrawal())
			assert.ErrorIs(t, err, publishErr)
			assert.NotErrorIs(t, err, service.ErrTransferRejected)
		})
	}
}

func TestNATSPayer_DefiniteFailureIsRejected(t *testing.T) {
	cases := map[string]error{
		"not connected":      ErrNotConnected,
		"no stream response": nats.ErrNoStreamResponse,
		"connection closed":  nats.ErrConnectionClosed,
		"stream refused ack": &nats.APIError{Code: 503, ErrorCode: nats.JSErrCodeStreamNotFound, Description: "stream not found"},
	}

	for name, publishErr := range cases {
		t.Run(name, func(t *testing.T) {
			publisher := new(MockMessagePublisher)
			payer := NewNATSPayer(publisher, "betledger.withdrawals")
			publisher.On("PublishMsg", mock.Anything, mock.Anything).
				Return(fmt.Errorf("failed to publish message to subject betledger.withdrawals: %w", publishErr))

			err := payer.Transfer(context.Background(), testWithdrawal())
			assert.ErrorIs(t, err, service.ErrTransferRejected)
			assert.ErrorIs(t, err, publishErr)
		})
	}
}

func TestNoopPayer(t *testing.T) {
	assert.NoError(t, NewNoopPayer().Transfer(context.Background(), testWithdrawal()))
}
