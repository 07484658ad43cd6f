package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"betledger/models"
	"betledger/observability"
	"betledger/service"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	creator = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	alice   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob     = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

func newTestServer() (*MockEngine, http.Handler) {
	engine := new(MockEngine)
	return engine, New(engine, nil).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, caller *common.Address, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if caller != nil {
		req.Header.Set(CallerHeader, caller.Hex())
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestCreateActivity(t *testing.T) {
	engine, h := newTestServer()
	deadline := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	engine.On("CreateActivity", mock.Anything, creator, "Who wins?", []string{"A", "B"},
		mock.MatchedBy(func(d time.Time) bool { return d.Equal(deadline) }),
		uint256.NewInt(100000000000000000),
	).Return(int64(1), nil)

	body := `{"content":"Who wins?","choices":["A","B"],"deadline":"2026-06-01T00:00:00Z","attached":"100000000000000000"}`
	rec := do(t, h, http.MethodPost, "/activities", &creator, body)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(1), decodeBody[idResponse](t, rec).ID)
	engine.AssertExpectations(t)
}

func TestMutationsRequireCaller(t *testing.T) {
	engine, h := newTestServer()

	rec := do(t, h, http.MethodPost, "/activities/1/fund", nil, `{"attached":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_argument", decodeBody[errorResponse](t, rec).Code)

	engine.AssertNotCalled(t, "FundActivity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMalformedInput(t *testing.T) {
	_, h := newTestServer()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"non numeric id", http.MethodGet, "/activities/abc", ""},
		{"negative amount", http.MethodPost, "/activities/1/tickets", `{"choice_index":0,"attached":"-5"}`},
		{"missing amount", http.MethodPost, "/vault/withdraw", `{}`},
		{"unknown field", http.MethodPost, "/activities/1/settle", `{"winner":1}`},
		{"bad address", http.MethodGet, "/vault/not-an-address", ""},
		{"bad limit", http.MethodGet, "/vault/" + alice.Hex() + "/history?limit=x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, &alice, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrNotFound, http.StatusNotFound, "not_found"},
		{service.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
		{service.ErrAlreadySettled, http.StatusConflict, "already_settled"},
		{service.ErrAlreadyListed, http.StatusConflict, "already_listed"},
		{service.ErrListingNotActive, http.StatusConflict, "listing_not_active"},
		{service.ErrDeadlinePassed, http.StatusUnprocessableEntity, "deadline_passed"},
		{service.ErrInvalidChoice, http.StatusUnprocessableEntity, "invalid_choice"},
		{service.ErrInsufficientPayment, http.StatusPaymentRequired, "insufficient_payment"},
		{service.ErrInsufficientBalance, http.StatusPaymentRequired, "insufficient_balance"},
		{service.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
		{errors.New("connection refused"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			engine, h := newTestServer()
			engine.On("BuyListedTicket", mock.Anything, bob, int64(4), uint256.NewInt(15)).
				Return(fmt.Errorf("%w: ticket 4", tt.err))

			rec := do(t, h, http.MethodPost, "/tickets/4/listing/buy", &bob, `{"attached":"15"}`)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeBody[errorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Code)
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, resp.Error, "connection refused")
			}
		})
	}
}

func TestGetActivityDetail(t *testing.T) {
	engine, h := newTestServer()
	winner := 0
	engine.On("GetActivityDetail", mock.Anything, int64(3)).Return(&models.ActivityDetail{
		Activity: &models.Activity{
			ID:            3,
			Creator:       creator,
			Content:       "Who wins?",
			ChoiceCount:   2,
			InitialPool:   uint256.NewInt(100),
			TotalPool:     uint256.NewInt(150),
			Settled:       true,
			WinningChoice: &winner,
		},
		Choices: []*models.ActivityChoice{
			{ActivityID: 3, ChoiceIndex: 0, Label: "A", Pool: uint256.NewInt(20)},
			{ActivityID: 3, ChoiceIndex: 1, Label: "B", Pool: uint256.NewInt(30)},
		},
		TicketIDs: []int64{1, 2},
	}, nil)

	rec := do(t, h, http.MethodGet, "/activities/3", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[activityResponse](t, rec)
	assert.Equal(t, "150", resp.TotalPool)
	assert.Equal(t, creator.Hex(), resp.Creator)
	require.Len(t, resp.Choices, 2)
	assert.Equal(t, "30", resp.Choices[1].Pool)
	assert.Equal(t, []int64{1, 2}, resp.TicketIDs)
	require.NotNil(t, resp.WinningChoice)
	assert.Equal(t, 0, *resp.WinningChoice)
}

func TestListingRoutes(t *testing.T) {
	engine, h := newTestServer()
	listing := &models.Listing{ID: 9, TokenID: 4, Seller: alice, Price: uint256.NewInt(20), Status: models.ListingStatusActive}
	engine.On("ListTicket", mock.Anything, alice, int64(4), uint256.NewInt(20)).Return(listing, nil)
	engine.On("CancelListing", mock.Anything, alice, int64(4)).Return(nil)
	engine.On("GetAllTrades", mock.Anything).Return([]*models.Listing{}, nil)

	rec := do(t, h, http.MethodPost, "/tickets/4/listing", &alice, `{"price":"20"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "active", decodeBody[listingResponse](t, rec).Status)

	rec = do(t, h, http.MethodDelete, "/tickets/4/listing", &alice, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/trades", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	engine.AssertExpectations(t)
}

func TestVaultRoutes(t *testing.T) {
	engine, h := newTestServer()
	engine.On("GetBalance", mock.Anything, alice).Return(uint256.NewInt(150), nil)
	engine.On("GetVaultHistory", mock.Anything, alice, 5).Return([]*models.VaultHistory{}, nil)
	engine.On("Withdraw", mock.Anything, alice, uint256.NewInt(150)).Return(&models.Withdrawal{
		ID: 1, Address: alice, Amount: uint256.NewInt(150), Status: models.WithdrawalStatusCompleted,
	}, nil)

	rec := do(t, h, http.MethodGet, "/vault/"+alice.Hex(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "150", decodeBody[balanceResponse](t, rec).Balance)

	rec = do(t, h, http.MethodGet, "/vault/"+alice.Hex()+"/history?limit=5", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/vault/withdraw", &alice, `{"amount":"150"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decodeBody[withdrawalResponse](t, rec).Status)
}

func TestWithdrawTransferOutcomes(t *testing.T) {
	reason := "no response from stream"

	cases := []struct {
		name       string
		withdrawal *models.Withdrawal
		err        error
		wantStatus int
		wantCode   string
		wantState  string
	}{
		{
			name: "rejected transfer was reversed",
			withdrawal: &models.Withdrawal{
				ID: 2, Address: alice, Amount: uint256.NewInt(10), Status: models.WithdrawalStatusFailed, FailureReason: &reason,
			},
			err:        fmt.Errorf("failed to transfer withdrawal 2: %w", fmt.Errorf("%w: %s", service.ErrTransferRejected, reason)),
			wantStatus: http.StatusBadGateway,
			wantCode:   "transfer_failed",
			wantState:  `"status":"failed"`,
		},
		{
			name: "unconfirmed transfer stays pending",
			withdrawal: &models.Withdrawal{
				ID: 3, Address: alice, Amount: uint256.NewInt(10), Status: models.WithdrawalStatusPending,
			},
			err:        fmt.Errorf("%w: withdrawal 3: %w", service.ErrTransferUnconfirmed, context.DeadlineExceeded),
			wantStatus: http.StatusAccepted,
			wantCode:   "transfer_unconfirmed",
			wantState:  `"status":"pending"`,
		},
		{
			name: "sent transfer is not reported as failed",
			withdrawal: &models.Withdrawal{
				ID: 4, Address: alice, Amount: uint256.NewInt(10), Status: models.WithdrawalStatusCompleted,
			},
			err:        fmt.Errorf("%w: withdrawal 4: %w", service.ErrWithdrawalUnrecorded, errors.New("db down")),
			wantStatus: http.StatusAccepted,
			wantCode:   "withdrawal_unrecorded",
			wantState:  `"status":"completed"`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, h := newTestServer()
			engine.On("Withdraw", mock.Anything, alice, uint256.NewInt(10)).Return(tc.withdrawal, tc.err)

			rec := do(t, h, http.MethodPost, "/vault/withdraw", &alice, `{"amount":"10"}`)
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.wantState)
			assert.Contains(t, rec.Body.String(), `"code":"`+tc.wantCode+`"`)
			assert.NotContains(t, rec.Body.String(), "db down")
		})
	}
}

func TestWithdrawReversalFailureIsInternal(t *testing.T) {
	engine, h := newTestServer()
	engine.On("Withdraw", mock.Anything, alice, uint256.NewInt(10)).
		Return(nil, errors.New("failed to reverse withdrawal 5 after transfer error: db down"))

	rec := do(t, h, http.MethodPost, "/vault/withdraw", &alice, `{"amount":"10"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"internal"`)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.NewMetrics(reg).ObserveOperation("buy_ticket", "ok", time.Millisecond)
	h := New(new(MockEngine), reg).Handler()

	rec := do(t, h, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "betledger_engine_operations_total")
}
