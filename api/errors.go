package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"betledger/models"
	"betledger/service"

	log "github.com/sirupsen/logrus"
)

var statusByError = []struct {
	err    error
	status int
}{
	{service.ErrNotFound, http.StatusNotFound},
	{service.ErrUnauthorized, http.StatusForbidden},
	{service.ErrAlreadySettled, http.StatusConflict},
	{service.ErrAlreadyListed, http.StatusConflict},
	{service.ErrListingNotActive, http.StatusConflict},
	{service.ErrDeadlinePassed, http.StatusUnprocessableEntity},
	{service.ErrInvalidChoice, http.StatusUnprocessableEntity},
	{service.ErrInsufficientPayment, http.StatusPaymentRequired},
	{service.ErrInsufficientBalance, http.StatusPaymentRequired},
	{service.ErrInvalidArgument, http.StatusBadRequest},
	{service.ErrTransferRejected, http.StatusBadGateway},
	{service.ErrTransferUnconfirmed, http.StatusAccepted},
	{service.ErrWithdrawalUnrecorded, http.StatusAccepted},
}

var withdrawalMessages = map[string]string{
	"transfer_failed":       "transfer failed",
	"transfer_unconfirmed":  "transfer not confirmed",
	"withdrawal_unrecorded": "transfer sent but not recorded",
}

// statusFor maps engine errors to HTTP statuses
func statusFor(err error) int {
	for _, s := range statusByError {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: message, Code: service.ErrorCode(err)})
}

// writeBadRequest reports malformed input that never reached the engine
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message, Code: service.ErrorCode(service.ErrInvalidArgument)})
}

// writeWithdrawalOutcome reports a withdrawal whose debit committed but whose
// transfer did not finish cleanly, together with the withdrawal record.
// A rejected transfer was reversed; the other outcomes keep the debit.
func writeWithdrawalOutcome(w http.ResponseWriter, withdrawal *models.Withdrawal, err error) {
	code := service.ErrorCode(err)
	message, ok := withdrawalMessages[code]
	if !ok {
		writeError(w, err)
		return
	}

	writeJSON(w, statusFor(err), struct {
		errorResponse
		Withdrawal withdrawalResponse `json:"withdrawal"`
	}{
		errorResponse: errorResponse{Error: message, Code: code},
		Withdrawal:    toWithdrawalResponse(withdrawal),
	})
}
