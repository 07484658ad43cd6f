package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
)

type callerKey struct{}

// requireCaller rejects requests without a valid caller identity
func requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := parseAddress(r.Header.Get(CallerHeader))
		if err != nil {
			writeBadRequest(w, CallerHeader+" header must carry the caller address")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

func callerFrom(r *http.Request) common.Address {
	caller, _ := r.Context().Value(callerKey{}).(common.Address)
	return caller
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func pathAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	address, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return common.Address{}, false
	}
	return address, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// Health reports liveness
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateActivity handles POST /activities
func (s *Server) CreateActivity(w http.ResponseWriter, r *http.Request) {
	var req createActivityRequest
	if !decode(w, r, &req) {
		return
	}
	attached, err := parseAmount("attached", req.Attached)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	id, err := s.engine.CreateActivity(r.Context(), callerFrom(r), req.Content, req.Choices, req.Deadline, attached)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

// GetActivityDetail handles GET /activities/{id}
func (s *Server) GetActivityDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	detail, err := s.engine.GetActivityDetail(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityResponse(detail))
}

// ActivityExists handles GET /activities/{id}/exists
func (s *Server) ActivityExists(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	exists, err := s.engine.ActivityExists(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existsResponse{Exists: exists})
}

// GetChoicesCount handles GET /activities/{id}/choices/count
func (s *Server) GetChoicesCount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	count, err := s.engine.GetChoicesCount(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: count})
}

// GetActivityTicketIDs handles GET /activities/{id}/tickets
func (s *Server) GetActivityTicketIDs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ids, err := s.engine.GetActivityTicketIDs(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	writeJSON(w, http.StatusOK, ticketIDsResponse{TicketIDs: ids})
}

// FundActivity handles POST /activities/{id}/fund
func (s *Server) FundActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req attachedRequest
	if !decode(w, r, &req) {
		return
	}
	attached, err := parseAmount("attached", req.Attached)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.engine.FundActivity(r.Context(), callerFrom(r), id, attached); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BuyTicket handles POST /activities/{id}/tickets
func (s *Server) BuyTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req buyTicketRequest
	if !decode(w, r, &req) {
		return
	}
	attached, err := parseAmount("attached", req.Attached)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	tokenID, err := s.engine.BuyTicket(r.Context(), callerFrom(r), id, req.ChoiceIndex, attached)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: tokenID})
}

// SettleActivity handles POST /activities/{id}/settle
func (s *Server) SettleActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req settleRequest
	if !decode(w, r, &req) {
		return
	}

	settlement, err := s.engine.SettleActivity(r.Context(), callerFrom(r), id, req.WinningChoice)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResponse(settlement))
}

// GetTicketInfo handles GET /tickets/{id}
func (s *Server) GetTicketInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ticket, err := s.engine.GetTicketInfo(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTicketResponse(ticket))
}

// ApproveTicket handles POST /tickets/{id}/approve
func (s *Server) ApproveTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.engine.ApproveTicket(r.Context(), callerFrom(r), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetListing handles GET /tickets/{id}/listing
func (s *Server) GetListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	listing, err := s.engine.GetListing(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponse(listing))
}

// ListTicket handles POST /tickets/{id}/listing
func (s *Server) ListTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req listTicketRequest
	if !decode(w, r, &req) {
		return
	}
	price, err := parseAmount("price", req.Price)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	listing, err := s.engine.ListTicket(r.Context(), callerFrom(r), id, price)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toListingResponse(listing))
}

// CancelListing handles DELETE /tickets/{id}/listing
func (s *Server) CancelListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.engine.CancelListing(r.Context(), callerFrom(r), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BuyListedTicket handles POST /tickets/{id}/listing/buy
func (s *Server) BuyListedTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req attachedRequest
	if !decode(w, r, &req) {
		return
	}
	attached, err := parseAmount("attached", req.Attached)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.engine.BuyListedTicket(r.Context(), callerFrom(r), id, attached); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAllListings handles GET /listings
func (s *Server) GetAllListings(w http.ResponseWriter, r *http.Request) {
	listings, err := s.engine.GetAllListings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponses(listings))
}

// GetAllTrades handles GET /trades
func (s *Server) GetAllTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.engine.GetAllTrades(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponses(trades))
}

// GetTicketsByOwner handles GET /owners/{address}/tickets
func (s *Server) GetTicketsByOwner(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathAddress(w, r)
	if !ok {
		return
	}
	tickets, err := s.engine.GetTicketsByOwner(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTicketResponses(tickets))
}

// GetBalance handles GET /vault/{address}
func (s *Server) GetBalance(w http.ResponseWriter, r *http.Request) {
	address, ok := pathAddress(w, r)
	if !ok {
		return
	}
	balance, err := s.engine.GetBalance(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: address.Hex(), Balance: balance.Dec()})
}

// GetVaultHistory handles GET /vault/{address}/history?limit=n
func (s *Server) GetVaultHistory(w http.ResponseWriter, r *http.Request) {
	address, ok := pathAddress(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	history, err := s.engine.GetVaultHistory(r.Context(), address, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryResponses(history))
}

// Withdraw handles POST /vault/withdraw
func (s *Server) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if !decode(w, r, &req) {
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	withdrawal, err := s.engine.Withdraw(r.Context(), callerFrom(r), amount)
	if err != nil {
		if withdrawal != nil {
			writeWithdrawalOutcome(w, withdrawal, err)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalResponse(withdrawal))
}
