package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"incomeledger/internal/core"
	"incomeledger/internal/services"
)

// defaultPageSize applies when the limit parameter is absent. A supplied
// limit below 1 is clamped to 1 instead, never widened to this default.
const defaultPageSize = 10

type createTransactionRequest struct {
	Amount          core.Money `json:"amount"`
	Source          string     `json:"source"`
	CategoryID      string     `json:"categoryId"`
	TransactionDate string     `json:"transactionDate"`
	Notes           string     `json:"notes"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			writeServiceError(w, r, err)
		} else {
			writeError(w, http.StatusBadRequest, "Invalid request body")
		}
		return
	}

	if strings.TrimSpace(req.TransactionDate) == "" {
		writeError(w, http.StatusUnprocessableEntity, "transactionDate: is required")
		return
	}
	txDate, err := parseDate(req.TransactionDate)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "transactionDate: invalid date format")
		return
	}

	input := services.CreateTransactionInput{
		Amount:          req.Amount,
		Source:          strings.TrimSpace(req.Source),
		CategoryID:      req.CategoryID,
		TransactionDate: txDate,
		Notes:           req.Notes,
	}

	transaction, err := s.ledger.Create(r.Context(), actor, input, auditContext(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Transaction created",
		"id", transaction.ID, "actor_id", actor, "amount", transaction.Amount.String())

	writeJSON(w, http.StatusCreated, apiResponse{
		Success: true,
		Data:    transaction,
		Message: "Transaction created successfully",
	})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	q := r.URL.Query()
	filters := core.TransactionFilters{
		CategoryID: q.Get("categoryId"),
		Search:     q.Get("search"),
		Page:       1,
		Limit:      defaultPageSize,
	}

	if v := strings.TrimSpace(q.Get("startDate")); v != "" {
		t, err := parseDate(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "startDate: invalid date format")
			return
		}
		filters.StartDate = &t
	}
	if v := strings.TrimSpace(q.Get("endDate")); v != "" {
		t, err := parseDate(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "endDate: invalid date format")
			return
		}
		filters.EndDate = &t
	}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filters.Page = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filters.Limit = n
		}
	}

	items, pagination, err := s.ledger.List(r.Context(), actor, filters)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []core.Transaction{}
	}

	writeJSON(w, http.StatusOK, apiResponse{
		Success:    true,
		Data:       items,
		Pagination: &pagination,
	})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	transaction, err := s.ledger.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: transaction})
}

type updateTransactionRequest struct {
	Amount          *core.Money `json:"amount"`
	Source          *string     `json:"source"`
	CategoryID      *string     `json:"categoryId"`
	TransactionDate *string     `json:"transactionDate"`
	Notes           *string     `json:"notes"`
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req updateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			writeServiceError(w, r, err)
		} else {
			writeError(w, http.StatusBadRequest, "Invalid request body")
		}
		return
	}

	patch := core.TransactionPatch{
		Amount:     req.Amount,
		Source:     req.Source,
		CategoryID: req.CategoryID,
		Notes:      req.Notes,
	}
	if req.TransactionDate != nil {
		t, err := parseDate(*req.TransactionDate)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "transactionDate: invalid date format")
			return
		}
		patch.TransactionDate = &t
	}

	transaction, err := s.ledger.Update(r.Context(), actor, r.PathValue("id"), patch, auditContext(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Transaction updated", "id", transaction.ID, "actor_id", actor)

	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Data:    transaction,
		Message: "Transaction updated successfully",
	})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id := r.PathValue("id")
	if err := s.ledger.Delete(r.Context(), actor, id, auditContext(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Transaction deleted", "id", id, "actor_id", actor)

	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "Transaction deleted successfully",
	})
}
