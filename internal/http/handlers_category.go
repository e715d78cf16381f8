package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"incomeledger/internal/core"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	categories, err := s.categories.List(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if categories == nil {
		categories = []core.Category{}
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: categories})
}

type createCategoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	category, err := s.categories.Create(r.Context(), actor, req.Name, req.Color)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Category created", "id", category.ID, "actor_id", actor)

	writeJSON(w, http.StatusCreated, apiResponse{
		Success: true,
		Data:    category,
		Message: "Category created successfully",
	})
}
