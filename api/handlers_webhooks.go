package api

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strconv"

	models "forecast-backtest/database/models_pkg"
)

// webhookRequest is the JSON body for creating or updating a webhook.
type webhookRequest struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	Enabled       *bool  `json:"enabled"`
	ModelFilter   string `json:"model_filter"`
	MetricFilter  string `json:"metric_filter"`
	OnFailureOnly bool   `json:"on_failure_only"`
}

func (req *webhookRequest) validate() string {
	if req.Name == "" {
		return "name is required"
	}
	if req.URL == "" {
		return "url is required"
	}
	parsed, err := url.Parse(req.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "url must be a valid http(s) URL"
	}
	return ""
}

// handleGetWebhooks returns all configured webhooks
func (s *Server) handleGetWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := s.hooksRepo.GetAll()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load webhooks", err)
		return
	}
	if hooks == nil {
		hooks = []models.ModelWebhook{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"webhooks": hooks,
		"count":    len(hooks),
	})
}

// handleCreateWebhook registers a new run-completion webhook
func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if msg := req.validate(); msg != "" {
		respondWithError(w, http.StatusBadRequest, msg, nil)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	hook := models.ModelWebhook{
		Name:          req.Name,
		URL:           req.URL,
		Enabled:       enabled,
		ModelFilter:   req.ModelFilter,
		MetricFilter:  req.MetricFilter,
		OnFailureOnly: req.OnFailureOnly,
	}
	if err := s.hooksRepo.Save(&hook); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to save webhook", err)
		return
	}

	s.webhookMgr.RefreshCache()
	log.Printf("✅ Webhook %q registered (id=%d)", hook.Name, hook.ID)
	respondJSON(w, http.StatusCreated, hook)
}

// handleUpdateWebhook updates an existing webhook in place
func (s *Server) handleUpdateWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid webhook id", err)
		return
	}

	hook, err := s.hooksRepo.GetByID(id)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load webhook", err)
		return
	}
	if hook == nil {
		respondWithError(w, http.StatusNotFound, "Webhook not found", nil)
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if msg := req.validate(); msg != "" {
		respondWithError(w, http.StatusBadRequest, msg, nil)
		return
	}

	hook.Name = req.Name
	hook.URL = req.URL
	hook.ModelFilter = req.ModelFilter
	hook.MetricFilter = req.MetricFilter
	hook.OnFailureOnly = req.OnFailureOnly
	if req.Enabled != nil {
		hook.Enabled = *req.Enabled
	}

	if err := s.hooksRepo.Save(hook); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to update webhook", err)
		return
	}

	s.webhookMgr.RefreshCache()
	respondJSON(w, http.StatusOK, hook)
}

// handleDeleteWebhook removes a webhook
func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid webhook id", err)
		return
	}

	if err := s.hooksRepo.Delete(id); err != nil {
		respondWithError(w, http.StatusNotFound, "Webhook not found", err)
		return
	}

	s.webhookMgr.RefreshCache()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Webhook deleted",
		"id":      id,
	})
}
