package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/repository"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/service"
)

// CampaignHandler handles HTTP requests for campaign operations
type CampaignHandler struct {
	campaignService *service.CampaignService
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignService *service.CampaignService) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
	}
}

// Create handles POST /campaigns
func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	// Parse request body
	var req service.CreateCampaignRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// Call service to create campaign
	campaign, err := h.campaignService.CreateCampaign(r.Context(), &req)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	WriteCreated(w, r, campaign)
}

// List handles GET /campaigns with page, per_page, status and channel filters
func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	// Parse query parameters
	query := r.URL.Query()

	page := 1
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	perPage := 20
	if perPageStr := query.Get("per_page"); perPageStr != "" {
		if pp, err := strconv.Atoi(perPageStr); err == nil && pp > 0 {
			perPage = pp
		}
	}

	filters := repository.CampaignFilters{
		Page:     page,
		PageSize: perPage,
	}

	// Validate filters before they reach the repository
	if statusStr := query.Get("status"); statusStr != "" {
		status := models.CampaignStatus(statusStr)
		if !status.Valid() {
			WriteValidationError(w, r, "invalid status: must be one of draft, scheduled, sending, sent")
			return
		}
		filters.Status = &status
	}

	if channelStr := query.Get("channel"); channelStr != "" {
		channel := models.Channel(channelStr)
		if !channel.Valid() {
			WriteValidationError(w, r, "invalid channel: must be 'email' or 'sms'")
			return
		}
		filters.Channel = &channel
	}

	campaigns, pagination, err := h.campaignService.ListCampaigns(r.Context(), filters)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	WriteOK(w, r, ListCampaignsResponse{
		Campaigns:  campaigns,
		Pagination: pagination,
	})
}

// GetByID handles GET /campaigns/{id}
func (h *CampaignHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	campaign, err := h.campaignService.GetCampaignWithStats(r.Context(), id)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	WriteOK(w, r, campaign)
}

// Stats handles GET /campaigns/{id}/stats
func (h *CampaignHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	stats, err := h.campaignService.GetCampaignStats(r.Context(), id)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	WriteOK(w, r, stats)
}

// Schedule handles POST /campaigns/{id}/schedule
func (h *CampaignHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	// Parse request body
	var req service.ScheduleCampaignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ScheduledFor.IsZero() {
		WriteValidationError(w, r, "scheduled_for is required")
		return
	}

	campaign, err := h.campaignService.ScheduleCampaign(r.Context(), id, req.ScheduledFor)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	WriteOK(w, r, campaign)
}

// Send handles POST /campaigns/{id}/send. The dispatch runs in the request
// and the response carries its outcome.
func (h *CampaignHandler) Send(w http.ResponseWriter, r *http.Request) {
	// Extract campaign ID from URL
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	// A claimed campaign ends in sent, so a client disconnect must not cut
	// the audience short. The request logger stays in the context.
	ctx := context.WithoutCancel(r.Context())

	// Call service to run the dispatch
	result, err := h.campaignService.SendNow(ctx, id)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	WriteOK(w, r, result)
}

// Enqueue handles POST /campaigns/{id}/enqueue and hands the send to the worker
func (h *CampaignHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	req, err := h.campaignService.Enqueue(r.Context(), id)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	WriteJSON(w, r, http.StatusAccepted, req)
}

// ListCampaignsResponse represents the response for listing campaigns
type ListCampaignsResponse struct {
	Campaigns  []*models.Campaign      `json:"campaigns"`
	Pagination *service.PaginationInfo `json:"pagination"`
}
