package handler

import (
	"net/http"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/service"
)

// MessageHandler handles ad-hoc batch sends
type MessageHandler struct {
	campaignService *service.CampaignService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(campaignService *service.CampaignService) *MessageHandler {
	return &MessageHandler{campaignService: campaignService}
}

// SendBatch handles POST /messages/batch
func (h *MessageHandler) SendBatch(w http.ResponseWriter, r *http.Request) {
	// Parse request body
	var req service.AdHocRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// Call service; validation errors come back as 400
	outcome, err := h.campaignService.SendAdHoc(r.Context(), &req)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	WriteOK(w, r, outcome)
}
