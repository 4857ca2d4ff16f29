package handler

import (
	"net/http"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/service"
)

// PreviewHandler shows what a campaign dispatch would send
type PreviewHandler struct {
	campaignService *service.CampaignService
}

// NewPreviewHandler creates a new PreviewHandler instance
func NewPreviewHandler(campaignService *service.CampaignService) *PreviewHandler {
	return &PreviewHandler{
		campaignService: campaignService,
	}
}

// Preview handles GET /campaigns/{id}/preview. The response carries the
// message with tracked links and the number of recipients it would reach.
func (h *PreviewHandler) Preview(w http.ResponseWriter, r *http.Request) {
	// Extract campaign ID from URL
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	// Call service to render the message and count the audience
	preview, err := h.campaignService.PreviewCampaign(r.Context(), id)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	WriteOK(w, r, preview)
}
