package handler

import (
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/middleware"
)

// Handlers groups everything the API router serves
type Handlers struct {
	Campaigns *CampaignHandler
	Preview   *PreviewHandler
	Messages  *MessageHandler
	Scheduler *SchedulerHandler
	Health    *HealthHandler
}

// NewRouter registers every API route
func NewRouter(h Handlers, log zerolog.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger(log), middleware.Recovery)

	router.HandleFunc("/health", h.Health.HandleHealth).Methods("GET")

	router.HandleFunc("/campaigns", h.Campaigns.Create).Methods("POST")
	router.HandleFunc("/campaigns", h.Campaigns.List).Methods("GET")
	router.HandleFunc("/campaigns/{id}", h.Campaigns.GetByID).Methods("GET")
	router.HandleFunc("/campaigns/{id}/stats", h.Campaigns.Stats).Methods("GET")
	router.HandleFunc("/campaigns/{id}/preview", h.Preview.Preview).Methods("GET")
	router.HandleFunc("/campaigns/{id}/schedule", h.Campaigns.Schedule).Methods("POST")
	router.HandleFunc("/campaigns/{id}/send", h.Campaigns.Send).Methods("POST")
	router.HandleFunc("/campaigns/{id}/enqueue", h.Campaigns.Enqueue).Methods("POST")

	router.HandleFunc("/scheduler/tick", h.Scheduler.Tick).Methods("POST")
	router.HandleFunc("/messages/batch", h.Messages.SendBatch).Methods("POST")

	return router
}
