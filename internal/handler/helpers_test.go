package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/clock"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/config"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/handler"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/repository"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/scheduler"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/service"
	"github.com/Mats6102hamberg/ebrevsmotor/internal/transport"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// AssertEqual checks if two values are equal
func AssertEqual(t *testing.T, got, want interface{}) {
	t.Helper()
	if got != want {
		t.Errorf("Expected %v but got %v", want, got)
	}
}

// AssertStatusCode checks the HTTP status code
func AssertStatusCode(t *testing.T, resp *httptest.ResponseRecorder, want int) {
	t.Helper()
	if resp.Code != want {
		t.Errorf("Expected status %d but got %d: %s", want, resp.Code, resp.Body.String())
	}
}

// AssertJSONContentType checks the Content-Type header
func AssertJSONContentType(t *testing.T, resp *httptest.ResponseRecorder) {
	t.Helper()
	if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json but got %q", ct)
	}
}

// AssertErrorCode checks the code of a structured error response
func AssertErrorCode(t *testing.T, resp *httptest.ResponseRecorder, want string) {
	t.Helper()
	var body handler.ErrorResponse
	ParseJSONResponse(t, resp, &body)
	if body.Error.Code != want {
		t.Errorf("Expected error code %q but got %q (%s)", want, body.Error.Code, body.Error.Message)
	}
}

// NewJSONRequest creates an HTTP request with JSON body
func NewJSONRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, url, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewRawRequest creates a request with a literal body
func NewRawRequest(method, url, body string) *http.Request {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

// ParseJSONResponse decodes the recorder body into v
func ParseJSONResponse(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to parse response %q: %v", resp.Body.String(), err)
	}
}

type apiEnv struct {
	store  *repository.MemoryStore
	router *mux.Router
}

// newAPIEnv wires the full router around a MemoryStore and an always-succeeding transport
func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	return newAPIEnvWithPacing(t, service.PacingConfig{})
}

// newAPIEnvWithPacing is newAPIEnv with explicit batch pacing
func newAPIEnvWithPacing(t *testing.T, pacing service.PacingConfig) *apiEnv {
	t.Helper()
	log := zerolog.Nop()
	store := repository.NewMemoryStore()
	sim := transport.NewSimulated(1.0, 0, 0)
	dispatcher := service.NewDispatcher(&transport.Router{Email: sim, SMS: sim}, service.DispatcherConfig{}, log)
	campaigns := service.NewCampaignService(store, store, service.NewRecipientResolver(store), dispatcher, nil,
		clock.Fixed(testNow), pacing, log)
	poller := scheduler.NewPoller(store, campaigns, clock.Fixed(testNow), config.SchedulerConfig{PollInterval: time.Minute}, log)

	router := handler.NewRouter(handler.Handlers{
		Campaigns: handler.NewCampaignHandler(campaigns),
		Preview:   handler.NewPreviewHandler(campaigns),
		Messages:  handler.NewMessageHandler(campaigns),
		Scheduler: handler.NewSchedulerHandler(poller),
		Health:    handler.NewHealthHandler(service.NewHealthService(store.Store(), nil, "test")),
	}, log)

	return &apiEnv{store: store, router: router}
}

func (e *apiEnv) do(req *http.Request) *httptest.ResponseRecorder {
	return serve(e.router, req)
}

func (e *apiEnv) addAudience(n int) {
	for i := 1; i <= n; i++ {
		id := e.store.AddSubscriber(repository.Subscriber{
			Email:       fmt.Sprintf("sub%d@example.com", i),
			PhoneNumber: fmt.Sprintf("+4670000%04d", i),
			Confirmed:   true,
		})
		e.store.Subscribe(id, 1, true)
	}
}

func (e *apiEnv) campaign(t *testing.T, status models.CampaignStatus, scheduledFor *time.Time) *models.Campaign {
	t.Helper()
	c := &models.Campaign{
		NewsletterID: 1,
		Channel:      models.ChannelEmail,
		Subject:      "Höstnytt",
		ContentHTML:  `<a href="https://example.com/host">Läs</a>`,
		Status:       status,
		ScheduledFor: scheduledFor,
	}
	if err := e.store.Create(context.Background(), c); err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	return c
}
