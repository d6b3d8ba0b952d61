package controller_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/bulkwave/bulkwave-backend/internal/controller"
	appErrors "github.com/bulkwave/bulkwave-backend/internal/errors"
	"github.com/bulkwave/bulkwave-backend/internal/model"
	"github.com/bulkwave/bulkwave-backend/internal/service"
	"github.com/bulkwave/bulkwave-backend/internal/transport"
)

type memCampaignRepo struct {
	mu     sync.Mutex
	stored map[string]*model.Campaign
}

func (r *memCampaignRepo) Create(c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.stored[c.ID] = &cp
	return nil
}

func (r *memCampaignRepo) Update(c *model.Campaign) error { return r.Create(c) }

func (r *memCampaignRepo) UpdateStatus(id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.stored[id]; ok {
		c.Status = status
	}
	return nil
}

func (r *memCampaignRepo) GetByID(id string) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.stored[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (r *memCampaignRepo) ListByUser(userID string, offset, limit int) ([]*model.Campaign, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Campaign{}
	for _, c := range r.stored {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (r *memCampaignRepo) ListAll() ([]*model.Campaign, error) { return nil, nil }

type memMessageRepo struct {
	mu      sync.Mutex
	records []*model.MessageRecord
}

func (r *memMessageRepo) Create(m *model.MessageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.records = append(r.records, &cp)
	return nil
}

func (r *memMessageRepo) ListByUser(userID string, offset, limit int) ([]*model.MessageRecord, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.MessageRecord{}, r.records...), len(r.records), nil
}

func (r *memMessageRepo) ListByCampaign(campaignID string) ([]*model.MessageRecord, error) {
	return nil, nil
}

func (r *memMessageRepo) CampaignStats(campaignID string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := map[string]int{"sent": 0, "failed": 0}
	for _, m := range r.records {
		if m.CampaignID == campaignID {
			stats[m.Status]++
		}
	}
	return stats, nil
}

type stubSupervisor struct{ devices []*model.Device }

func (s *stubSupervisor) GetReadyDevices(userID string) []*model.Device { return s.devices }

func (s *stubSupervisor) SendMessage(ctx context.Context, deviceID, phone, content string, att *model.Attachment) (*transport.Receipt, error) {
	return &transport.Receipt{MessageID: "m1", Timestamp: time.Now()}, nil
}

func testRouter(sup *stubSupervisor) (*chi.Mux, *service.CampaignEngine) {
	cr := &memCampaignRepo{stored: map[string]*model.Campaign{}}
	mr := &memMessageRepo{}
	engine := service.NewCampaignEngine(cr, mr, sup, nil, service.Options{
		EmptyDeviceBackoff: 10 * time.Second, // keep ticks out of HTTP assertions
	})

	campaigns := &controller.CampaignController{Engine: engine, CampaignRepo: cr, MessageRepo: mr}
	messages := &controller.MessageController{Engine: engine, MessageRepo: mr}

	r := chi.NewRouter()
	r.Post("/campaigns/bulk-send", campaigns.BulkSend)
	r.Get("/campaigns", campaigns.ListCampaigns)
	r.Get("/campaigns/{id}", campaigns.GetCampaign)
	r.Post("/campaigns/{id}/stop", campaigns.StopCampaign)
	r.Post("/campaigns/{id}/restart", campaigns.RestartCampaign)
	r.Post("/messages/send", messages.SendMessage)
	r.Get("/messages", messages.ListMessages)
	return r, engine
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestBulkSendValidation(t *testing.T) {
	router, _ := testRouter(&stubSupervisor{})

	rec := doJSON(t, router, http.MethodPost, "/campaigns/bulk-send", `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/campaigns/bulk-send",
		`{"message_template":"hi","recipients":[{"phone":"1"}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, "missing user_id")

	rec = doJSON(t, router, http.MethodPost, "/campaigns/bulk-send",
		`{"user_id":"u1","recipients":[{"phone":"1"}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, "missing template")
	require.Contains(t, rec.Body.String(), "message_template")

	rec = doJSON(t, router, http.MethodPost, "/campaigns/bulk-send",
		`{"user_id":"u1","message_template":"hi","recipients":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, "empty recipients")
}

func TestBulkSendAccepted(t *testing.T) {
	router, _ := testRouter(&stubSupervisor{})

	rec := doJSON(t, router, http.MethodPost, "/campaigns/bulk-send",
		`{"user_id":"u1","name":"launch","message_template":"hi {name}",
		  "recipients":[{"phone":"1"},{"phone":"2"},{"name":"no phone"}],
		  "delay_policy":"fast","rotation_policy":"round-robin"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		CampaignID             string `json:"campaign_id"`
		CampaignName           string `json:"campaign_name"`
		AcceptedRecipientCount int    `json:"accepted_recipient_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.CampaignID)
	require.Equal(t, "launch", resp.CampaignName)
	require.Equal(t, 2, resp.AcceptedRecipientCount, "phoneless recipient dropped")
}

func TestGetCampaignWithStats(t *testing.T) {
	router, engine := testRouter(&stubSupervisor{})

	c, err := engine.StartCampaign("u1", service.StartCampaignRequest{
		Template:   "hi",
		Recipients: []model.Recipient{{Phone: "1"}},
	})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodGet, "/campaigns/"+c.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Campaign model.Campaign `json:"campaign"`
		Stats    map[string]int `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, c.ID, resp.Campaign.ID)
	require.Contains(t, resp.Stats, "sent")

	rec = doJSON(t, router, http.MethodGet, "/campaigns/no-such-id", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStopAndRestartEndpoints(t *testing.T) {
	router, engine := testRouter(&stubSupervisor{})

	rec := doJSON(t, router, http.MethodPost, "/campaigns/nope/stop", `{"user_id":"u1"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	c, err := engine.StartCampaign("u1", service.StartCampaignRequest{
		Template:   "hi",
		Recipients: []model.Recipient{{Phone: "1"}},
	})
	require.NoError(t, err)

	rec = doJSON(t, router, http.MethodPost, "/campaigns/"+c.ID+"/stop", `{"user_id":"wrong"}`)
	require.Equal(t, http.StatusNotFound, rec.Code, "ownership enforced")

	rec = doJSON(t, router, http.MethodPost, "/campaigns/"+c.ID+"/stop", `{"user_id":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/campaigns/"+c.ID+"/restart", `{"user_id":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/campaigns/"+c.ID+"/restart", `{"user_id":"u1"}`)
	require.Equal(t, http.StatusNotFound, rec.Code, "active campaign cannot be restarted")
}

func TestListCampaignsRequiresUser(t *testing.T) {
	router, _ := testRouter(&stubSupervisor{})

	rec := doJSON(t, router, http.MethodGet, "/campaigns", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/campaigns?user_id=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSendSingleMessageEndpoint(t *testing.T) {
	sup := &stubSupervisor{devices: []*model.Device{{ID: "dev-a", Ready: true}}}
	router, _ := testRouter(sup)

	rec := doJSON(t, router, http.MethodPost, "/messages/send",
		`{"user_id":"u1","phone":"555","content":"hi {name}","name":"Joy"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var record model.MessageRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	require.Equal(t, model.MessageStatusSent, record.Status)
	require.Equal(t, "hi Joy", record.Content)

	rec = doJSON(t, router, http.MethodPost, "/messages/send", `{"user_id":"u1","content":"hi"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, "phone required")
}
