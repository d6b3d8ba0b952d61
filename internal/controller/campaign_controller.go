// internal/controller/campaign_controller.go
package controller

import (
    "encoding/json"
    "net/http"
    "strconv"

    "github.com/go-chi/chi/v5"

    appErrors "github.com/bulkwave/bulkwave-backend/internal/errors"
    "github.com/bulkwave/bulkwave-backend/internal/repository"
    "github.com/bulkwave/bulkwave-backend/internal/service"
)

type CampaignController struct {
    Engine       *service.CampaignEngine
    CampaignRepo repository.CampaignRepositoryInterface
    MessageRepo  repository.MessageRecordRepositoryInterface
}

// BulkSend is the bulk-start request surface: validates, creates the
// campaign and schedules it.
func (c *CampaignController) BulkSend(w http.ResponseWriter, r *http.Request) {
    var body struct {
        UserID string `json:"user_id"`
        service.StartCampaignRequest
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }
    if body.UserID == "" {
        http.Error(w, "user_id is required", http.StatusBadRequest)
        return
    }

    campaign, err := c.Engine.StartCampaign(body.UserID, body.StartCampaignRequest)
    if err != nil {
        if appErrors.IsValidation(err) {
            http.Error(w, err.Error(), http.StatusBadRequest)
            return
        }
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "campaign_id":              campaign.ID,
        "campaign_name":            campaign.Name,
        "accepted_recipient_count": campaign.Total,
    })
}

func (c *CampaignController) StopCampaign(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "id")
    var body struct {
        UserID string `json:"user_id"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }

    if !c.Engine.StopCampaign(id, body.UserID) {
        http.Error(w, "campaign not found or not active", http.StatusNotFound)
        return
    }
    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]string{"status": "stopped"})
}

func (c *CampaignController) RestartCampaign(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "id")
    var body struct {
        UserID string `json:"user_id"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }

    if !c.Engine.RestartCampaign(id, body.UserID) {
        http.Error(w, "campaign not found or still active", http.StatusNotFound)
        return
    }
    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]string{"status": "active"})
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
    userID := r.URL.Query().Get("user_id")
    if userID == "" {
        http.Error(w, "user_id is required", http.StatusBadRequest)
        return
    }

    page, _ := strconv.Atoi(r.URL.Query().Get("page"))
    pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
    if page < 1 {
        page = 1
    }
    if pageSize < 1 {
        pageSize = 20
    }
    if pageSize > 100 {
        pageSize = 100
    }

    campaigns, total, err := c.CampaignRepo.ListByUser(userID, (page-1)*pageSize, pageSize)
    if err != nil {
        http.Error(w, "failed to fetch campaigns: "+err.Error(), http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "data": campaigns,
        "pagination": map[string]int{
            "page":        page,
            "page_size":   pageSize,
            "total_count": total,
            "total_pages": (total + pageSize - 1) / pageSize,
        },
    })
}

// GetCampaign returns one campaign with its send-history stats. Live
// campaigns are served from the engine's in-memory state.
func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "id")

    campaign, ok := c.Engine.GetCampaign(id)
    if !ok {
        var err error
        campaign, err = c.CampaignRepo.GetByID(id)
        if err != nil {
            if appErrors.IsCampaignNotFound(err) {
                http.Error(w, err.Error(), http.StatusNotFound)
                return
            }
            http.Error(w, "failed to fetch campaign: "+err.Error(), http.StatusInternalServerError)
            return
        }
    }

    stats, err := c.MessageRepo.CampaignStats(id)
    if err != nil {
        http.Error(w, "failed to fetch campaign stats: "+err.Error(), http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "campaign": campaign,
        "stats":    stats,
    })
}
