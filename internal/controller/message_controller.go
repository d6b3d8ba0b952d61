// internal/controller/message_controller.go
package controller

import (
    "encoding/json"
    "net/http"
    "strconv"

    appErrors "github.com/bulkwave/bulkwave-backend/internal/errors"
    "github.com/bulkwave/bulkwave-backend/internal/repository"
    "github.com/bulkwave/bulkwave-backend/internal/service"
)

type MessageController struct {
    Engine      *service.CampaignEngine
    MessageRepo repository.MessageRecordRepositoryInterface
}

// SendMessage performs a one-off send outside any campaign.
func (c *MessageController) SendMessage(w http.ResponseWriter, r *http.Request) {
    var body struct {
        UserID string `json:"user_id"`
        service.SingleSendRequest
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }
    if body.UserID == "" {
        http.Error(w, "user_id is required", http.StatusBadRequest)
        return
    }

    record, err := c.Engine.SendSingle(body.UserID, body.SingleSendRequest)
    if err != nil {
        if appErrors.IsValidation(err) {
            http.Error(w, err.Error(), http.StatusBadRequest)
            return
        }
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(record)
}

// ListMessages returns a user's send history, newest first.
func (c *MessageController) ListMessages(w http.ResponseWriter, r *http.Request) {
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
        pageSize = 50
    }
    if pageSize > 200 {
        pageSize = 200
    }

    records, total, err := c.MessageRepo.ListByUser(userID, (page-1)*pageSize, pageSize)
    if err != nil {
        http.Error(w, "failed to fetch messages: "+err.Error(), http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "data": records,
        "pagination": map[string]int{
            "page":        page,
            "page_size":   pageSize,
            "total_count": total,
            "total_pages": (total + pageSize - 1) / pageSize,
        },
    })
}
