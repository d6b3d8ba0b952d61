// internal/controller/device_controller.go
package controller

import (
    "encoding/json"
    "net/http"

    "github.com/go-chi/chi/v5"

    "github.com/bulkwave/bulkwave-backend/internal/device"
)

type DeviceController struct {
    Supervisor *device.Supervisor
}

func (c *DeviceController) CreateDevice(w http.ResponseWriter, r *http.Request) {
    var body struct {
        UserID string `json:"user_id"`
        Name   string `json:"name"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }
    if body.UserID == "" {
        http.Error(w, "user_id is required", http.StatusBadRequest)
        return
    }

    d, err := c.Supervisor.CreateDevice(body.UserID, body.Name)
    if err != nil {
        http.Error(w, "failed to create device: "+err.Error(), http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(http.StatusCreated)
    json.NewEncoder(w).Encode(d)
}

func (c *DeviceController) ListDevices(w http.ResponseWriter, r *http.Request) {
    userID := r.URL.Query().Get("user_id")
    if userID == "" {
        http.Error(w, "user_id is required", http.StatusBadRequest)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "data": c.Supervisor.ListDevices(userID),
    })
}

// GetDeviceQR returns the device's current pairing image, or 404 when the
// device has none pending (already paired, or token expired).
func (c *DeviceController) GetDeviceQR(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "id")

    d, ok := c.Supervisor.GetDevice(id)
    if !ok {
        http.Error(w, "device not found", http.StatusNotFound)
        return
    }
    if d.QRCode == "" {
        http.Error(w, "no pairing token pending", http.StatusNotFound)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]string{
        "device_id": d.ID,
        "qr_code":   d.QRCode,
    })
}

func (c *DeviceController) DeleteDevice(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "id")

    if err := c.Supervisor.DeleteDevice(id); err != nil {
        http.Error(w, "failed to delete device: "+err.Error(), http.StatusInternalServerError)
        return
    }
    w.WriteHeader(http.StatusNoContent)
}
