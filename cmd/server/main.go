// cmd/server/main.go
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/bulkwave/bulkwave-backend/internal/config"
	"github.com/bulkwave/bulkwave-backend/internal/controller"
	"github.com/bulkwave/bulkwave-backend/internal/db"
	"github.com/bulkwave/bulkwave-backend/internal/device"
	"github.com/bulkwave/bulkwave-backend/internal/notify"
	"github.com/bulkwave/bulkwave-backend/internal/repository"
	"github.com/bulkwave/bulkwave-backend/internal/service"
	"github.com/bulkwave/bulkwave-backend/internal/transport"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		logrus.Warn("no .env file found, relying on OS environment variables")
	}

	cfg := config.Load()

	// Init DB
	db.Init()

	campaignRepo := &repository.CampaignRepository{DB: db.DB}
	messageRepo := &repository.MessageRecordRepository{DB: db.DB}

	// Real-time notification channel: optional, fire-and-forget.
	var notifier notify.Notifier = notify.Nop{}
	if cfg.AMQPURL != "" {
		n, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.NotifyQueue)
		if err != nil {
			logrus.Warnf("notifications disabled, broker unreachable: %v", err)
		} else {
			defer n.Close()
			notifier = n
		}
	}

	// The simulated transport stands in for the real protocol client.
	sim := transport.NewSimulator(cfg.SimulatorFailureRate)

	supervisor := device.NewSupervisor(sim, notifier, device.Options{
		QRTokenTTL:        cfg.QRTokenTTL,
		InactivityTimeout: cfg.DeviceInactivityTimeout,
		ReclaimGrace:      cfg.ReclaimGrace,
	})

	engine := service.NewCampaignEngine(campaignRepo, messageRepo, supervisor, notifier, service.Options{
		EmptyDeviceBackoff: cfg.EmptyDeviceBackoff,
		TickFailureBackoff: cfg.TickFailureBackoff,
		RecoveryDelay:      cfg.RecoveryDelay,
	})

	// Resume campaigns that were active when the process last stopped.
	engine.Recover()

	campaignController := &controller.CampaignController{
		Engine:       engine,
		CampaignRepo: campaignRepo,
		MessageRepo:  messageRepo,
	}
	deviceController := &controller.DeviceController{Supervisor: supervisor}
	messageController := &controller.MessageController{
		Engine:      engine,
		MessageRepo: messageRepo,
	}

	r := chi.NewRouter()

	// Device routes
	r.Post("/devices", deviceController.CreateDevice)
	r.Get("/devices", deviceController.ListDevices)
	r.Get("/devices/{id}/qr", deviceController.GetDeviceQR)
	r.Delete("/devices/{id}", deviceController.DeleteDevice)

	// Campaign routes
	r.Post("/campaigns/bulk-send", campaignController.BulkSend)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaign)
	r.Post("/campaigns/{id}/stop", campaignController.StopCampaign)
	r.Post("/campaigns/{id}/restart", campaignController.RestartCampaign)

	// Message routes
	r.Post("/messages/send", messageController.SendMessage)
	r.Get("/messages", messageController.ListMessages)

	logrus.Infof("server running on %s", cfg.HTTPAddr)
	logrus.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
