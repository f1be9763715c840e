// Ingestion HTTP handlers.
//
// This file exposes the endpoints used by the phone-side notification
// listener and by operators:
//   - POST /webhook        (store a device notification, Idempotency-Key aware)
//   - POST /test           (echo a payload back)
//   - GET  /notifications  (newest first, optional device filter)
//   - GET  /devices        (known devices)
//   - GET  /stats          (ingestion counters)
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/qris-donation-backend/internal/domain"
	"github.com/tbourn/qris-donation-backend/internal/http/middleware"
	"github.com/tbourn/qris-donation-backend/internal/repo"
	"github.com/tbourn/qris-donation-backend/internal/services"
	"github.com/tbourn/qris-donation-backend/internal/utils"
)

//
// DTOs
//

// WebhookResponse acknowledges a stored notification.
type WebhookResponse struct {
	Success   bool   `json:"success" example:"true"`
	Message   string `json:"message" example:"Notification received successfully"`
	ID        int64  `json:"id" example:"42"`
	Timestamp string `json:"timestamp" example:"2025-01-01T12:00:00Z"`
}

// EchoResponse is returned by the test endpoint.
type EchoResponse struct {
	Success   bool            `json:"success" example:"true"`
	Message   string          `json:"message" example:"Test notification received successfully"`
	Timestamp string          `json:"timestamp" example:"2025-01-01T12:00:00Z"`
	Data      json.RawMessage `json:"data" swaggertype:"object"`
}

//
// Handlers
//

// Webhook godoc
// @ID          postWebhook
// @Summary     Ingest a device notification
// @Description Stores one notification captured on a device and bumps the device's counters.
// @Description A repeated Idempotency-Key from the same device returns the original id without storing again.
// @Tags        Ingestion
// @Accept      json
// @Produce     json
//
// @Param       X-Api-Key        header  string  false "API key"
// @Param       Idempotency-Key  header  string  false "Retry key, unique per device"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    services.Notification  true  "Notification"
//
// @Success     200  {object}  handlers.WebhookResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /webhook [post]
func (h *Handlers) Webhook(c *gin.Context) {
	ctx := c.Request.Context()

	var req services.Notification
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		deviceID = middleware.DeviceID(c)
	}
	idemKey, _ := middleware.GetIdempotencyKey(c)
	useIdem := h.Idem != nil && idemKey != "" && deviceID != ""

	if useIdem {
		if id, found := h.Idem.Lookup(ctx, deviceID, idemKey, time.Now().UTC()); found {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusOK, WebhookResponse{
				Success:   true,
				Message:   "Notification already received",
				ID:        id,
				Timestamp: timestamp(),
			})
			return
		}
	}

	n, err := h.notifSvc.Ingest(ctx, req)
	if err != nil {
		if errors.Is(err, services.ErrMissingFields) {
			fail(c, http.StatusBadRequest, ErrCodeMissingFields, "Missing required fields: deviceId, packageName")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeIngestFailed, "could not store notification")
		return
	}

	if useIdem {
		if err := h.Idem.Remember(ctx, deviceID, idemKey, n.ID, http.StatusOK); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
		}
	}

	ev := middleware.LoggerFrom(c).Info().
		Int64("id", n.ID).
		Str("device_id", n.DeviceID).
		Str("package", n.PackageName)
	if n.AmountDetected != nil {
		ev = ev.Str("amount", *n.AmountDetected)
	}
	ev.Msg("notification received")

	ok(c, http.StatusOK, WebhookResponse{
		Success:   true,
		Message:   "Notification received successfully",
		ID:        n.ID,
		Timestamp: timestamp(),
	})
}

// TestEcho godoc
// @ID          postTest
// @Summary     Echo a test payload
// @Description Returns the posted JSON unchanged. Used to check device connectivity and API keys.
// @Tags        Ingestion
// @Accept      json
// @Produce     json
//
// @Param       X-Api-Key  header  string  false "API key"
// @Param       body       body    object  false "Any JSON"
//
// @Success     200  {object}  handlers.EchoResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /test [post]
func (h *Handlers) TestEcho(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read body")
		return
	}
	body := json.RawMessage(bytes.TrimSpace(raw))
	if len(body) == 0 {
		body = json.RawMessage("{}")
	}
	if !json.Valid(body) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	middleware.LoggerFrom(c).Debug().Int("bytes", len(body)).Msg("test notification received")

	ok(c, http.StatusOK, EchoResponse{
		Success:   true,
		Message:   "Test notification received successfully",
		Timestamp: timestamp(),
		Data:      body,
	})
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     List stored notifications
// @Description Returns notifications newest first, optionally for one device.
// @Tags        Ingestion
// @Produce     json
//
// @Param       X-Api-Key  header  string  false "API key"
// @Param       device_id  query   string  false "Device filter"
// @Param       limit      query   int     false "Page size"  minimum(1) maximum(500) default(100)
// @Param       offset     query   int     false "Rows to skip"  minimum(0) default(0)
//
// @Success     200  {object}  handlers.ListResponse[domain.Notification]
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	limit := utils.AtoiDefault(c.Query("limit"), 100)
	offset := utils.AtoiDefault(c.Query("offset"), 0)

	items, err := h.notifSvc.List(c.Request.Context(), c.Query("device_id"), limit, offset)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list notifications")
		return
	}
	list[domain.Notification](c, items)
}

// ListDevices godoc
// @ID          listDevices
// @Summary     List devices
// @Description Returns every device that has posted to the webhook, most recently seen first.
// @Tags        Ingestion
// @Produce     json
//
// @Param       X-Api-Key  header  string  false "API key"
//
// @Success     200  {object}  handlers.ListResponse[domain.Device]
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /devices [get]
func (h *Handlers) ListDevices(c *gin.Context) {
	items, err := h.notifSvc.Devices(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list devices")
		return
	}
	list[domain.Device](c, items)
}

// Stats godoc
// @ID          getStats
// @Summary     Ingestion statistics
// @Description Totals, notifications received today (UTC) and the ten busiest apps.
// @Tags        Ingestion
// @Produce     json
//
// @Param       X-Api-Key  header  string  false "API key"
//
// @Success     200  {object}  handlers.DataResponse[repo.Stats]
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /stats [get]
func (h *Handlers) Stats(c *gin.Context) {
	st, err := h.notifSvc.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not compute stats")
		return
	}
	data[repo.Stats](c, http.StatusOK, st)
}
