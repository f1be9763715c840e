// QRIS HTTP handlers.
//
// This file exposes the donation client API under the versioned base path:
//   - GET    /qris/settings   (current static payload and its decoding)
//   - PUT    /qris/settings   (replace the static payload)
//   - POST   /qris/generate   (dynamic payload for an amount, opens a session)
//   - GET    /qris/session    (active session)
//   - DELETE /qris/session    (cancel the active session)
//   - GET    /qris/presets    (quick-pick amounts)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/qris-donation-backend/internal/domain"
	"github.com/tbourn/qris-donation-backend/internal/qris"
	"github.com/tbourn/qris-donation-backend/internal/services"
)

//
// DTOs
//

// UpdateSettingsRequest carries a static QRIS payload.
type UpdateSettingsRequest struct {
	// Payload is the merchant's static QRIS string, checksum included.
	Payload string `json:"payload" binding:"required" example:"00020101021126...5802ID5909Toko Test6013Jakarta Pusat6304ABCD"`
}

//
// Handlers
//

// GetSettings godoc
// @ID          getQRISSettings
// @Summary     Current base payload
// @Description Returns the configured static payload with its decoded records and checksum verdict.
// @Tags        QRIS
// @Produce     json
//
// @Param       X-Api-Key  header  string  false "API key"
//
// @Success     200  {object}  handlers.DataResponse[services.Settings]
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Not configured"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /qris/settings [get]
func (h *Handlers) GetSettings(c *gin.Context) {
	st, err := h.qrisSvc.Settings(c.Request.Context())
	if err != nil {
		h.qrisFail(c, err)
		return
	}
	data(c, http.StatusOK, st)
}

// UpdateSettings godoc
// @ID          updateQRISSettings
// @Summary     Replace the base payload
// @Description Stores a static payload. It must carry a checksum record (6304) and decode with no leftover text.
// @Tags        QRIS
// @Accept      json
// @Produce     json
//
// @Param       X-Api-Key  header  string  false "API key"
// @Param       body       body    handlers.UpdateSettingsRequest  true  "Static payload"
//
// @Success     200  {object}  handlers.DataResponse[services.Settings]
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /qris/settings [put]
func (h *Handlers) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Payload) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "payload required")
		return
	}
	st, err := h.qrisSvc.SetBasePayload(c.Request.Context(), req.Payload)
	if err != nil {
		h.qrisFail(c, err)
		return
	}
	data(c, http.StatusOK, st)
}

// Generate godoc
// @ID          generateQRIS
// @Summary     Generate a dynamic payload
// @Description Builds the payload for the requested amount and opens a session that supersedes any previous one.
// @Tags        QRIS
// @Accept      json
// @Produce     json
//
// @Param       body  body  services.GenerateInput  true  "Amount and optional donor details"
//
// @Success     201  {object}  handlers.DataResponse[services.Generated]
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid amount or GIF"
// @Failure     409  {object}  handlers.ErrorResponse  "Base payload not configured"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /qris/generate [post]
func (h *Handlers) Generate(c *gin.Context) {
	var req services.GenerateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	out, err := h.qrisSvc.Generate(c.Request.Context(), req)
	if err != nil {
		h.qrisFail(c, err)
		return
	}
	data(c, http.StatusCreated, *out)
}

// GetSession godoc
// @ID          getQRISSession
// @Summary     Active session
// @Tags        QRIS
// @Produce     json
//
// @Success     200  {object}  handlers.DataResponse[domain.Session]
// @Failure     404  {object}  handlers.ErrorResponse  "No active session"
// @Router      /qris/session [get]
func (h *Handlers) GetSession(c *gin.Context) {
	sess, err := h.qrisSvc.ActiveSession(c.Request.Context())
	if err != nil {
		h.qrisFail(c, err)
		return
	}
	data[domain.Session](c, http.StatusOK, *sess)
}

// ClearSession godoc
// @ID          clearQRISSession
// @Summary     Cancel the active session
// @Tags        QRIS
//
// @Success     204  {string}  string  "No Content"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /qris/session [delete]
func (h *Handlers) ClearSession(c *gin.Context) {
	if err := h.qrisSvc.ClearSession(c.Request.Context()); err != nil {
		h.qrisFail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Presets godoc
// @ID          getQRISPresets
// @Summary     Preset amounts
// @Tags        QRIS
// @Produce     json
//
// @Success     200  {object}  handlers.DataResponse[services.Presets]
// @Router      /qris/presets [get]
func (h *Handlers) Presets(c *gin.Context) {
	data(c, http.StatusOK, h.qrisSvc.Presets())
}

// qrisFail maps QRIS flow errors to responses.
func (h *Handlers) qrisFail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, qris.ErrAmountBelowMin):
		fail(c, http.StatusBadRequest, ErrCodeAmountBelowMin, "amount must be at least "+qris.FormatRupiah(h.qrisSvc.Presets().Min))
	case errors.Is(err, qris.ErrAmountNotPositive), errors.Is(err, qris.ErrAmountTooLarge):
		fail(c, http.StatusBadRequest, ErrCodeInvalidAmount, err.Error())
	case errors.Is(err, services.ErrInvalidGifURL):
		fail(c, http.StatusBadRequest, ErrCodeInvalidGifURL, err.Error())
	case errors.Is(err, services.ErrInvalidBasePayload):
		fail(c, http.StatusBadRequest, ErrCodeInvalidPayload, "payload must contain a 6304 checksum record and decode completely")
	case errors.Is(err, services.ErrNoBasePayload):
		status := http.StatusNotFound
		if c.Request.Method == http.MethodPost {
			status = http.StatusConflict
		}
		fail(c, status, ErrCodePayloadNotSet, "QRIS base payload not configured")
	case errors.Is(err, services.ErrNoActiveSession):
		fail(c, http.StatusNotFound, ErrCodeNoActiveSession, "no active session")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeGenerateFailed, "QRIS operation failed")
	}
}
