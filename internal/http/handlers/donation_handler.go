// Donation feed HTTP handlers.
//
//   - GET /public/donations  (newest payment notifications, no auth)
//   - PUT /public/donations  (attach donor metadata to a record)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/qris-donation-backend/internal/domain"
	"github.com/tbourn/qris-donation-backend/internal/services"
	"github.com/tbourn/qris-donation-backend/internal/utils"
)

// ListDonations godoc
// @ID          listDonations
// @Summary     Recent donations
// @Description Returns the newest notifications that carry a detected amount, with any donor metadata attached.
// @Tags        Donations
// @Produce     json
//
// @Param       limit  query  int  false "Max records"  minimum(1) maximum(100) default(10)
//
// @Success     200  {object}  domain.FeedResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /public/donations [get]
func (h *Handlers) ListDonations(c *gin.Context) {
	limit := utils.AtoiDefault(c.Query("limit"), services.DefaultFeedLimit)

	items, err := h.donationSvc.Feed(c.Request.Context(), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not load donations")
		return
	}
	if items == nil {
		items = []domain.Donation{}
	}
	ok(c, http.StatusOK, domain.FeedResponse{Success: true, Data: items, Count: len(items)})
}

// SaveDonationMetadata godoc
// @ID          saveDonationMetadata
// @Summary     Attach donor metadata
// @Description Stores donor name, message and GIF for a feed record. Text is stripped of markup; empty fields are left unchanged.
// @Tags        Donations
// @Accept      json
// @Produce     json
//
// @Param       body  body  domain.Enrichment  true  "Donor metadata"
//
// @Success     200  {object}  handlers.DataResponse[domain.Enrichment]
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Donation not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /public/donations [put]
func (h *Handlers) SaveDonationMetadata(c *gin.Context) {
	var req domain.Enrichment
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	saved, err := h.donationSvc.SaveMetadata(c.Request.Context(), req)
	switch {
	case err == nil:
		data(c, http.StatusOK, saved)
	case errors.Is(err, services.ErrInvalidDonationID):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidGifURL):
		fail(c, http.StatusBadRequest, ErrCodeInvalidGifURL, err.Error())
	case errors.Is(err, services.ErrDonationNotFound):
		fail(c, http.StatusNotFound, ErrCodeDonationNotFound, "donation not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not save metadata")
	}
}
