// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case. Generic codes mirror HTTP status semantics;
// domain codes name the QRIS and feed failures clients branch on.
//
// Example response:
//
//	{
//	  "success": false,
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "amount_below_min",
//	  "message": "amount must be at least Rp 100"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeMissingFields      = "missing_fields"
	ErrCodeIngestFailed       = "ingest_failed"
	ErrCodeListFailed         = "list_failed"
	ErrCodeInvalidAmount      = "invalid_amount"
	ErrCodeAmountBelowMin     = "amount_below_min"
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodePayloadNotSet      = "payload_not_configured"
	ErrCodeNoActiveSession    = "no_active_session"
	ErrCodeInvalidGifURL      = "invalid_gif_url"
	ErrCodeDonationNotFound   = "donation_not_found"
	ErrCodeGenerateFailed     = "generate_failed"
	ErrCodeUpgradeUnsupported = "upgrade_required"
)
