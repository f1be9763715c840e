// Package services defines the business logic for notification ingestion,
// the public donation feed and the QRIS donation flow. This file centralizes
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// Translation into HTTP status codes is performed at the handler layer.
package services

import "errors"

// Ingestion errors.
var (
	// ErrMissingFields is returned when a webhook delivery lacks deviceId or
	// packageName.
	ErrMissingFields = errors.New("deviceId and packageName are required")
)

// Donation feed errors.
var (
	// ErrInvalidDonationID is returned for a missing or non-positive record id.
	ErrInvalidDonationID = errors.New("donation id must be positive")

	// ErrDonationNotFound indicates that no feed record has the given id.
	ErrDonationNotFound = errors.New("donation not found")

	// ErrInvalidGifURL is returned when a GIF reference is not an absolute
	// http(s) URL.
	ErrInvalidGifURL = errors.New("gifUrl must be an absolute http(s) URL")
)

// QRIS flow errors.
var (
	// ErrInvalidBasePayload is returned when a static payload does not carry
	// a checksum anchor or does not decode cleanly.
	ErrInvalidBasePayload = errors.New("invalid base payload")

	// ErrNoBasePayload is returned when a payload is requested before the
	// static payload has been configured.
	ErrNoBasePayload = errors.New("base payload not configured")

	// ErrNoActiveSession indicates that there is no unexpired session.
	ErrNoActiveSession = errors.New("no active session")
)
