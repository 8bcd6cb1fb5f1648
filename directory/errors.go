// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Domain failures surfaced to API clients with machine-readable reasons.
var (
	// ErrNotFound signals a lookup by slug/department/city/id that matched nothing.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied signals a mutation attempted by someone who is
	// neither the listing owner nor a superuser.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAlreadyOwned signals a claim on a listing that already has an owner.
	ErrAlreadyOwned = errors.New("store already has an owner")
)

// CooldownActiveError rejects a claim attempted before the cooldown between
// successive claim requests on the same listing has elapsed.
type CooldownActiveError struct {
	RemainingSeconds int64
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("claim cooldown active, retry in %d seconds", e.RemainingSeconds)
}

// ValidationError carries a field-level message back to the submitter.
// No state mutation happens when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}

	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsUniqueViolation reports whether err comes from a uniqueness constraint
// (duplicate slug, second opening-hour row for the same weekday, ...).
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "constraint error")
}

// GeocodingError represents a classified failure from a geocoding provider.
type GeocodingError struct {
	Type    GeocodingErrorType
	Message string
	Err     error
}

// GeocodingErrorType distinguishes provider failure modes.
type GeocodingErrorType int

const (
	// GeocodingErrorUnknown is an unclassified failure.
	GeocodingErrorUnknown GeocodingErrorType = iota
	// GeocodingErrorRateLimit means the provider throttled us.
	GeocodingErrorRateLimit
	// GeocodingErrorQuotaExceeded means the provider quota ran out.
	GeocodingErrorQuotaExceeded
	// GeocodingErrorTimeout means the request deadline expired.
	GeocodingErrorTimeout
	// GeocodingErrorNoMatch means the address resolved to nothing.
	GeocodingErrorNoMatch
	// GeocodingErrorInvalidRequest means the provider rejected the request.
	GeocodingErrorInvalidRequest
	// GeocodingErrorNetwork is a transport-level failure.
	GeocodingErrorNetwork
)

func (e *GeocodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *GeocodingError) Unwrap() error {
	return e.Err
}

// IsGeocodingNoMatch reports whether err means the address had no result,
// as opposed to a transport or quota problem.
func IsGeocodingNoMatch(err error) bool {
	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type == GeocodingErrorNoMatch
	}

	return false
}

// IsGeocodingTimeout reports whether err is a deadline expiry.
func IsGeocodingTimeout(err error) bool {
	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type == GeocodingErrorTimeout
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// ClassifyGeocodingHTTPError maps a provider HTTP status to a typed error.
func ClassifyGeocodingHTTPError(statusCode int) *GeocodingError {
	switch statusCode {
	case http.StatusTooManyRequests:
		return &GeocodingError{
			Type:    GeocodingErrorRateLimit,
			Message: "rate limit reached",
		}
	case http.StatusForbidden:
		return &GeocodingError{
			Type:    GeocodingErrorQuotaExceeded,
			Message: "quota exceeded or access denied",
		}
	case http.StatusBadRequest:
		return &GeocodingError{
			Type:    GeocodingErrorInvalidRequest,
			Message: "invalid request",
		}
	case http.StatusNotFound:
		return &GeocodingError{
			Type:    GeocodingErrorNoMatch,
			Message: "address not found",
		}
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return &GeocodingError{
			Type:    GeocodingErrorNetwork,
			Message: fmt.Sprintf("service unavailable (status %d)", statusCode),
		}
	default:
		return &GeocodingError{
			Type:    GeocodingErrorUnknown,
			Message: fmt.Sprintf("HTTP error %d", statusCode),
		}
	}
}
