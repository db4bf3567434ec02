// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/mangashelf/internal/auth"
	"github.com/tomtom215/mangashelf/internal/database"
	"github.com/tomtom215/mangashelf/internal/imaging"
	"github.com/tomtom215/mangashelf/internal/moderation"
	"github.com/tomtom215/mangashelf/internal/pipeline"
	"github.com/tomtom215/mangashelf/internal/storage"
	"github.com/tomtom215/mangashelf/internal/subscription"
)

var (
	// ErrBodyTooLarge is returned when an upload exceeds its size limit.
	ErrBodyTooLarge = errors.New("request body too large")

	// ErrNotWebP rejects staged pages that are not WebP.
	ErrNotWebP = errors.New("page must be a WebP image")
)

// writeServiceError maps domain sentinels to HTTP responses. Anything it
// does not recognise is logged and reported as a database error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)
	switch {
	case errors.Is(err, subscription.ErrPremiumChapter):
		rw.PaymentRequired(err.Error())
	case errors.Is(err, database.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		rw.NotFound("resource not found")
	case errors.Is(err, database.ErrConflict):
		rw.Conflict(err.Error())
	case errors.Is(err, subscription.ErrPendingPayment):
		rw.Conflict(err.Error())
	case errors.Is(err, subscription.ErrInvalidTransition),
		errors.Is(err, database.ErrInvalidState):
		rw.Conflict(err.Error())
	case errors.Is(err, moderation.ErrForbidden),
		errors.Is(err, moderation.ErrSelfAction),
		errors.Is(err, subscription.ErrBanned),
		errors.Is(err, auth.ErrBanned):
		rw.Forbidden(err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		rw.Unauthorized("invalid credentials")
	case errors.Is(err, subscription.ErrUnknownPlan),
		errors.Is(err, moderation.ErrReasonRequired),
		errors.Is(err, database.ErrInvalidPage),
		errors.Is(err, imaging.ErrDecode),
		errors.Is(err, ErrNotWebP),
		errors.Is(err, storage.ErrInvalidKey):
		rw.BadRequest(err.Error())
	case errors.Is(err, ErrBodyTooLarge):
		rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, err.Error())
	case errors.Is(err, storage.ErrStorageUnavailable):
		rw.ServiceUnavailable(err.Error())
	case errors.Is(err, pipeline.ErrRetriesExhausted):
		rw.ServiceUnavailable(err.Error())
	default:
		rw.DatabaseError(err)
	}
}
