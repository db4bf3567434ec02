// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package api

import (
	"net/http"

	"github.com/tomtom215/mangashelf/internal/models"
	"github.com/tomtom215/mangashelf/internal/validation"
)

// ListPlans handles GET /api/v1/plans.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.subscriptions.Plans().List())
}

// SubscriptionStatus handles GET /api/v1/subscription.
func (h *Handler) SubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.subscriptions.Status(r.Context(), currentUser(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(st)
}

// RequestPayment handles POST /api/v1/subscription/payments.
func (h *Handler) RequestPayment(w http.ResponseWriter, r *http.Request) {
	var req validation.PaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	p, err := h.subscriptions.RequestPayment(r.Context(), currentUser(r), req.PlanID, req.Reference)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(p)
}

// ListMyPayments handles GET /api/v1/subscription/payments.
func (h *Handler) ListMyPayments(w http.ResponseWriter, r *http.Request) {
	limit, offset := h.pagination(r)
	list, err := h.subscriptions.ListPayments(r.Context(), "", currentUser(r).ID, limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(list)
}

// AdminListPayments handles GET /api/v1/admin/payments?status=pending.
func (h *Handler) AdminListPayments(w http.ResponseWriter, r *http.Request) {
	status := models.PaymentStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.PaymentPending, models.PaymentApproved, models.PaymentRejected:
	default:
		NewResponseWriter(w, r).BadRequest("unknown payment status")
		return
	}
	limit, offset := h.pagination(r)
	list, err := h.subscriptions.ListPayments(r.Context(), status, r.URL.Query().Get("user_id"), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(list)
}

// ReviewPayment handles POST /api/v1/admin/payments/{id}/review.
func (h *Handler) ReviewPayment(w http.ResponseWriter, r *http.Request) {
	var req validation.ReviewPaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	p, err := h.subscriptions.Review(r.Context(), urlParam(r, "id"), models.PaymentStatus(req.Status), currentUser(r), req.Note)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(p)
}
