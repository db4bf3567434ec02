// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

/*
Package authz provides role-based authorization using Casbin.

The model and policy are embedded. Subjects are role names (admin,
moderator, uploader, reader); the policy's grouping rules make admin inherit
every staff role and staff inherit reader. Objects name resource groups
(catalog, chapters, pages, comments, payments, users, trash, audit, stats)
and actions are verbs such as write, delete, moderate or review.

Decisions are cached per (role, object, action) through internal/cache and
counted in the authz_decisions_total metric.

Usage:

	enforcer, err := authz.NewEnforcer(&cfg.Security.Casbin)
	mw := authz.NewMiddleware(enforcer, auditLogger, deny)
	r.With(mw.Authorize(authz.ObjCatalog, authz.ActWrite)).Post("/manga", h.CreateManga)
*/
package authz
