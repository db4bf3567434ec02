// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

/*
Package moderation implements staff actions on comments and accounts.

Moderators and admins may hide, unhide, delete and restore any comment.
Authors may delete their own comments. Hiding requires a reason and
publishes comment.hidden so the author is notified. Moderators may ban
readers; changing roles and banning staff is reserved for admins.

Every action is checked against the Casbin policy, written to the audit
log and counted in moderation_actions_total.
*/
package moderation
