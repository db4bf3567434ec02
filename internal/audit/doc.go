// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

/*
Package audit records who did what to which record: moderation actions,
bans, payment reviews, catalog deletions and failed logins.

Events are handed to a Logger, which writes them to a Store from a
background goroutine so request handlers never wait on the audit table.
DuckDBStore keeps them in the application database next to the data they
describe; MemoryStore is used in development and tests.

	store := audit.NewDuckDBStore(db.Conn())
	if err := store.CreateTable(ctx); err != nil { ... }
	auditor := audit.NewLogger(store, audit.DefaultConfig())
	defer auditor.Close()

	auditor.Log(&audit.Event{
		Type:   audit.EventModerationHide,
		Actor:  audit.Actor{ID: mod.ID, Name: mod.Username, Role: string(mod.Role)},
		Target: &audit.Target{ID: comment.ID, Type: "comment"},
		Reason: "spoilers",
	})
*/
package audit
