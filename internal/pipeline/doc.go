// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

/*
Package pipeline converts and uploads a chapter's pages concurrently.

Run takes an ordered list of Sources and returns one PageResult per source
in the same order, however the workers interleave. Each page is read,
hashed, converted to WebP by internal/imaging and handed to a Sink.

Failure handling:

  - Uploads are retried with exponential backoff (RetryDelay doubled per
    attempt, capped at MaxDelay). Waiting honours context cancellation.
  - Decode failures and errors wrapped with Permanent are not retried.
  - The first page that fails for good cancels the remaining work; the
    returned *PageError names the page.

With a Journal attached, pages already uploaded with identical content are
skipped and their recorded result reused, so a rerun after a crash only
uploads what is missing.
*/
package pipeline
