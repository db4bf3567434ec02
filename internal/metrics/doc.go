// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

/*
Package metrics exposes Prometheus instrumentation for the server and the
upload pipeline.

Metrics are registered on the default registry through promauto and served
at /metrics by the HTTP router.

Database:
  - duckdb_query_duration_seconds{op}

API:
  - api_requests_total{method,endpoint,status_code}
  - api_request_duration_seconds{method,endpoint}
  - api_active_requests
  - api_rate_limit_hits_total{endpoint}

Pipeline and storage:
  - pipeline_pages_total{result}
  - pipeline_retries_total
  - pipeline_page_duration_seconds
  - pipeline_journal_hits_total
  - storage_operations_total{backend,op,result}
  - storage_operation_duration_seconds{backend,op}
  - circuit_breaker_state{name}
  - circuit_breaker_transitions_total{name,from,to}

Domain:
  - events_published_total{topic}, events_processed_total{topic,result}
  - notifications_created_total{kind}
  - subscription_events_total{type}
  - payments_reviewed_total{status}
  - moderation_actions_total{action}
  - authz_decisions_total{object,decision}
  - cache_hits_total{cache}, cache_misses_total{cache}
  - websocket_connections, websocket_messages_sent_total{type}
*/
package metrics
