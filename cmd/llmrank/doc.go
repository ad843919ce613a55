// Package main hosts the llmrank service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes the ranked domain listing, domain detail,
//     category, search, health, and metrics endpoints behind bearer-token auth, with
//     per-client rate limiting and a short-TTL response cache on the hot read paths.
//   - Store: internal/store/postgres persists domains and insights via pgx; an in-memory
//     implementation with identical ranking semantics backs tests and zero-dependency runs.
//     Schema changes ship as embedded goose migrations applied by `llmrank migrate`.
//   - Agent: internal/agent paces itself against agent.target_per_hour, pulling the stalest
//     domain, fetching its homepage (Colly probe with optional headless Chromedp promotion),
//     extracting text, and asking the LLM producer chain (OpenAI, then Anthropic, then the
//     heuristic fallback) for an insight. Quality-gated insights fold into the domain's
//     cumulative score; raw HTML snapshots go to the blob store and a compact notification
//     is published to Pub/Sub when a project is configured.
//   - Maintenance: internal/maintenance prunes per-domain insight history past the retention
//     window on a cron schedule.
//   - Configuration & plumbing: Viper populates config from env/files (LLMRANK_* prefix,
//     plus bare DATABASE_URL, OPENAI_API_KEY, and ANTHROPIC_API_KEY aliases); zap provides
//     structured logging; Prometheus metrics are exported via /metrics.
//
// Operational notes:
//   - Concurrency model: the agent feeds a bounded in-memory queue into a fixed worker
//     pool; headless fetches hold their own semaphore inside the Chromedp fetcher.
//     Shutdown is coordinated via context cancellation propagated from serve through the
//     app to the workers.
//   - The process reacts to SIGINT/SIGTERM for graceful drain: the HTTP server shuts down
//     within server.shutdown_timeout_seconds, the agent finishes in-flight work, and the
//     cron, progress hub, and stores close in order.
//
// Quick checklist:
//   - Run locally: go run ./cmd/llmrank serve (in-memory store, heuristic insights only).
//   - Against Postgres: set DATABASE_URL, run `llmrank migrate`, optionally
//     `llmrank seed domains.json`, then `llmrank serve`.
//   - Real insights: set OPENAI_API_KEY and/or ANTHROPIC_API_KEY.
package main
