// Package ytpipeline implements a scheduled YouTube analytics pipeline:
// it ingests channel and video metrics into a relational warehouse and
// keeps a set of curated playlists in sync with the latest rankings.
//
// Overview
//
// A run executes a fixed, ordered sequence of steps:
//
//   - ensure_channel: register the channel dimension row
//   - ingest_channel_daily: fetch daily analytics from the last watermark
//   - fetch_videos: ingest video dimensions and current stats
//   - top_videos: ingest the ranked video window
//   - update_playlists: reconcile the curated playlists
//
// A failing step never halts the run; later steps still execute unless they
// depend on the failed one, in which case they are skipped. Every run
// produces a summary with per-step status, attempts and duration, persisted
// as a JSON artifact plus a human-readable log, and delivered to the
// configured notification channels.
//
// Idempotence
//
// All warehouse writes are upserts keyed on natural keys, so re-running any
// window is safe: a crash mid-run leaves the watermark at the last committed
// day and the next run resumes from there.
//
// Configuration
//
// Settings load from three sources, highest priority first:
//
//   1. YTP_* environment variables
//   2. ytpipeline.json (working directory or ~/.config/ytpipeline/)
//   3. Built-in defaults
//
// Required settings are the channel ID (YTP_CHANNEL_ID) and the warehouse
// DSN (YTP_DB_URL); everything else has a default. See the config package
// for the full key list.
//
// Error Handling
//
// All operations return errors supporting the standard patterns:
//
//	if errors.Is(err, ytpipeline.ErrRateLimited) {
//		// quota exhausted, back off
//	}
//
//	var apiErr *ytpipeline.APIError
//	if errors.As(err, &apiErr) {
//		log.Printf("%s failed with status %d", apiErr.Op, apiErr.StatusCode)
//	}
//
// Packages
//
// The pipeline is assembled from focused sub-packages:
//
//   - config: configuration loading and validation
//   - retry: exponential backoff with jitter
//   - window: civil-date ingestion window arithmetic
//   - youtube: retrying client over the Data and Analytics APIs
//   - warehouse: Postgres repository with an in-memory twin for tests
//   - etl: the ingestion steps
//   - playlist: minimal-diff playlist reconciliation
//   - pipeline: the step runner and run summary
//   - notify: best-effort digest delivery (email, Discord, LINE)
//
// The cli directory holds the command binary; run it with no arguments to
// execute a full pipeline run.
package ytpipeline
