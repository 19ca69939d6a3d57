// Package tasks runs batches of concurrent photo uploads with aggregate progress reporting.
//
// # Upload Engine
//
// [UploadEngine.Run] takes a list of local files and a [Destination] (a session or a
// portfolio category) and:
//
//  1. Sums the file sizes up front; an empty batch reports 100% immediately
//  2. Starts one upload per file through the [Uploader], all at once unless
//     [EngineOpts.MaxConcurrent] bounds the worker pool
//  3. Tracks absolute bytes sent per file and reports 100 * Σloaded / Σsize to the
//     [ProgressSink] after every event
//  4. Waits for every file to settle, then returns a [BatchOutcome] with results in
//     file order
//
// A file is accepted only when the backend answers 2xx with an envelope code of 0.
// Any failure makes the batch PartiallyFailed; [BatchOutcome.FirstError] keeps the
// first failure recorded and [BatchOutcome.Failures] lists all of them. Nothing is
// retried.
//
// # Progress Reporting
//
// Sinks are called under the engine's lock, so they never run concurrently and must
// not block. [ChannelSink] turns the sink into non-blocking [ProgressUpdate] sends for
// the TUI.
//
// # Errors
//
// Per-file errors are one of [services.TransportError], [services.HTTPStatusError],
// [services.ApplicationError], [services.ParseError] or [CancelledError]. [Classify]
// names the kind. A per-file timeout surfaces as a TransportError.
//
// # History
//
// [UploadEngine.RunRecorded] wraps Run with a [Recorder] so every batch and its files
// are persisted; the repositories package provides the SQLite recorder.
package tasks
