// Package repositories implements SQLite persistence for upload history.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [UploadBatchRepository] : one row per orchestrator run, filterable by kind, destination and status
//   - [UploadFileRepository] : per-file rows of a batch in task order
//   - [HistoryRecorder] : records batches as they run, implementing tasks.Recorder
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
