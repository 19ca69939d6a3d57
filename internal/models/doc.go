// Package models defines domain entities and persistence interfaces for the proofs studio client.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs decoded from the studio backend
//   - [Session] : A customer shooting session and its [SessionStatus]
//   - [Photo] : A session photo with the client's selection flag
//   - [PortfolioItem] : A public gallery entry
//   - [UploadedPhoto] : The backend's answer to a single photo upload
//
// 2. Persistent Entities: Local upload history with full lifecycle management
//   - [UploadBatch] : One run of the upload orchestrator
//   - [UploadFile] : One file (task) of a batch, ordered by task index
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
