// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package storage provides the storage abstraction layer for ragnote.
//
// This package defines repository interfaces that decouple storage implementation
// from business logic. Three backends implement them:
//
//   - storage/badger: embedded BadgerDB. Implements every repository, the
//     step log, and a brute-force vector index. This is the default.
//   - storage/sqlite: gorm over a CGO-free SQLite driver. Implements the
//     relational repositories and the step log.
//   - storage/qdrant: a Qdrant collection reached over its REST API.
//     Implements VectorIndex only.
//
// # Architecture
//
//   - ChunkRepository: ingested chunks, with idempotent insert by ingest key
//   - ProfileRepository: one profile per user id, last write wins
//   - ConversationRepository: conversation bindings and append-only turns
//   - StepLog: workflow instances and memoized step results
//   - VectorIndex: nearest-neighbor search keyed by chunk id
//
// The relational row of a chunk and its vector entry live in different
// components. Nothing here keeps them consistent; callers that delete a chunk
// must remove both.
//
// # Errors
//
// Repositories return ErrNotFound, ErrDuplicateKey and friends from this
// package. Domain-level categories (core.ErrStorage, core.ErrIndex) are added
// by the callers that know which workflow step failed.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
