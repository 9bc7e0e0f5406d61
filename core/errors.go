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


package core

import "errors"

// Failure categories shared by every component. Callers wrap the underlying
// cause so both the category and the cause can be matched with errors.Is.
var (
	// ErrStorage indicates the relational store is unavailable or rejected a read or write.
	ErrStorage = errors.New("storage error")

	// ErrEmbedding indicates the embedding service returned no vector.
	ErrEmbedding = errors.New("embedding error")

	// ErrIndex indicates the vector index rejected an upsert or query.
	ErrIndex = errors.New("index error")

	// ErrGeneration indicates no backend produced usable output.
	ErrGeneration = errors.New("generation error")

	// ErrExtraction indicates content could not be fetched or parsed.
	ErrExtraction = errors.New("extraction error")

	// ErrConversationOwnership indicates a conversation id is bound to a different user.
	ErrConversationOwnership = errors.New("conversation belongs to another user")
)

// Domain validation errors
var (
	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidTurn indicates a ConversationTurn failed validation.
	ErrInvalidTurn = errors.New("invalid conversation turn")

	// ErrInvalidProfile indicates a UserProfile failed validation.
	ErrInvalidProfile = errors.New("invalid user profile")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")

	// ErrEmptyContent indicates a text or content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidRole indicates an unknown Role value.
	ErrInvalidRole = errors.New("invalid role")

	// ErrEmptyUserID indicates the user id is empty.
	ErrEmptyUserID = errors.New("user id cannot be empty")

	// ErrEmptyConversationID indicates the conversation id is empty.
	ErrEmptyConversationID = errors.New("conversation id cannot be empty")
)
