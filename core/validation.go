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

import (
	"fmt"
	"strings"
	"time"
)

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Text must not be empty or whitespace
//   - CreatedAt, when set, must not be in the future
//
// NOT validated:
//   - ID (assigned by the store)
//   - IngestKey (0 disables idempotent insert)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if strings.TrimSpace(chunk.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if !chunk.CreatedAt.IsZero() && !IsValidTimestamp(chunk.CreatedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrInvalidTimestamp)
	}

	return nil
}

// ValidateTurn validates a ConversationTurn according to domain rules.
//
// Validation rules:
//   - ConversationID and UserID must not be empty
//   - Role must be user or assistant
//   - Content must not be empty
//   - CreatedAt, when set, must not be in the future
func ValidateTurn(turn *ConversationTurn) error {
	if turn == nil {
		return fmt.Errorf("%w: turn is nil", ErrInvalidTurn)
	}

	if turn.ConversationID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, ErrEmptyConversationID)
	}

	if turn.UserID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, ErrEmptyUserID)
	}

	if !turn.Role.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidTurn, ErrInvalidRole, turn.Role)
	}

	if turn.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, ErrEmptyContent)
	}

	if !turn.CreatedAt.IsZero() && !IsValidTimestamp(turn.CreatedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, ErrInvalidTimestamp)
	}

	return nil
}

// ValidateProfile validates a UserProfile.
func ValidateProfile(profile *UserProfile) error {
	if profile == nil {
		return fmt.Errorf("%w: profile is nil", ErrInvalidProfile)
	}
	if profile.UserID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, ErrEmptyUserID)
	}
	if strings.TrimSpace(profile.Info) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, ErrEmptyContent)
	}
	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
