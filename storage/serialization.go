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


package storage

import (
	"fmt"

	"github.com/poiesic/ragnote/core"
)

// serializer is the shape shared by the MUS serializers in core.
type serializer[T any] interface {
	Marshal(v T, bs []byte) (n int)
	Unmarshal(bs []byte) (v T, n int, err error)
	Size(v T) int
}

func marshal[T any](ser serializer[T], v T) []byte {
	buf := make([]byte, ser.Size(v))
	ser.Marshal(v, buf)
	return buf
}

func unmarshal[T any](ser serializer[T], data []byte) (*T, error) {
	v, _, err := ser.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &v, nil
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	return marshal[core.ID](core.IDMUS, id)
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return id, nil
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	return marshal[core.Chunk](core.ChunkMUS, *chunk)
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	return unmarshal[core.Chunk](core.ChunkMUS, data)
}

// MarshalUserProfile serializes a UserProfile to bytes.
func MarshalUserProfile(profile *core.UserProfile) []byte {
	return marshal[core.UserProfile](core.UserProfileMUS, *profile)
}

// UnmarshalUserProfile deserializes a UserProfile from bytes.
func UnmarshalUserProfile(data []byte) (*core.UserProfile, error) {
	return unmarshal[core.UserProfile](core.UserProfileMUS, data)
}

// MarshalConversation serializes a Conversation binding to bytes.
func MarshalConversation(conv *core.Conversation) []byte {
	return marshal[core.Conversation](core.ConversationMUS, *conv)
}

// UnmarshalConversation deserializes a Conversation binding from bytes.
func UnmarshalConversation(data []byte) (*core.Conversation, error) {
	return unmarshal[core.Conversation](core.ConversationMUS, data)
}

// MarshalTurn serializes a ConversationTurn to bytes.
func MarshalTurn(turn *core.ConversationTurn) []byte {
	return marshal[core.ConversationTurn](core.TurnMUS, *turn)
}

// UnmarshalTurn deserializes a ConversationTurn from bytes.
func UnmarshalTurn(data []byte) (*core.ConversationTurn, error) {
	return unmarshal[core.ConversationTurn](core.TurnMUS, data)
}

// MarshalWorkflowInstance serializes a WorkflowInstance to bytes.
func MarshalWorkflowInstance(instance *core.WorkflowInstance) []byte {
	return marshal[core.WorkflowInstance](core.WorkflowInstanceMUS, *instance)
}

// UnmarshalWorkflowInstance deserializes a WorkflowInstance from bytes.
func UnmarshalWorkflowInstance(data []byte) (*core.WorkflowInstance, error) {
	return unmarshal[core.WorkflowInstance](core.WorkflowInstanceMUS, data)
}

// MarshalStepRecord serializes a StepRecord to bytes.
func MarshalStepRecord(record *core.StepRecord) []byte {
	return marshal[core.StepRecord](core.StepRecordMUS, *record)
}

// UnmarshalStepRecord deserializes a StepRecord from bytes.
func UnmarshalStepRecord(data []byte) (*core.StepRecord, error) {
	return unmarshal[core.StepRecord](core.StepRecordMUS, data)
}

// MarshalVector serializes an embedding vector to bytes.
func MarshalVector(vector []float32) []byte {
	return marshal[[]float32](core.VectorMUS, vector)
}

// UnmarshalVector deserializes an embedding vector from bytes.
func UnmarshalVector(data []byte) ([]float32, error) {
	v, err := unmarshal[[]float32](core.VectorMUS, data)
	if err != nil {
		return nil, err
	}
	return *v, nil
}
