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


// Package search retrieves knowledge-base chunks relevant to a question.
//
// The Retriever embeds the question, queries the vector index, drops weak
// matches and resolves the rest to chunks in rank order. When nothing
// survives and the question asks about the owner, a keyword search over the
// chunk store is used instead.
//
// Every stage degrades rather than fails: an unavailable embedder, index or
// store yields fewer chunks, never an error.
package search
