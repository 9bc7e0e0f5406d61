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


// Package ai provides abstractions for the AI services used by ragnote.
//
// This package defines interfaces for text embeddings and chat generation.
// Retrieval and ingestion depend on these abstractions rather than on a
// concrete vendor SDK.
//
// # Interfaces
//
//   - Embedder: Generates vector embeddings from text
//   - Generator: Produces a reply from an ordered message list
//   - AIProvider: Aggregates the embedding service for initialization
//
// # Model Router
//
// Router selects exactly one generation backend when it is built, from a
// GenerationConfig naming a preferred and a fallback backend. With no
// explicit choice, the preferred backend wins if its credentials are present.
// Every request then goes to that backend with a fixed token budget. Failures
// and empty replies wrap core.ErrGeneration; no other backend is tried.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible embeddings and generation (Ollama, vLLM, OpenAI)
//   - ai/mistral: Mistral generation
//   - ai/gemini: Google Gemini generation
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Public constructors (openai.NewProvider, openai.NewEmbedder) return
// interface types. Test constructors (mock.NewMockEmbedder,
// mock.NewMockGenerator) return concrete types so tests can inject behavior
// and inspect calls.
//
// # Usage Example
//
//	router, err := ai.NewRouter(ai.DefaultGenerationConfig(), map[string]ai.GeneratorFactory{
//	    ai.ProviderMistral: mistral.NewGenerator,
//	    ai.ProviderOpenAI:  openai.NewGenerator,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	gen, err := router.Generate(ctx, []ai.Message{ai.UserMessage("Hello")})
package ai
