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

// Package ai provides the place classification abstraction.
//
// A Classifier looks at a place's name, address, description and provider
// type tags and answers with a catalog category and a confidence. The
// classification queue assigns the category only when the confidence
// clears Config.ConfidenceThreshold.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible chat APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Public constructors (openai.NewProvider, openai.NewClassifier) return
// interface types. Mock constructors return concrete types so tests can
// inject behavior and read call counts.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithClassifierModel("gpt-4o-mini"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	result, err := provider.Classifier().Classify(ctx, ai.PlaceData{Name: "Murphy's Pub"})
//	category := ai.NormalizeCategory(result.Category)
package ai
