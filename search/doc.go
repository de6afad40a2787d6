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

// Package search runs progressive place searches.
//
// A Coordinator answers a Request in phases delivered as Updates on a
// channel:
//   - local: approved catalog records inside the radius, scored for relevance
//   - external: provider candidates merged in, deduplicated against the catalog
//   - enriched: provisional candidates replaced by stored records, one batch at a time
//
// Local results are sent before the provider answers and are never
// retracted by later failures. Starting a new search supersedes the
// previous one; its remaining updates are dropped and its channel closed,
// while enrichment and classification it started run to completion.
//
// Relevance is a fixed additive score between 0 and 100 over the name, type
// tags, primary type, category and description of a place.
package search
