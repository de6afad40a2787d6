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

package search

import "errors"

var (
	// ErrCatalogRequired is returned when a catalog repository is not provided.
	ErrCatalogRequired = errors.New("catalog repository required")

	// ErrIncompleteExternal is returned when an external source is configured
	// without the deduplicator and enricher that consume its candidates.
	ErrIncompleteExternal = errors.New("external source requires a resolver and an enricher")

	// ErrInvalidRadius is returned for a negative or non-finite radius.
	ErrInvalidRadius = errors.New("radius must be a finite, non-negative number of meters")

	// ErrInvalidMinScore is returned when the minimum score is outside 0-100.
	ErrInvalidMinScore = errors.New("minimum score must be between 0 and 100")
)
