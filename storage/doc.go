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

// Package storage provides the storage abstraction layer for placefinder.
//
// This package defines repository interfaces that decouple the catalog and
// the classification job store from their implementation. The search and
// ingestion layers depend only on these interfaces.
//
// # Architecture
//
//   - CatalogRepository: places known locally, indexed by provider id
//   - JobRepository: durable classification jobs, one per record
//
// # Usage
//
// Open a badger-backed catalog:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	catalog, err := badger.NewCatalogRepository(backend)
//
// Use in tests with in-memory storage:
//
//	catalog, jobs, backend, err := badger.NewMemoryRepositories()
//
// # Uniqueness
//
// At most one record exists per non-empty external id. CreateFromExternal is
// an insert-if-absent: callers racing on the same id all receive the one
// stored record and exactly one of them sees created == true.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
