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

// Domain validation errors
var (
	// ErrInvalidRecord indicates a CatalogRecord failed validation.
	ErrInvalidRecord = errors.New("invalid catalog record")

	// ErrInvalidCandidate indicates an ExternalCandidate failed validation.
	ErrInvalidCandidate = errors.New("invalid external candidate")

	// ErrEmptyName indicates the Name field is empty.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrEmptyExternalID indicates a candidate has no provider id.
	ErrEmptyExternalID = errors.New("external id cannot be empty")

	// ErrInvalidCoordinates indicates a latitude or longitude is out of range.
	ErrInvalidCoordinates = errors.New("coordinates out of range")

	// ErrInvalidRecordStatus indicates an unknown RecordStatus value.
	ErrInvalidRecordStatus = errors.New("invalid record status")

	// ErrInvalidTransition indicates a classification status moving backwards.
	ErrInvalidTransition = errors.New("invalid classification status transition")

	// ErrUnsupportedEncoding indicates stored bytes were written by an unknown codec version.
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
)
