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
)

// ValidateRecord validates a CatalogRecord according to domain rules.
//
// Validation rules:
//   - Name must not be blank
//   - Status must be valid (pending, approved or rejected)
//   - Location, when present, must be in range
//
// NOT validated (populated by storage or classification):
//   - ID (0 is valid before a sequence assigns one)
//   - Classification fields
func ValidateRecord(record *CatalogRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if strings.TrimSpace(record.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyName)
	}

	if err := ValidateRecordStatus(record.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	if record.Location != nil {
		if err := ValidateCoordinates(*record.Location); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
	}

	return nil
}

// ValidateCandidate validates an ExternalCandidate before it is persisted.
func ValidateCandidate(candidate *ExternalCandidate) error {
	if candidate == nil {
		return fmt.Errorf("%w: candidate is nil", ErrInvalidCandidate)
	}

	if candidate.ExternalId == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCandidate, ErrEmptyExternalID)
	}

	if strings.TrimSpace(candidate.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCandidate, ErrEmptyName)
	}

	if candidate.Location != nil {
		if err := ValidateCoordinates(*candidate.Location); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCandidate, err)
		}
	}

	return nil
}

// ValidateRecordStatus validates that a RecordStatus has a valid value.
func ValidateRecordStatus(status RecordStatus) error {
	if status < RecordStatusPending || status > RecordStatusRejected {
		return fmt.Errorf("%w: value %d", ErrInvalidRecordStatus, status)
	}
	return nil
}

// ValidateCoordinates checks latitude and longitude ranges.
func ValidateCoordinates(c Coordinates) error {
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("%w: (%f, %f)", ErrInvalidCoordinates, c.Lat, c.Lng)
	}
	return nil
}
