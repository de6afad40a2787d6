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

// RecordStatus is the moderation state of a catalog record.
type RecordStatus int

const (
	// RecordStatusPending marks a record awaiting moderation.
	RecordStatusPending RecordStatus = iota + 1
	// RecordStatusApproved marks a record visible to every search.
	RecordStatusApproved
	// RecordStatusRejected marks a record hidden by moderation.
	RecordStatusRejected
)

func (s RecordStatus) String() string {
	switch s {
	case RecordStatusPending:
		return "pending"
	case RecordStatusApproved:
		return "approved"
	case RecordStatusRejected:
		return "rejected"
	}
	return fmt.Sprintf("RecordStatus(%d)", int(s))
}

// ParseRecordStatus converts a status name into a RecordStatus.
func ParseRecordStatus(s string) (RecordStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return RecordStatusPending, nil
	case "approved":
		return RecordStatusApproved, nil
	case "rejected":
		return RecordStatusRejected, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRecordStatus, s)
}

// Source identifies where a catalog record came from.
type Source int

const (
	// SourceLocal is a record authored inside the catalog.
	SourceLocal Source = iota + 1
	// SourceExternal is a record created from a provider candidate.
	SourceExternal
)

func (s Source) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceExternal:
		return "external"
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// ClassificationStatus is the lifecycle state of a classification job.
type ClassificationStatus int

const (
	ClassificationPending ClassificationStatus = iota + 1
	ClassificationProcessing
	ClassificationCompleted
	ClassificationFailed
)

func (s ClassificationStatus) String() string {
	switch s {
	case ClassificationPending:
		return "pending"
	case ClassificationProcessing:
		return "processing"
	case ClassificationCompleted:
		return "completed"
	case ClassificationFailed:
		return "failed"
	}
	return fmt.Sprintf("ClassificationStatus(%d)", int(s))
}

// Terminal reports whether no further transition is allowed.
func (s ClassificationStatus) Terminal() bool {
	return s == ClassificationCompleted || s == ClassificationFailed
}

// CanTransitionTo reports whether moving from s to next is a forward step.
// pending -> processing -> {completed, failed}; pending may also fail directly.
// A record that never entered classification (zero status) may become pending.
func (s ClassificationStatus) CanTransitionTo(next ClassificationStatus) bool {
	switch s {
	case 0:
		return next == ClassificationPending
	case ClassificationPending:
		return next == ClassificationProcessing || next == ClassificationFailed
	case ClassificationProcessing:
		return next == ClassificationCompleted || next == ClassificationFailed
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition when next is not reachable from s.
func ValidateTransition(s, next ClassificationStatus) error {
	if !s.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return nil
}

// ValidateRecordTransition is ValidateTransition for the classification
// status stored on a catalog record. A failed record may also start
// processing again: that step belongs to a new job attempt, and the failed
// attempt stays stored with its job history.
func ValidateRecordTransition(s, next ClassificationStatus) error {
	if s == ClassificationFailed && next == ClassificationProcessing {
		return nil
	}
	return ValidateTransition(s, next)
}
