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

// Package classify runs the background classification queue.
//
// Queue hands catalog records to an ai.Classifier in fixed-size batches with
// a pause between batches to respect the model's rate limits. Every record
// has one persisted job whose status only moves forward:
//
//	pending -> processing -> {completed, failed}
//
// A failed job is never retried automatically. Requeue starts a new attempt
// for it on request. Jobs that were processing when the process died are
// marked failed by Recover, and jobs still pending are queued again.
package classify
