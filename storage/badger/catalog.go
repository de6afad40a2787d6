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

package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/placefinder/core"
	"github.com/poiesic/placefinder/storage"
)

// CatalogRepository implements storage.CatalogRepository for BadgerDB.
type CatalogRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(backend *Backend) (*CatalogRepository, error) {
	idSeq, err := backend.GetSequence(recordIDSeq)
	if err != nil {
		return nil, err
	}

	return &CatalogRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *CatalogRepository) Close() error {
	return r.idSeq.Release()
}

// AddRecords stores locally authored records.
func (r *CatalogRepository) AddRecords(ctx context.Context, records ...*core.CatalogRecord) ([]*core.CatalogRecord, error) {
	for _, record := range records {
		if err := core.ValidateRecord(record); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			if record.ExternalId != "" {
				existing, err := readExternalID(tx, record.ExternalId)
				if err != nil {
					return err
				}
				if existing != 0 {
					return fmt.Errorf("%w: external id %s", storage.ErrDuplicateKey, record.ExternalId)
				}
			}
			if err := r.insert(tx, record); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// CreateFromExternal inserts record unless its external id is already taken.
func (r *CatalogRepository) CreateFromExternal(ctx context.Context, record *core.CatalogRecord) (*core.CatalogRecord, bool, error) {
	if record == nil || record.ExternalId == "" {
		return nil, false, storage.ErrExternalIDRequired
	}
	if err := core.ValidateRecord(record); err != nil {
		return nil, false, err
	}

	var existing *core.CatalogRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		id, err := readExternalID(tx, record.ExternalId)
		if err != nil {
			return err
		}
		if id != 0 {
			existing, err = readRecord(tx, makeRecordKey(id))
			if err != nil {
				return err
			}
			if existing != nil {
				return nil
			}
		}

		if err := r.insert(tx, record); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if errors.Is(err, badger.ErrConflict) {
		// Another writer committed the same external id first.
		existing, err = r.FindByExternalID(ctx, record.ExternalId)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	return record, true, nil
}

// GetRecord retrieves a single record by ID.
func (r *CatalogRepository) GetRecord(ctx context.Context, id core.ID) (*core.CatalogRecord, error) {
	var result *core.CatalogRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readRecord(tx, makeRecordKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetRecords retrieves multiple records by their IDs.
func (r *CatalogRepository) GetRecords(ctx context.Context, ids ...core.ID) ([]*core.CatalogRecord, error) {
	var result []*core.CatalogRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			record, err := readRecord(tx, makeRecordKey(id))
			if err != nil {
				return err
			}
			if record != nil {
				result = append(result, record)
			}
		}
		return nil
	}, false)
	return result, err
}

// FindByExternalID looks a record up through the external id index.
func (r *CatalogRepository) FindByExternalID(ctx context.Context, externalID string) (*core.CatalogRecord, error) {
	var result *core.CatalogRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		id, err := readExternalID(tx, externalID)
		if err != nil {
			return err
		}
		if id == 0 {
			return storage.ErrNotFound
		}
		result, err = readRecord(tx, makeRecordKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// FindByExternalIDs resolves many provider ids in a single read transaction.
func (r *CatalogRepository) FindByExternalIDs(ctx context.Context, externalIDs []string) (map[string]*core.CatalogRecord, error) {
	result := make(map[string]*core.CatalogRecord, len(externalIDs))
	if len(externalIDs) == 0 {
		return result, nil
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, externalID := range externalIDs {
			if externalID == "" {
				continue
			}
			if _, seen := result[externalID]; seen {
				continue
			}
			id, err := readExternalID(tx, externalID)
			if err != nil {
				return err
			}
			if id == 0 {
				continue
			}
			record, err := readRecord(tx, makeRecordKey(id))
			if err != nil {
				return err
			}
			if record != nil {
				result[externalID] = record
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FindRecords scans the catalog and returns records matching query in ID order.
func (r *CatalogRepository) FindRecords(ctx context.Context, query storage.RecordQuery) ([]*core.CatalogRecord, error) {
	if query.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit", storage.ErrInvalidQuery)
	}

	var results []*core.CatalogRecord
	errLimit := errors.New("limit reached")
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(recordPrefix), func(val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			record, err := storage.UnmarshalRecord(val)
			if err != nil {
				return err
			}
			if !matches(record, &query) {
				return nil
			}
			results = append(results, record)
			if query.Limit > 0 && len(results) >= query.Limit {
				return errLimit
			}
			return nil
		})
	}, false)
	if err != nil && !errors.Is(err, errLimit) {
		return nil, err
	}
	return results, nil
}

// UpdateStatus sets the moderation status of a record.
func (r *CatalogRepository) UpdateStatus(ctx context.Context, id core.ID, status core.RecordStatus) error {
	if err := core.ValidateRecordStatus(status); err != nil {
		return err
	}
	return r.mutate(id, func(record *core.CatalogRecord) error {
		record.Status = status
		return nil
	})
}

// UpdateClassification writes the outcome of a classification step.
func (r *CatalogRepository) UpdateClassification(ctx context.Context, id core.ID, update storage.ClassificationUpdate) error {
	return r.mutate(id, func(record *core.CatalogRecord) error {
		if record.Classification != update.Status {
			if err := core.ValidateRecordTransition(record.Classification, update.Status); err != nil {
				return err
			}
		}
		record.Classification = update.Status
		if update.Category != nil {
			record.ClassifiedCategory = *update.Category
		}
		if update.Confidence != nil {
			record.ClassificationConfidence = *update.Confidence
		}
		return nil
	})
}

// AssignCategory sets the category and fills an empty description.
func (r *CatalogRepository) AssignCategory(ctx context.Context, id core.ID, category, description string) error {
	return r.mutate(id, func(record *core.CatalogRecord) error {
		record.Category = category
		if record.Description == "" && description != "" {
			record.Description = description
		}
		return nil
	})
}

// Helper methods

// insert assigns an ID and timestamps and writes the record with its index.
func (r *CatalogRepository) insert(tx *badger.Txn, record *core.CatalogRecord) error {
	id, err := nextID(r.idSeq)
	if err != nil {
		return err
	}
	record.Id = core.ID(id)
	record.InsertedAt = time.Now().UTC()
	record.UpdatedAt = record.InsertedAt

	if err := tx.Set(makeRecordKey(record.Id), storage.MarshalRecord(record)); err != nil {
		return err
	}
	if record.ExternalId != "" {
		if err := tx.Set(makeExternalIDKey(record.ExternalId), storage.MarshalID(record.Id)); err != nil {
			return err
		}
	}
	return nil
}

// mutate applies fn to a stored record inside one write transaction,
// retrying when a concurrent writer touched the same record.
func (r *CatalogRepository) mutate(id core.ID, fn func(record *core.CatalogRecord) error) error {
	var err error
	for range maxConflictRetries {
		err = r.mutateOnce(id, fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (r *CatalogRepository) mutateOnce(id core.ID, fn func(record *core.CatalogRecord) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRecordKey(id)
		record, err := readRecord(tx, key)
		if err != nil {
			return err
		}
		if record == nil {
			return storage.ErrNotFound
		}
		if err := fn(record); err != nil {
			return err
		}
		record.UpdatedAt = time.Now().UTC()
		if err := tx.Set(key, storage.MarshalRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

func matches(record *core.CatalogRecord, query *storage.RecordQuery) bool {
	if query.Bounds != nil {
		pos, ok := record.Position()
		if !ok || !query.Bounds.Contains(pos) {
			return false
		}
	}
	if len(query.Statuses) > 0 && !slices.Contains(query.Statuses, record.Status) {
		return false
	}
	if len(query.Sources) > 0 && !slices.Contains(query.Sources, record.Source) {
		return false
	}
	if len(query.Classification) > 0 && !slices.Contains(query.Classification, record.Classification) {
		return false
	}
	return true
}

// readRecord reads a record from the transaction. Returns nil, nil when absent.
func readRecord(tx *badger.Txn, key []byte) (*core.CatalogRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var record *core.CatalogRecord
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalRecord(val)
		return err
	})
	return record, err
}

// readExternalID resolves the external id index. Returns 0 when absent.
func readExternalID(tx *badger.Txn, externalID string) (core.ID, error) {
	item, err := tx.Get(makeExternalIDKey(externalID))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return 0, nil
		}
		return 0, err
	}

	var id core.ID
	err = item.Value(func(val []byte) error {
		var err error
		id, err = storage.UnmarshalID(val)
		return err
	})
	return id, err
}
