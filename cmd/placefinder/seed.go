package main

import (
	"context"
	"fmt"
	"iter"
	"os"
	"strings"

	"github.com/poiesic/placefinder/core"
	"github.com/poiesic/placefinder/storage"
	"gopkg.in/yaml.v3"
)

// seedBatchSize is how many records one catalog write stores.
const seedBatchSize = 50

// seedFile is the YAML layout of locally authored places.
type seedFile struct {
	Context string      `yaml:"context"`
	Places  []seedPlace `yaml:"places"`
}

type seedPlace struct {
	Name        string   `yaml:"name"`
	Address     string   `yaml:"address"`
	Description string   `yaml:"description"`
	Category    string   `yaml:"category"`
	Types       []string `yaml:"types"`
	PrimaryType string   `yaml:"primary_type"`
	Lat         *float64 `yaml:"lat"`
	Lng         *float64 `yaml:"lng"`
	Rating      float64  `yaml:"rating"`
	ExternalID  string   `yaml:"external_id"`
	Status      string   `yaml:"status"`
	Context     string   `yaml:"context"`
}

// readSeedFile parses and validates a seed file.
func readSeedFile(path string) ([]*core.CatalogRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	records := make([]*core.CatalogRecord, 0, len(file.Places))
	for i, p := range file.Places {
		record, err := p.record(file.Context)
		if err != nil {
			return nil, fmt.Errorf("place %d (%q): %w", i+1, p.Name, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (p seedPlace) record(defaultContext string) (*core.CatalogRecord, error) {
	status := core.RecordStatusApproved
	if p.Status != "" {
		parsed, err := core.ParseRecordStatus(p.Status)
		if err != nil {
			return nil, err
		}
		status = parsed
	}
	if (p.Lat == nil) != (p.Lng == nil) {
		return nil, fmt.Errorf("%w: lat and lng must be given together", core.ErrInvalidCoordinates)
	}

	contextID := p.Context
	if contextID == "" {
		contextID = defaultContext
	}
	record := &core.CatalogRecord{
		ExternalId:  strings.TrimSpace(p.ExternalID),
		Name:        strings.TrimSpace(p.Name),
		Address:     p.Address,
		Description: p.Description,
		Category:    p.Category,
		Types:       p.Types,
		PrimaryType: p.PrimaryType,
		Rating:      p.Rating,
		ContextId:   contextID,
		Source:      core.SourceLocal,
		Status:      status,
	}
	if p.Lat != nil {
		record.Location = &core.Coordinates{Lat: *p.Lat, Lng: *p.Lng}
	}
	if err := core.ValidateRecord(record); err != nil {
		return nil, err
	}
	return record, nil
}

// recordsFromSlice returns an iterator over records.
func recordsFromSlice(records []*core.CatalogRecord) iter.Seq[*core.CatalogRecord] {
	return func(yield func(*core.CatalogRecord) bool) {
		for _, r := range records {
			if !yield(r) {
				return
			}
		}
	}
}

// addBatched reads records from source and stores them in batches.
func addBatched(ctx context.Context, catalog storage.CatalogRepository, source iter.Seq[*core.CatalogRecord], batchSize int) ([]*core.CatalogRecord, error) {
	var stored []*core.CatalogRecord
	batch := make([]*core.CatalogRecord, 0, batchSize)

	flush := func() error {
		added, err := catalog.AddRecords(ctx, batch...)
		if err != nil {
			return err
		}
		stored = append(stored, added...)
		batch = batch[:0]
		return nil
	}

	for record := range source {
		batch = append(batch, record)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return stored, err
			}
		}
	}

	// Store any remaining records
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return stored, err
		}
	}
	return stored, nil
}
