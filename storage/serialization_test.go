package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/poiesic/placefinder/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("ChIJ-place")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSerializationFailed))
}

func TestMarshalUnmarshalRecord(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	record := &core.CatalogRecord{
		Id:         9,
		ExternalId: "ChIJ-9",
		Name:       "Grainger Library",
		Location:   &core.Coordinates{Lat: 40.1125, Lng: -88.2269},
		Types:      []string{"library"},
		Source:     core.SourceLocal,
		Status:     core.RecordStatusApproved,
		InsertedAt: now,
		UpdatedAt:  now,
	}

	decoded, err := UnmarshalRecord(MarshalRecord(record))
	require.NoError(t, err)
	assert.Equal(t, record, decoded)
}

func TestUnmarshalRecord_Invalid(t *testing.T) {
	_, err := UnmarshalRecord([]byte{0x01, 0xff})
	assert.True(t, errors.Is(err, ErrSerializationFailed))
}

func TestMarshalUnmarshalJob(t *testing.T) {
	job := &core.ClassificationJob{
		RecordId:   9,
		Status:     core.ClassificationPending,
		Attempt:    1,
		EnqueuedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	decoded, err := UnmarshalJob(MarshalJob(job))
	require.NoError(t, err)
	assert.Equal(t, job, decoded)
}
