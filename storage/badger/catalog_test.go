package badger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/placefinder/core"
	"github.com/poiesic/placefinder/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func externalRecord(externalID, name string) *core.CatalogRecord {
	return &core.CatalogRecord{
		ExternalId:     externalID,
		Name:           name,
		Location:       &core.Coordinates{Lat: 40.11, Lng: -88.23},
		Source:         core.SourceExternal,
		Status:         core.RecordStatusPending,
		Classification: core.ClassificationPending,
	}
}

func newTestCatalog(t *testing.T) (*CatalogRepository, *JobRepository) {
	t.Helper()
	catalog, jobs, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		jobs.Close()
		catalog.Close()
		backend.Close()
	})
	return catalog, jobs
}

func TestAddRecords(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	ctx := context.Background()

	records := []*core.CatalogRecord{
		{Name: "Grainger Library", Status: core.RecordStatusApproved, Source: core.SourceLocal},
		{Name: "Illini Union", Status: core.RecordStatusApproved, Source: core.SourceLocal},
	}

	added, err := catalog.AddRecords(ctx, records...)
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.NotZero(t, added[0].Id)
	assert.NotEqual(t, added[0].Id, added[1].Id)
	assert.False(t, added[0].InsertedAt.IsZero())

	got, err := catalog.GetRecord(ctx, added[1].Id)
	require.NoError(t, err)
	assert.Equal(t, "Illini Union", got.Name)
}

func TestAddRecords_Invalid(t *testing.T) {
	catalog, _ := newTestCatalog(t)

	_, err := catalog.AddRecords(context.Background(), &core.CatalogRecord{Status: core.RecordStatusApproved})
	assert.ErrorIs(t, err, core.ErrEmptyName)
}

func TestAddRecords_DuplicateExternalID(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	ctx := context.Background()

	_, _, err := catalog.CreateFromExternal(ctx, externalRecord("ChIJ-1", "Brew Lab"))
	require.NoError(t, err)

	dup := externalRecord("ChIJ-1", "Brew Lab Again")
	dup.Source = core.SourceLocal
	_, err = catalog.AddRecords(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestCreateFromExternal_InsertIfAbsent(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	ctx := context.Background()

	first, created, err := catalog.CreateFromExternal(ctx, externalRecord("ChIJ-1", "Brew Lab"))
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := catalog.CreateFromExternal(ctx, externalRecord("ChIJ-1", "Different Name"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Id, second.Id)
	assert.Equal(t, "Brew Lab", second.Name)
}

func TestCreateFromExternal_RequiresExternalID(t *testing.T) {
	catalog, _ := newTestCatalog(t)

	_, _, err := catalog.CreateFromExternal(context.Background(), externalRecord("", "Brew Lab"))
	assert.ErrorIs(t, err, storage.ErrExternalIDRequired)
}

func TestCreateFromExternal_Concurrent(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	ids := make([]core.ID, workers)
	createdCount := make([]bool, workers)
	errs := make([]error, workers)

	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, created, err := catalog.CreateFromExternal(ctx, externalRecord("ChIJ-race", "Race Cafe"))
			errs[i] = err
			if err == nil {
				ids[i] = record.Id
				createdCount[i] = created
			}
		}()
	}
	wg.Wait()

	creations := 0
	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
		if createdCount[i] {
			creations++
		}
	}
	assert.Equal(t, 1, creations)

	all, err := catalog.FindRecords(ctx, storage.RecordQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFindByExternalIDs(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	ctx := context.Background()

	for i := range 3 {
		_, _, err := catalog.CreateFromExternal(ctx, externalRecord(fmt.Sprintf("ChIJ-%d", i), fmt.Sprintf("Place %d", i)))
		require.NoError(t, err)
	}

	found, err := catalog.FindByExternalIDs(ctx, []string{"ChIJ-0", "ChIJ-2", "ChIJ-missing", "", "ChIJ-0"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Place 0", found["ChIJ-0"].Name)
	assert.Equal(t, "Place 2", found["ChIJ-2"].Name)

	empty, err := catalog.FindByExternalIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFindByExternalID_NotFound(t *testing.T) {
	catalog, _ := newTestCatalog(t)

	_, err := catalog.FindByExternalID(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFindRecords(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	ctx := context.Background()

	inside := &core.CatalogRecord{
		Name: "Inside", Status: core.RecordStatusApproved, Source: core.SourceLocal,
		Location: &core.Coordinates{Lat: 40.11, Lng: -88.23},
	}
	outside := &core.CatalogRecord{
		Name: "Outside", Status: core.RecordStatusApproved, Source: core.SourceLocal,
		Location: &core.Coordinates{Lat: 41.88, Lng: -87.63},
	}
	noLocation := &core.CatalogRecord{Name: "Nowhere", Status: core.RecordStatusApproved, Source: core.SourceLocal}
	pending := &core.CatalogRecord{
		Name: "Pending", Status: core.RecordStatusPending, Source: core.SourceLocal,
		Location: &core.Coordinates{Lat: 40.11, Lng: -88.23},
	}
	_, err := catalog.AddRecords(ctx, inside, outside, noLocation, pending)
	require.NoError(t, err)

	box := core.BoundingBox{MinLat: 40, MaxLat: 40.2, MinLng: -88.3, MaxLng: -88.1}

	tests := []struct {
		name  string
		query storage.RecordQuery
		want  []string
	}{
		{name: "everything", query: storage.RecordQuery{}, want: []string{"Inside", "Outside", "Nowhere", "Pending"}},
		{name: "bounds", query: storage.RecordQuery{Bounds: &box}, want: []string{"Inside", "Pending"}},
		{
			name:  "bounds and approved",
			query: storage.RecordQuery{Bounds: &box, Statuses: []core.RecordStatus{core.RecordStatusApproved}},
			want:  []string{"Inside"},
		},
		{name: "limit", query: storage.RecordQuery{Limit: 2}, want: []string{"Inside", "Outside"}},
		{name: "external only", query: storage.RecordQuery{Sources: []core.Source{core.SourceExternal}}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := catalog.FindRecords(ctx, tt.query)
			require.NoError(t, err)
			var names []string
			for _, r := range got {
				names = append(names, r.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	_, err = catalog.FindRecords(ctx, storage.RecordQuery{Limit: -1})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestUpdateStatus(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	ctx := context.Background()

	record, _, err := catalog.CreateFromExternal(ctx, externalRecord("ChIJ-1", "Brew Lab"))
	require.NoError(t, err)

	require.NoError(t, catalog.UpdateStatus(ctx, record.Id, core.RecordStatusApproved))
	got, err := catalog.GetRecord(ctx, record.Id)
	require.NoError(t, err)
	assert.Equal(t, core.RecordStatusApproved, got.Status)

	assert.ErrorIs(t, catalog.UpdateStatus(ctx, record.Id, core.RecordStatus(99)), core.ErrInvalidRecordStatus)
	assert.ErrorIs(t, catalog.UpdateStatus(ctx, 12345, core.RecordStatusApproved), storage.ErrNotFound)
}

func TestUpdateClassification_ForwardOnly(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	ctx := context.Background()

	record, _, err := catalog.CreateFromExternal(ctx, externalRecord("ChIJ-1", "Brew Lab"))
	require.NoError(t, err)

	require.NoError(t, catalog.UpdateClassification(ctx, record.Id, storage.ClassificationUpdate{
		Status: core.ClassificationProcessing,
	}))

	category := "cafe"
	confidence := 0.91
	require.NoError(t, catalog.UpdateClassification(ctx, record.Id, storage.ClassificationUpdate{
		Status:     core.ClassificationCompleted,
		Category:   &category,
		Confidence: &confidence,
	}))

	got, err := catalog.GetRecord(ctx, record.Id)
	require.NoError(t, err)
	assert.Equal(t, core.ClassificationCompleted, got.Classification)
	assert.Equal(t, "cafe", got.ClassifiedCategory)
	assert.Equal(t, 0.91, got.ClassificationConfidence)

	err = catalog.UpdateClassification(ctx, record.Id, storage.ClassificationUpdate{Status: core.ClassificationProcessing})
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestUpdateClassification_FailedRecordRestarts(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	ctx := context.Background()

	record, _, err := catalog.CreateFromExternal(ctx, externalRecord("ChIJ-1", "Brew Lab"))
	require.NoError(t, err)
	require.NoError(t, catalog.UpdateClassification(ctx, record.Id, storage.ClassificationUpdate{Status: core.ClassificationFailed}))

	err = catalog.UpdateClassification(ctx, record.Id, storage.ClassificationUpdate{Status: core.ClassificationPending})
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	require.NoError(t, catalog.UpdateClassification(ctx, record.Id, storage.ClassificationUpdate{Status: core.ClassificationProcessing}))
	got, err := catalog.GetRecord(ctx, record.Id)
	require.NoError(t, err)
	assert.Equal(t, core.ClassificationProcessing, got.Classification)
}

func TestAssignCategory(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	ctx := context.Background()

	blank, _, err := catalog.CreateFromExternal(ctx, externalRecord("ChIJ-1", "Brew Lab"))
	require.NoError(t, err)
	described := externalRecord("ChIJ-2", "Blue Door")
	described.Description = "Neighborhood tavern"
	described, _, err = catalog.CreateFromExternal(ctx, described)
	require.NoError(t, err)

	require.NoError(t, catalog.AssignCategory(ctx, blank.Id, "Cafes", "A cafe"))
	require.NoError(t, catalog.AssignCategory(ctx, described.Id, "Bars", "A bar"))

	got, err := catalog.GetRecords(ctx, blank.Id, described.Id, 9999)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Cafes", got[0].Category)
	assert.Equal(t, "A cafe", got[0].Description)
	assert.Equal(t, "Bars", got[1].Category)
	assert.Equal(t, "Neighborhood tavern", got[1].Description)
}
