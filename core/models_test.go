package core

import (
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "cache key", content: "textsearch:location=40.1%2C-88.2&query=coffee"},
		{name: "empty string", content: ""},
		{name: "unicode", content: "Café Kopi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)
			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	if IDFromContent("nearbysearch:type=cafe") == IDFromContent("nearbysearch:type=bar") {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestBoundingBox_Contains(t *testing.T) {
	box := BoundingBox{MinLat: 40, MaxLat: 41, MinLng: -89, MaxLng: -88}

	tests := []struct {
		name string
		c    Coordinates
		want bool
	}{
		{name: "inside", c: Coordinates{Lat: 40.5, Lng: -88.5}, want: true},
		{name: "on edge", c: Coordinates{Lat: 40, Lng: -88}, want: true},
		{name: "north", c: Coordinates{Lat: 41.1, Lng: -88.5}, want: false},
		{name: "west", c: Coordinates{Lat: 40.5, Lng: -89.5}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := box.Contains(tt.c); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.c, got, tt.want)
			}
		})
	}
}

func TestCatalogRecord_InCategory(t *testing.T) {
	record := &CatalogRecord{Category: "Cafes"}
	classified := &CatalogRecord{ClassifiedCategory: "Bars"}

	tests := []struct {
		name     string
		record   *CatalogRecord
		category string
		want     bool
	}{
		{name: "empty matches", record: record, category: "", want: true},
		{name: "all matches", record: record, category: "All", want: true},
		{name: "case insensitive", record: record, category: "cafes", want: true},
		{name: "other category", record: record, category: "Bars", want: false},
		{name: "classified category", record: classified, category: "bars", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.InCategory(tt.category); got != tt.want {
				t.Errorf("InCategory(%q) = %v, want %v", tt.category, got, tt.want)
			}
		})
	}
}

func TestCatalogRecord_Position(t *testing.T) {
	var nilRecord *CatalogRecord
	if _, ok := nilRecord.Position(); ok {
		t.Error("nil record should have no position")
	}

	record := &CatalogRecord{Location: &Coordinates{Lat: 1, Lng: 2}}
	pos, ok := record.Position()
	if !ok || pos.Lat != 1 || pos.Lng != 2 {
		t.Errorf("Position() = %v, %v", pos, ok)
	}
}

func TestCatalogRecord_SearchableFallsBackToClassifiedCategory(t *testing.T) {
	record := &CatalogRecord{Name: "Blue Door", ClassifiedCategory: "Bars"}
	if got := record.Searchable().Category; got != "Bars" {
		t.Errorf("Searchable().Category = %q, want Bars", got)
	}
}

func TestExternalCandidate_Merge(t *testing.T) {
	basic := ExternalCandidate{
		ExternalId: "p1",
		Name:       "Brew Lab",
		Address:    "1 Main St",
		Types:      []string{"cafe"},
		Rating:     4.2,
	}

	merged := basic.Merge(&ExternalCandidate{
		Address:  "1 Main St, Urbana, IL",
		Detailed: true,
		Summary:  "Small-batch roaster",
		Phone:    "555-0100",
	})

	if merged.ExternalId != "p1" || merged.Name != "Brew Lab" {
		t.Errorf("identity fields changed: %+v", merged)
	}
	if merged.Address != "1 Main St, Urbana, IL" {
		t.Errorf("Address = %q", merged.Address)
	}
	if merged.Rating != 4.2 {
		t.Errorf("Rating = %v, want basic value kept", merged.Rating)
	}
	if !merged.Detailed || merged.Summary != "Small-batch roaster" || merged.Phone != "555-0100" {
		t.Errorf("detail fields not applied: %+v", merged)
	}

	if same := basic.Merge(nil); same.Address != basic.Address || same.Detailed {
		t.Errorf("Merge(nil) should return the candidate unchanged")
	}
}
