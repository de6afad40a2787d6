package ai

import (
	"testing"

	"github.com/poiesic/placefinder/core"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeCategory(t *testing.T) {
	tests := map[string]string{
		"bar":           CategoryBars,
		"  Bars ":       CategoryBars,
		"coffee shop":   CategoryCafes,
		"Cafes":         CategoryCafes,
		"library":       CategoryStudySpots,
		"study_spots":   CategoryStudySpots,
		"Study Spots":   CategoryStudySpots,
		"dining":        CategoryRestaurants,
		"retail":        CategoryShopping,
		"HOUSING":       CategoryHousing,
		"entertainment": CategoryEntertainment,
		"gym":           CategoryOther,
		"spaceport":     CategoryOther,
		"":              CategoryOther,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeCategory(in), "input %q", in)
	}
}

func TestNormalizeCategory_AlwaysKnown(t *testing.T) {
	for _, c := range Categories {
		assert.Equal(t, c, NormalizeCategory(c))
	}
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-2))
	assert.Equal(t, 0.42, ClampConfidence(0.42))
	assert.Equal(t, 1.0, ClampConfidence(7))
}

func TestPlaceDataFromRecord(t *testing.T) {
	record := &core.CatalogRecord{
		Name:        "Grainger Library",
		Address:     "1301 W Springfield Ave",
		Description: "Engineering library.",
		Types:       []string{"library"},
		PrimaryType: "library",
	}

	data := PlaceDataFromRecord(record)
	assert.Equal(t, "Grainger Library", data.Name)
	assert.Equal(t, "1301 W Springfield Ave", data.Address)
	assert.Equal(t, []string{"library"}, data.Types)
	assert.Equal(t, "library", data.PrimaryType)
}
