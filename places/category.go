package places

import "strings"

// categoryTypes maps catalog category keys onto provider place types.
var categoryTypes = map[string]string{
	"bars":          "bar",
	"restaurants":   "restaurant",
	"cafes":         "cafe",
	"gym":           "gym",
	"library":       "library",
	"study_spot":    "library",
	"study_spots":   "library",
	"entertainment": "amusement_park",
	"shopping":      "shopping_mall",
}

// CategoryToType returns the provider type for a catalog category, or ""
// when the category has no provider equivalent. Matching ignores case and
// treats spaces like underscores, so "Study Spots" and "study_spots" agree.
func CategoryToType(category string) string {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(category)), " ", "_")
	return categoryTypes[key]
}
