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

package ai

import (
	"slices"
	"strings"
)

// Catalog categories a classification can assign.
const (
	CategoryBars          = "Bars"
	CategoryRestaurants   = "Restaurants"
	CategoryCafes         = "Cafes"
	CategoryHousing       = "Housing"
	CategoryStudySpots    = "Study Spots"
	CategoryEntertainment = "Entertainment"
	CategoryShopping      = "Shopping"
	CategoryOther         = "Other"
)

// Categories lists every category in the order prompts present them.
var Categories = []string{
	CategoryBars,
	CategoryRestaurants,
	CategoryCafes,
	CategoryHousing,
	CategoryStudySpots,
	CategoryEntertainment,
	CategoryShopping,
	CategoryOther,
}

// DefaultConfidence is assumed when a model omits its confidence.
const DefaultConfidence = 0.5

// categoryAliases maps lowercase model answers onto catalog categories.
var categoryAliases = map[string]string{
	"bar":           CategoryBars,
	"bars":          CategoryBars,
	"restaurant":    CategoryRestaurants,
	"restaurants":   CategoryRestaurants,
	"food":          CategoryRestaurants,
	"dining":        CategoryRestaurants,
	"cafe":          CategoryCafes,
	"cafes":         CategoryCafes,
	"coffee":        CategoryCafes,
	"coffee shop":   CategoryCafes,
	"library":       CategoryStudySpots,
	"study":         CategoryStudySpots,
	"study spot":    CategoryStudySpots,
	"study spots":   CategoryStudySpots,
	"entertainment": CategoryEntertainment,
	"shopping":      CategoryShopping,
	"store":         CategoryShopping,
	"retail":        CategoryShopping,
	"housing":       CategoryHousing,
	"gym":           CategoryOther,
	"fitness":       CategoryOther,
	"other":         CategoryOther,
}

// NormalizeCategory maps a free-form model answer onto one of Categories.
// Unknown answers become CategoryOther.
func NormalizeCategory(category string) string {
	key := strings.ToLower(strings.TrimSpace(category))
	key = strings.ReplaceAll(key, "_", " ")
	if mapped, ok := categoryAliases[key]; ok {
		return mapped
	}
	if i := slices.IndexFunc(Categories, func(c string) bool { return strings.EqualFold(c, key) }); i >= 0 {
		return Categories[i]
	}
	return CategoryOther
}

// ClampConfidence limits a confidence to [0, 1].
func ClampConfidence(confidence float64) float64 {
	return min(max(confidence, 0), 1)
}
