package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/placefinder/ai"
)

// MockClassifier is a test double for ai.Classifier.
// It allows custom behavior injection via function fields and is safe
// for the concurrent calls a classification batch makes.
type MockClassifier struct {
	// ClassifyFunc is called by Classify if set.
	// If nil, the category is guessed from the place's types.
	ClassifyFunc func(ctx context.Context, place ai.PlaceData) (*ai.Classification, error)

	mu        sync.Mutex
	callCount int
	places    []ai.PlaceData
}

// NewMockClassifier creates a mock classifier with default behavior.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{}
}

// WithClassifyFunc sets custom classify behavior.
func (m *MockClassifier) WithClassifyFunc(fn func(ctx context.Context, place ai.PlaceData) (*ai.Classification, error)) *MockClassifier {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClassifyFunc = fn
	return m
}

// Classify records the call and answers.
// Default behavior: the first type tag that maps to a known category wins
// with confidence 0.9; otherwise Other with confidence 0.3.
func (m *MockClassifier) Classify(ctx context.Context, place ai.PlaceData) (*ai.Classification, error) {
	m.mu.Lock()
	m.callCount++
	m.places = append(m.places, place)
	fn := m.ClassifyFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, place)
	}

	for _, t := range place.Types {
		category := ai.NormalizeCategory(strings.ReplaceAll(t, "_", " "))
		if category != ai.CategoryOther {
			return &ai.Classification{Success: true, Category: category, Confidence: 0.9}, nil
		}
	}
	return &ai.Classification{Success: true, Category: ai.CategoryOther, Confidence: 0.3}, nil
}

// CallCount returns the number of times Classify was called.
func (m *MockClassifier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Places returns the inputs of every call, in call order.
func (m *MockClassifier) Places() []ai.PlaceData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.PlaceData(nil), m.places...)
}

// Reset clears the call history and custom functions.
func (m *MockClassifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.places = nil
	m.ClassifyFunc = nil
}
