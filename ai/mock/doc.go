// Package mock provides test double implementations of AI service interfaces.
//
// # Usage in Tests
//
//	classifier := mock.NewMockClassifier().
//	    WithClassifyFunc(func(ctx context.Context, place ai.PlaceData) (*ai.Classification, error) {
//	        return &ai.Classification{Success: true, Category: "Cafes", Confidence: 0.95}, nil
//	    })
//
//	count := classifier.CallCount()
//
// # Default Behavior
//
// MockClassifier maps the first recognizable type tag onto a category with
// confidence 0.9 and falls back to Other with confidence 0.3.
package mock
