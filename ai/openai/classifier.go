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

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/poiesic/placefinder/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// maxParseAttempts is how many times a malformed response is re-requested.
const maxParseAttempts = 3

// ErrEmptyResponse is returned when the model produces no choices.
var ErrEmptyResponse = errors.New("classifier returned no choices")

// Classifier implements ai.Classifier using OpenAI-compatible chat APIs.
type Classifier struct {
	client llms.Model
	logger *slog.Logger
}

// verdict is the JSON shape the prompt asks for.
type verdict struct {
	Success     bool     `json:"success"`
	Category    string   `json:"category"`
	Confidence  *float64 `json:"confidence"`
	Description string   `json:"description"`
	Error       string   `json:"error"`
}

// newClassifier is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newClassifier(config *ai.Config) (*Classifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ClassifierHost),
		openai.WithToken(config.ClassifierToken),
		openai.WithModel(config.ClassifierModel),
	)
	if err != nil {
		return nil, err
	}

	return newClassifierWithModel(client), nil
}

func newClassifierWithModel(model llms.Model) *Classifier {
	return &Classifier{
		client: model,
		logger: slog.Default().With("component", "openai-classifier"),
	}
}

// NewClassifier creates a new classifier using the provided configuration.
//
// Returns ai.Classifier interface to enforce abstraction.
func NewClassifier(config *ai.Config) (ai.Classifier, error) {
	return newClassifier(config)
}

// Classify asks the model for the category of place.
// Malformed JSON is re-requested up to three times.
func (c *Classifier) Classify(ctx context.Context, place ai.PlaceData) (*ai.Classification, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(buildSystemPrompt()),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(buildPlacePrompt(place)),
			},
		},
	}

	var result verdict
	var lastErr error
	for attempt := 0; attempt < maxParseAttempts; attempt++ {
		response, err := c.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			c.logger.Error("failed to generate content", "attempt", attempt+1, "place", place.Name, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			return nil, ErrEmptyResponse
		}

		responseText := cleanResponse(response.Choices[0].Content)
		result = verdict{}
		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			c.logger.Warn("error parsing classifier response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		c.logger.Error("failed to parse classifier response after retries", "place", place.Name, "err", lastErr)
		return nil, lastErr
	}

	return toClassification(result), nil
}

// toClassification applies defaults to a parsed verdict.
func toClassification(v verdict) *ai.Classification {
	confidence := ai.DefaultConfidence
	if v.Confidence != nil {
		confidence = ai.ClampConfidence(*v.Confidence)
	}

	result := &ai.Classification{
		Success:     v.Success,
		Category:    strings.TrimSpace(v.Category),
		Confidence:  confidence,
		Description: strings.TrimSpace(v.Description),
		Error:       v.Error,
	}
	if result.Success && result.Category == "" {
		result.Success = false
		result.Error = "no category in response"
	}
	return result
}
