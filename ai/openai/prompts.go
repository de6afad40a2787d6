package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/placefinder/ai"
)

const classificationResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "success": {"type": "boolean"},
    "category": {"type": "string"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "description": {"type": "string"},
    "error": {"type": "string"}
  },
  "required": ["success", "category", "confidence"],
  "additionalProperties": false
}`

const classificationPromptTemplate = `You categorize places near a university campus for a student guide.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- category must be exactly one of: %s.
- confidence is a number from 0 (guessing) to 1 (certain).
- description is one short, factual sentence a student would find useful. Leave it empty if unsure.
- Libraries, quiet cafes with seating and campus study halls may be Study Spots; prefer the more specific category when both fit.
- If the place cannot be categorized at all, return "success": false with a short "error".
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input:
Name: Murphy's Pub
Address: 604 E Green St, Champaign, IL
Types: bar, restaurant, food
Output:
{"success":true,"category":"Bars","confidence":0.95,"description":"Campustown pub known for its beer garden."}`

// buildSystemPrompt creates the system prompt with the categories embedded.
func buildSystemPrompt() string {
	return fmt.Sprintf(classificationPromptTemplate,
		classificationResponseSchema,
		strings.Join(ai.Categories, ", "))
}

// buildPlacePrompt renders the place the model should categorize.
func buildPlacePrompt(place ai.PlaceData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", sanitizeField(place.Name))
	if place.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", sanitizeField(place.Address))
	}
	if len(place.Types) > 0 {
		types := make([]string, len(place.Types))
		for i, t := range place.Types {
			types[i] = strings.ReplaceAll(t, "_", " ")
		}
		fmt.Fprintf(&b, "Types: %s\n", strings.Join(types, ", "))
	}
	if place.PrimaryType != "" {
		fmt.Fprintf(&b, "Primary type: %s\n", strings.ReplaceAll(place.PrimaryType, "_", " "))
	}
	if place.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", sanitizeField(place.Description))
	}
	return strings.TrimSuffix(b.String(), "\n")
}
