package places

import "encoding/json"

// Wire types for the legacy Places web service JSON responses.

type searchResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Results      []placeResult `json:"results"`
}

type detailsResponse struct {
	Status       string       `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Result       *placeResult `json:"result,omitempty"`
}

type placeResult struct {
	PlaceID              string            `json:"place_id"`
	Name                 string            `json:"name"`
	FormattedAddress     string            `json:"formatted_address,omitempty"`
	Vicinity             string            `json:"vicinity,omitempty"`
	Geometry             *geometry         `json:"geometry,omitempty"`
	Types                []string          `json:"types,omitempty"`
	Rating               float64           `json:"rating,omitempty"`
	UserRatingsTotal     int               `json:"user_ratings_total,omitempty"`
	Photos               []photo           `json:"photos,omitempty"`
	EditorialSummary     *editorialSummary `json:"editorial_summary,omitempty"`
	FormattedPhoneNumber string            `json:"formatted_phone_number,omitempty"`
	Website              string            `json:"website,omitempty"`
	BusinessStatus       string            `json:"business_status,omitempty"`
}

type geometry struct {
	Location *latLng `json:"location,omitempty"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type photo struct {
	PhotoReference string `json:"photo_reference"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
}

type editorialSummary struct {
	Overview string `json:"overview"`
}

// statusEnvelope decodes only the status fields, shared by every endpoint.
type statusEnvelope struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func decodeStatus(body []byte) (statusEnvelope, error) {
	var env statusEnvelope
	err := json.Unmarshal(body, &env)
	return env, err
}
