package places

import (
	"net/url"
	"slices"
	"strconv"

	"github.com/poiesic/placefinder/core"
)

const photoMaxWidth = 800

// genericTypes are type tags every establishment carries; they say nothing
// about what a place is.
var genericTypes = []string{"point_of_interest", "establishment"}

// IsGenericType reports whether t is a catch-all provider type tag.
func IsGenericType(t string) bool {
	return slices.Contains(genericTypes, t)
}

// toCandidate converts a wire result into a candidate.
func (c *Client) toCandidate(r *placeResult, detailed bool) core.ExternalCandidate {
	candidate := core.ExternalCandidate{
		ExternalId:   r.PlaceID,
		Name:         r.Name,
		Address:      r.FormattedAddress,
		Types:        r.Types,
		PrimaryType:  primaryType(r.Types),
		Rating:       r.Rating,
		RatingsTotal: r.UserRatingsTotal,
		Detailed:     detailed,
	}
	if candidate.Address == "" {
		candidate.Address = r.Vicinity
	}
	if r.Geometry != nil && r.Geometry.Location != nil {
		candidate.Location = &core.Coordinates{
			Lat: r.Geometry.Location.Lat,
			Lng: r.Geometry.Location.Lng,
		}
	}
	if len(r.Photos) > 0 && r.Photos[0].PhotoReference != "" {
		candidate.PhotoReference = r.Photos[0].PhotoReference
		candidate.PhotoURL = c.PhotoURL(candidate.PhotoReference)
	}
	if detailed {
		if r.EditorialSummary != nil {
			candidate.Summary = r.EditorialSummary.Overview
		}
		candidate.Phone = r.FormattedPhoneNumber
		candidate.Website = r.Website
		candidate.BusinessStatus = r.BusinessStatus
	}
	return candidate
}

// PhotoURL builds the photo endpoint URL for a photo reference.
func (c *Client) PhotoURL(reference string) string {
	if reference == "" || c.apiKey == "" {
		return ""
	}
	q := url.Values{}
	q.Set("maxwidth", strconv.Itoa(photoMaxWidth))
	q.Set("photo_reference", reference)
	q.Set("key", c.apiKey)
	return c.baseURL + "/photo?" + q.Encode()
}

func primaryType(types []string) string {
	for _, t := range types {
		if !IsGenericType(t) {
			return t
		}
	}
	return ""
}
