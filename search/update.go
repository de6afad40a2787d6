package search

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/poiesic/placefinder/core"
	"github.com/poiesic/placefinder/geo"
)

// Phase identifies the stage of a search an Update comes from.
type Phase int

const (
	// PhaseLocal carries catalog results.
	PhaseLocal Phase = iota + 1
	// PhaseExternal carries catalog results merged with provider candidates.
	PhaseExternal
	// PhaseEnriched carries the visible set after one enrichment batch.
	PhaseEnriched
)

func (p Phase) String() string {
	switch p {
	case PhaseLocal:
		return "local"
	case PhaseExternal:
		return "external"
	case PhaseEnriched:
		return "enriched"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Request describes one search.
type Request struct {
	Query string
	// Center is the search origin. Without it there is no distance and no
	// provider search.
	Center *core.Coordinates
	// RadiusMeters bounds results around Center. Nil means any distance.
	RadiusMeters *float64
	// Category restricts results; "" and "all" match everything.
	Category string
	// ContextID is stored on records created by this search.
	ContextID string
}

func (r Request) validate() error {
	if r.Center != nil {
		if err := core.ValidateCoordinates(*r.Center); err != nil {
			return err
		}
	}
	if r.RadiusMeters != nil {
		m := *r.RadiusMeters
		if m < 0 || math.IsNaN(m) || math.IsInf(m, 0) {
			return fmt.Errorf("%w: %v", ErrInvalidRadius, m)
		}
	}
	return nil
}

// radiusMiles returns the radius in miles and whether the request has one.
func (r Request) radiusMiles() (float64, bool) {
	if r.RadiusMeters == nil {
		return 0, false
	}
	return geo.MetersToMiles(*r.RadiusMeters), true
}

// Result is one visible place. Exactly one of Record and Candidate is set:
// a Candidate is a provider place with no catalog record yet.
type Result struct {
	Record    *core.CatalogRecord
	Candidate *core.ExternalCandidate
	// Provisional marks places that are not approved catalog records.
	Provisional   bool
	Score         int
	DistanceMiles float64
	HasDistance   bool
}

// Name returns the display name of the place.
func (r Result) Name() string {
	if r.Record != nil {
		return r.Record.Name
	}
	if r.Candidate != nil {
		return r.Candidate.Name
	}
	return ""
}

// ExternalID returns the provider id of the place, if any.
func (r Result) ExternalID() string {
	if r.Record != nil {
		return r.Record.ExternalId
	}
	if r.Candidate != nil {
		return r.Candidate.ExternalId
	}
	return ""
}

// Searchable implements Scorable.
func (r Result) Searchable() core.Searchable {
	if r.Record != nil {
		return r.Record.Searchable()
	}
	if r.Candidate != nil {
		return r.Candidate.Searchable()
	}
	return core.Searchable{}
}

// Update is one snapshot of a search's visible results.
type Update struct {
	Generation uint64
	SearchID   string
	Phase      Phase
	// Results is the full visible set, best first.
	Results []Result
	// Err reports a failure of this phase. Only a PhaseLocal error means the
	// search produced nothing; later errors leave Results intact.
	Err error
	// Final marks the last update of the search.
	Final bool
}

// sortResults orders by descending score, then ascending distance. Results
// without a distance sort after those with one at equal score.
func sortResults(results []Result) {
	slices.SortStableFunc(results, func(a, b Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		switch {
		case a.HasDistance && b.HasDistance:
			return cmp.Compare(a.DistanceMiles, b.DistanceMiles)
		case a.HasDistance:
			return -1
		case b.HasDistance:
			return 1
		}
		return strings.Compare(strings.ToLower(a.Name()), strings.ToLower(b.Name()))
	})
}
