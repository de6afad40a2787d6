package search

import "github.com/poiesic/placefinder/ingestion"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps of a search. One
// monitor serves every search of a Coordinator, so hooks for different
// searches may run concurrently.
type SearchMonitor interface {
	Start(searchID string, req Request)
	AfterLocalSearch(results []Result)
	AfterExternalSearch(candidates int, err error)
	AfterResolve(resolutions []ingestion.Resolution)
	AfterEnrichBatch(batch ingestion.Batch)
	Superseded(generation uint64)
	Finish(results []Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ Request)             {}
func (n *noopMonitor) AfterLocalSearch(_ []Result)           {}
func (n *noopMonitor) AfterExternalSearch(_ int, _ error)    {}
func (n *noopMonitor) AfterResolve(_ []ingestion.Resolution) {}
func (n *noopMonitor) AfterEnrichBatch(_ ingestion.Batch)    {}
func (n *noopMonitor) Superseded(_ uint64)                   {}
func (n *noopMonitor) Finish(_ []Result)                     {}
