// Package ingestion turns provider candidates into catalog records.
//
// The Deduplicator matches candidates against the catalog by external id and
// creates missing records, serializing concurrent creations of one place.
// The Pipeline enriches new candidates with a details lookup in fixed-size
// batches on a shared worker pool and reports each finished batch on a
// channel. A failed item is logged and skipped; it never aborts its batch.
package ingestion
