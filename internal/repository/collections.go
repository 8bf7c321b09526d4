// Package repository provides typed accessors over the document store. Raw
// documents are decoded into domain aggregates immediately after read and
// re-encoded immediately before write; documents that fail validation are
// rejected rather than propagated.
package repository

// Collection names in the document store.
const (
	CollectionProfiles = "profiles"
	CollectionFamilies = "families"
	CollectionEvents   = "events"
	CollectionRydz     = "rydz"
)
