// Package types defines the shared data model for the rehydration engine:
// indexed chunks, per-query retrieval hits, fused results, extracted
// entities, role policies, and the assembled context bundle.
//
// Values in this package are plain data. Chunks are immutable once indexed,
// retrieval hits and entities are ephemeral per-request values, and a Bundle
// is immutable once returned to the caller.
package types
