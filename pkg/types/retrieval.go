package types

// Channel identifies which retrieval path produced a hit.
type Channel string

const (
	ChannelLexical Channel = "lexical"
	ChannelDense   Channel = "dense"
	ChannelEntity  Channel = "entity"
)

// RetrievalHit is a single per-query result from one retrieval channel.
// Hits are ephemeral: they exist between retrieval and fusion and are
// discarded afterwards.
type RetrievalHit struct {
	ChunkID  int64
	Channel  Channel
	Rank     int // 1-based position within the channel's ranked list
	RawScore float64
}

// FusedResult is the output of rank fusion for a single chunk.
// LexicalRank and DenseRank are the chunk's 1-based ranks in the base
// channels, or 0 when the chunk was absent from that channel. They exist
// solely to make tie-breaking deterministic.
type FusedResult struct {
	ChunkID     int64
	RRFScore    float64
	LexicalRank int
	DenseRank   int
	ListCount   int // number of ranked lists that contributed
}

// EntityKind classifies an entity extracted from the query text.
type EntityKind string

const (
	EntityIdentifier EntityKind = "identifier"
	EntityPath       EntityKind = "path"
	EntityURL        EntityKind = "url"
	EntityToken      EntityKind = "token"
)

// Entity is a candidate entity pulled out of the raw query. Entities drive
// the adaptive width of entity-adjacent expansion and are discarded after
// the request completes.
type Entity struct {
	Text      string
	Kind      EntityKind
	SpanStart int
	SpanEnd   int
}
