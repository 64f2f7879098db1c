package constants

// Attribute keys carried by CRDT nodes.
const (
	AttrBlockID   = "blockId"
	AttrTextID    = "textId"
	AttrBlockType = "blockType"
	AttrData      = "data"
)

var (
	// DefaultRootID is the identifier of the document root block when none is configured.
	DefaultRootID = "document"
	// DefaultRootType is the block type reported for the document root.
	DefaultRootType = "document"
	// TextType is the local node type of text-bearing leaves.
	TextType = "text"
	// LooseTextSuffix derives the id of a text leaf synthesized for anonymous content.
	LooseTextSuffix = "#text"
)

// DefaultMaxRetryRounds bounds how many times a deferred event is retried within one batch.
const DefaultMaxRetryRounds = 8
