package storage

import (
	"ephemera/block"
	"ephemera/crypto"
)

// BlockRecord is a single row of the block store: an opaque finalized block
// payload keyed by block id plus an optional unique label. Empty label means
// the record has no label (no uniqueness applies to it).
type BlockRecord struct {
	BlockID string
	Label   string
	Payload []byte
}

// BlockStore persists opaque finalized block payloads. Records are append
// only, there is no update or delete path.
type BlockStore interface {
	// PutBlock inserts a new block record. Returns ErrConflict when blockID
	// already exists or when label is non-empty and used by another record.
	// The insert is atomic, a failed put leaves the store unchanged.
	PutBlock(blockID, label string, payload []byte) error
	// GetBlock returns the record with the given block id, ErrNotFound if absent.
	GetBlock(blockID string) (*BlockRecord, error)
	// GetBlockByLabel returns the record with the given label, ErrNotFound if absent.
	GetBlockByLabel(label string) (*BlockRecord, error)
}

// SignatureStore persists opaque aggregated-signature payloads, at most one
// per block.
type SignatureStore interface {
	// PutSignatures inserts the signature payload for blockID. Returns
	// ErrConflict when blockID already has a record or when a byte-identical
	// payload is already stored under a different block id.
	PutSignatures(blockID string, signatures []byte) error
	// GetSignatures returns the payload stored for blockID, ErrNotFound if absent.
	GetSignatures(blockID string) ([]byte, error)
}

// Database is the typed facade used by the node: it encodes domain types into
// the opaque payloads of the underlying stores. StoreBlock writes the block
// and its certificates as one atomic unit - the schema itself declares no
// relation between the two tables so this is where referential integrity is
// enforced.
type Database interface {
	BlockStore
	SignatureStore

	StoreBlock(b *block.Block, certificates []crypto.Certificate) error
	GetBlockByID(blockID string) (*block.Block, error)
	GetLastBlock() (*block.Block, error)
	GetBlockCertificates(blockID string) ([]crypto.Certificate, error)
	Close() error
}
