package memory

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"ephemera/block"
	"ephemera/crypto"
	"ephemera/storage"
)

var _ storage.Database = (*Store)(nil)

// Store is a map backed implementation of storage.Database for development
// and tests. Semantics match the persistent backends, including the
// signature payload uniqueness invariant.
type Store struct {
	lock       sync.RWMutex
	blocks     map[string]storage.BlockRecord // block id -> record
	labels     map[string]string              // label -> block id
	signatures map[string][]byte              // block id -> payload
	sigIndex   map[[sha256.Size]byte]string   // payload hash -> block id
	lastBlock  string
}

func New() *Store {
	return &Store{
		blocks:     make(map[string]storage.BlockRecord),
		labels:     make(map[string]string),
		signatures: make(map[string][]byte),
		sigIndex:   make(map[[sha256.Size]byte]string),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) PutBlock(blockID, label string, payload []byte) error {
	if err := storage.CheckInput(blockID, payload); err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.putBlock(blockID, label, payload)
}

func (s *Store) GetBlock(blockID string) (*storage.BlockRecord, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	rec, ok := s.blocks[blockID]
	if !ok {
		return nil, fmt.Errorf("block %s: %w", blockID, storage.ErrNotFound)
	}
	rec.Payload = copyBytes(rec.Payload)
	return &rec, nil
}

func (s *Store) GetBlockByLabel(label string) (*storage.BlockRecord, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	blockID, ok := s.labels[label]
	if !ok {
		return nil, fmt.Errorf("block with label %q: %w", label, storage.ErrNotFound)
	}
	rec := s.blocks[blockID]
	rec.Payload = copyBytes(rec.Payload)
	return &rec, nil
}

func (s *Store) PutSignatures(blockID string, signatures []byte) error {
	if err := storage.CheckInput(blockID, signatures); err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.putSignatures(blockID, signatures)
}

func (s *Store) GetSignatures(blockID string) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	payload, ok := s.signatures[blockID]
	if !ok {
		return nil, fmt.Errorf("signatures of block %s: %w", blockID, storage.ErrNotFound)
	}
	return copyBytes(payload), nil
}

func (s *Store) StoreBlock(b *block.Block, certificates []crypto.Certificate) error {
	payload, err := b.Encode()
	if err != nil {
		return fmt.Errorf("encoding block: %w", err)
	}
	certs, err := cbor.Marshal(certificates)
	if err != nil {
		return fmt.Errorf("encoding certificates: %w", err)
	}
	if err := storage.CheckInput(b.ID(), payload); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	// both inserts must succeed, check signature side before touching state
	if _, ok := s.signatures[b.ID()]; ok {
		return fmt.Errorf("storing block %s: %w", b.ID(), storage.ErrConflict)
	}
	if _, ok := s.sigIndex[sha256.Sum256(certs)]; ok {
		return fmt.Errorf("storing block %s: %w", b.ID(), storage.ErrConflict)
	}
	if err := s.putBlock(b.ID(), "", payload); err != nil {
		return fmt.Errorf("storing block %s: %w", b.ID(), err)
	}
	return s.putSignatures(b.ID(), certs)
}

func (s *Store) GetBlockByID(blockID string) (*block.Block, error) {
	rec, err := s.GetBlock(blockID)
	if err != nil {
		return nil, err
	}
	return block.Decode(rec.Payload)
}

func (s *Store) GetLastBlock() (*block.Block, error) {
	s.lock.RLock()
	blockID := s.lastBlock
	s.lock.RUnlock()
	if blockID == "" {
		return nil, fmt.Errorf("last block: %w", storage.ErrNotFound)
	}
	return s.GetBlockByID(blockID)
}

func (s *Store) GetBlockCertificates(blockID string) ([]crypto.Certificate, error) {
	payload, err := s.GetSignatures(blockID)
	if err != nil {
		return nil, err
	}
	var certs []crypto.Certificate
	if err := cbor.Unmarshal(payload, &certs); err != nil {
		return nil, fmt.Errorf("decoding certificates of block %s: %w", blockID, err)
	}
	return certs, nil
}

// putBlock and putSignatures expect the write lock to be held.
func (s *Store) putBlock(blockID, label string, payload []byte) error {
	if _, ok := s.blocks[blockID]; ok {
		return fmt.Errorf("inserting block %s: %w", blockID, storage.ErrConflict)
	}
	if label != "" {
		if _, ok := s.labels[label]; ok {
			return fmt.Errorf("label %q: %w", label, storage.ErrConflict)
		}
		s.labels[label] = blockID
	}
	s.blocks[blockID] = storage.BlockRecord{BlockID: blockID, Label: label, Payload: copyBytes(payload)}
	s.lastBlock = blockID
	return nil
}

func (s *Store) putSignatures(blockID string, payload []byte) error {
	if _, ok := s.signatures[blockID]; ok {
		return fmt.Errorf("inserting signatures for block %s: %w", blockID, storage.ErrConflict)
	}
	sum := sha256.Sum256(payload)
	if _, ok := s.sigIndex[sum]; ok {
		return fmt.Errorf("inserting signatures for block %s: identical payload already stored: %w", blockID, storage.ErrConflict)
	}
	s.signatures[blockID] = copyBytes(payload)
	s.sigIndex[sum] = blockID
	return nil
}

// copyBytes detaches stored payloads from caller owned buffers, records are
// append only and must not change after the put.
func copyBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}
