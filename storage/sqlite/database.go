package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"ephemera/block"
	"ephemera/crypto"
	"ephemera/logger"
	"ephemera/storage"
)

var _ storage.Database = (*Store)(nil)

// StoreBlock persists the finalized block and its certificates in a single
// transaction. The schema declares no relation between the two tables so
// this is the point where a block and its signature set stay in sync.
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

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("INSERT INTO blocks(block_id, label, block) VALUES(?, NULL, ?)", b.ID(), payload); err != nil {
		return fmt.Errorf("inserting block %s: %w", b.ID(), asStorageErr(err))
	}
	if _, err := tx.Exec("INSERT INTO signatures(block_id, signatures) VALUES(?, ?)", b.ID(), certs); err != nil {
		return fmt.Errorf("inserting signatures for block %s: %w", b.ID(), asStorageErr(err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing block %s: %w", b.ID(), err)
	}
	s.log.Debug("stored block with certificates", logger.BlockID(b.ID()))
	return nil
}

func (s *Store) GetBlockByID(blockID string) (*block.Block, error) {
	rec, err := s.GetBlock(blockID)
	if err != nil {
		return nil, err
	}
	return block.Decode(rec.Payload)
}

// GetLastBlock returns the most recently stored block, storage.ErrNotFound
// when the store is empty.
func (s *Store) GetLastBlock() (*block.Block, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT block FROM blocks WHERE id = (SELECT max(id) FROM blocks)").Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("last block: %w", storage.ErrNotFound)
		}
		return nil, fmt.Errorf("querying last block: %w", err)
	}
	return block.Decode(payload)
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
