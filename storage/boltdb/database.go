package boltdb

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"

	"ephemera/block"
	"ephemera/crypto"
	"ephemera/logger"
	"ephemera/storage"
)

var _ storage.Database = (*Store)(nil)

// StoreBlock persists the finalized block and its certificates in one update
// transaction, the counterpart of the SQLite implementation's sql.Tx.
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

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := putBlock(tx, b.ID(), "", payload); err != nil {
			return err
		}
		return putSignatures(tx, b.ID(), certs)
	})
	if err != nil {
		return fmt.Errorf("storing block %s: %w", b.ID(), err)
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
// when the store is empty. The whole lookup runs in one view transaction,
// values returned by bucket Get are invalid once the transaction closes.
func (s *Store) GetLastBlock() (*block.Block, error) {
	var b *block.Block
	err := s.db.View(func(tx *bbolt.Tx) error {
		blockID := tx.Bucket(bucketMeta).Get(keyLastBlock)
		if blockID == nil {
			return fmt.Errorf("last block: %w", storage.ErrNotFound)
		}
		data := tx.Bucket(bucketBlocks).Get(blockID)
		if data == nil {
			return fmt.Errorf("block %s: %w", blockID, storage.ErrNotFound)
		}
		var br blockRecord
		if err := cbor.Unmarshal(data, &br); err != nil {
			return fmt.Errorf("decoding block record: %w", err)
		}
		var err error
		b, err = block.Decode(br.Payload)
		return err
	})
	return b, err
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
