package boltdb

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"

	"ephemera/logger"
	"ephemera/storage"
)

var (
	bucketBlocks     = []byte("blocks")     // block id -> blockRecord
	bucketLabels     = []byte("labels")     // label -> block id
	bucketSignatures = []byte("signatures") // block id -> signature payload
	bucketSigIndex   = []byte("sigindex")   // sha256(payload) -> block id
	bucketMeta       = []byte("meta")

	keyLastBlock = []byte("lastBlock")
)

// blockRecord is the stored form of a block row. The label travels with the
// payload so that lookups by block id can return it without a second index.
type blockRecord struct {
	Label   string `cbor:"1,keyasint"`
	Payload []byte `cbor:"2,keyasint"`
}

// Store is the bbolt backed implementation of storage.Database. The label
// and signature-payload uniqueness constraints the SQLite schema gets for
// free are maintained here with index buckets, all checks and writes of a
// put run in one update transaction.
type Store struct {
	db  *bbolt.DB
	log *slog.Logger
}

// New opens (creating when missing) the bolt database in dbFile. Parent
// directories must exist beforehand.
func New(dbFile string, log *slog.Logger) (*Store, error) {
	db, err := bbolt.Open(dbFile, 0600, &bbolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}
	s := &Store{db: db, log: log}
	if err := s.createBuckets(); err != nil {
		return nil, fmt.Errorf("initializing buckets: %w", err)
	}
	return s, nil
}

func (s *Store) createBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketBlocks, bucketLabels, bucketSignatures, bucketSigIndex, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) PutBlock(blockID, label string, payload []byte) error {
	if err := storage.CheckInput(blockID, payload); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return putBlock(tx, blockID, label, payload)
	})
	if err != nil {
		return fmt.Errorf("inserting block %s: %w", blockID, err)
	}
	s.log.Debug("stored block", logger.BlockID(blockID))
	return nil
}

func (s *Store) GetBlock(blockID string) (*storage.BlockRecord, error) {
	var rec *storage.BlockRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketBlocks).Get([]byte(blockID))
		if data == nil {
			return fmt.Errorf("block %s: %w", blockID, storage.ErrNotFound)
		}
		var br blockRecord
		if err := cbor.Unmarshal(data, &br); err != nil {
			return fmt.Errorf("decoding block record: %w", err)
		}
		rec = &storage.BlockRecord{BlockID: blockID, Label: br.Label, Payload: br.Payload}
		return nil
	})
	return rec, err
}

func (s *Store) GetBlockByLabel(label string) (*storage.BlockRecord, error) {
	var rec *storage.BlockRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		blockID := tx.Bucket(bucketLabels).Get([]byte(label))
		if blockID == nil {
			return fmt.Errorf("block with label %q: %w", label, storage.ErrNotFound)
		}
		data := tx.Bucket(bucketBlocks).Get(blockID)
		if data == nil {
			return fmt.Errorf("block %s: %w", blockID, storage.ErrNotFound)
		}
		var br blockRecord
		if err := cbor.Unmarshal(data, &br); err != nil {
			return fmt.Errorf("decoding block record: %w", err)
		}
		rec = &storage.BlockRecord{BlockID: string(blockID), Label: br.Label, Payload: br.Payload}
		return nil
	})
	return rec, err
}

func (s *Store) PutSignatures(blockID string, signatures []byte) error {
	if err := storage.CheckInput(blockID, signatures); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return putSignatures(tx, blockID, signatures)
	})
	if err != nil {
		return fmt.Errorf("inserting signatures for block %s: %w", blockID, err)
	}
	s.log.Debug("stored signatures", logger.BlockID(blockID))
	return nil
}

func (s *Store) GetSignatures(blockID string) ([]byte, error) {
	var payload []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSignatures).Get([]byte(blockID))
		if data == nil {
			return fmt.Errorf("signatures of block %s: %w", blockID, storage.ErrNotFound)
		}
		payload = append([]byte(nil), data...)
		return nil
	})
	return payload, err
}

func putBlock(tx *bbolt.Tx, blockID, label string, payload []byte) error {
	blocks := tx.Bucket(bucketBlocks)
	if blocks.Get([]byte(blockID)) != nil {
		return storage.ErrConflict
	}
	labels := tx.Bucket(bucketLabels)
	if label != "" && labels.Get([]byte(label)) != nil {
		return fmt.Errorf("label %q: %w", label, storage.ErrConflict)
	}
	data, err := cbor.Marshal(blockRecord{Label: label, Payload: payload})
	if err != nil {
		return fmt.Errorf("encoding block record: %w", err)
	}
	if err := blocks.Put([]byte(blockID), data); err != nil {
		return err
	}
	if label != "" {
		if err := labels.Put([]byte(label), []byte(blockID)); err != nil {
			return err
		}
	}
	return tx.Bucket(bucketMeta).Put(keyLastBlock, []byte(blockID))
}

func putSignatures(tx *bbolt.Tx, blockID string, payload []byte) error {
	signatures := tx.Bucket(bucketSignatures)
	if signatures.Get([]byte(blockID)) != nil {
		return storage.ErrConflict
	}
	sum := sha256.Sum256(payload)
	index := tx.Bucket(bucketSigIndex)
	if index.Get(sum[:]) != nil {
		return fmt.Errorf("identical payload already stored: %w", storage.ErrConflict)
	}
	if err := signatures.Put([]byte(blockID), payload); err != nil {
		return err
	}
	return index.Put(sum[:], []byte(blockID))
}
