package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mattn/go-sqlite3"

	"ephemera/logger"
	"ephemera/storage"
)

// Schema is persisted bit-exact: two append-only tables, uniqueness
// constraints only, no foreign key between them.
const (
	createBlocksTable = `CREATE TABLE IF NOT EXISTS blocks(
		id       INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
		block_id TEXT NOT NULL UNIQUE,
		label    TEXT UNIQUE,
		block    BLOB NOT NULL
	)`

	createSignaturesTable = `CREATE TABLE IF NOT EXISTS signatures(
		id         INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
		block_id   TEXT NOT NULL UNIQUE,
		signatures BLOB NOT NULL UNIQUE
	)`
)

// Store is the SQLite backed implementation of storage.Database.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// New opens (creating when missing) the SQLite database in dbFile and makes
// sure the schema exists.
func New(dbFile string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbFile+"?_busy_timeout=3000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	for _, ddl := range []string{createBlocksTable, createSignaturesTable} {
		if _, err := db.Exec(ddl); err != nil {
			return nil, errors.Join(fmt.Errorf("creating schema: %w", err), db.Close())
		}
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// PutBlock appends one block record. Empty label is stored as NULL so that
// the label uniqueness constraint does not apply to unlabeled blocks.
func (s *Store) PutBlock(blockID, label string, payload []byte) error {
	if err := storage.CheckInput(blockID, payload); err != nil {
		return err
	}
	lbl := sql.NullString{String: label, Valid: label != ""}
	if _, err := s.db.Exec("INSERT INTO blocks(block_id, label, block) VALUES(?, ?, ?)", blockID, lbl, payload); err != nil {
		return fmt.Errorf("inserting block %s: %w", blockID, asStorageErr(err))
	}
	s.log.Debug("stored block", logger.BlockID(blockID))
	return nil
}

func (s *Store) GetBlock(blockID string) (*storage.BlockRecord, error) {
	row := s.db.QueryRow("SELECT label, block FROM blocks WHERE block_id = ?", blockID)

	var lbl sql.NullString
	rec := storage.BlockRecord{BlockID: blockID}
	if err := row.Scan(&lbl, &rec.Payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("block %s: %w", blockID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("querying block: %w", err)
	}
	if lbl.Valid {
		rec.Label = lbl.String
	}
	return &rec, nil
}

func (s *Store) GetBlockByLabel(label string) (*storage.BlockRecord, error) {
	row := s.db.QueryRow("SELECT block_id, block FROM blocks WHERE label = ?", label)
	var rec storage.BlockRecord
	rec.Label = label
	if err := row.Scan(&rec.BlockID, &rec.Payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("block with label %q: %w", label, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("querying block by label: %w", err)
	}
	return &rec, nil
}

// PutSignatures appends the aggregated signature set of a block. Both the
// block id and the payload itself are unique across the table.
func (s *Store) PutSignatures(blockID string, signatures []byte) error {
	if err := storage.CheckInput(blockID, signatures); err != nil {
		return err
	}
	if _, err := s.db.Exec("INSERT INTO signatures(block_id, signatures) VALUES(?, ?)", blockID, signatures); err != nil {
		return fmt.Errorf("inserting signatures for block %s: %w", blockID, asStorageErr(err))
	}
	s.log.Debug("stored signatures", logger.BlockID(blockID))
	return nil
}

func (s *Store) GetSignatures(blockID string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT signatures FROM signatures WHERE block_id = ?", blockID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("signatures of block %s: %w", blockID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("querying signatures: %w", err)
	}
	return payload, nil
}

// asStorageErr maps unique constraint violations to storage.ErrConflict so
// that callers do not depend on driver error types.
func asStorageErr(err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w (%s)", storage.ErrConflict, serr.Error())
	}
	return err
}
