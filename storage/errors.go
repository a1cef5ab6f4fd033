package storage

import "errors"

var (
	// ErrNotFound is returned by lookups when no record matches the key.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned by puts violating a uniqueness invariant.
	ErrConflict = errors.New("record already exists")

	errInvalidBlockID = errors.New("invalid block id")
	errEmptyPayload   = errors.New("payload is empty")
)

// CheckBlockID validates the externally supplied block identifier.
func CheckBlockID(blockID string) error {
	if blockID == "" {
		return errInvalidBlockID
	}
	return nil
}

// CheckPayload rejects empty payloads, both tables declare their blob
// column NOT NULL and an empty block or signature set is never valid.
func CheckPayload(payload []byte) error {
	if len(payload) == 0 {
		return errEmptyPayload
	}
	return nil
}

// CheckInput validates the key and payload of a put operation.
func CheckInput(blockID string, payload []byte) error {
	if err := CheckBlockID(blockID); err != nil {
		return err
	}
	return CheckPayload(payload)
}
