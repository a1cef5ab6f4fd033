package boltdb

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ephemera/block"
	"ephemera/crypto"
	testlogger "ephemera/internal/testutils/logger"
	"ephemera/internal/testutils/testblock"
	"ephemera/storage"
)

func TestStore_PutGetBlock(t *testing.T) {
	s := newTestStore(t)
	payload := []byte{0xca, 0xfe}

	require.NoError(t, s.PutBlock("block-1", "genesis", payload))

	rec, err := s.GetBlock("block-1")
	require.NoError(t, err)
	require.Equal(t, &storage.BlockRecord{BlockID: "block-1", Label: "genesis", Payload: payload}, rec)

	rec, err = s.GetBlockByLabel("genesis")
	require.NoError(t, err)
	require.Equal(t, "block-1", rec.BlockID)
	require.Equal(t, payload, rec.Payload)

	_, err = s.GetBlock("block-2")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_UniquenessInvariants(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.PutBlock("block-1", "name", []byte{1}))

	require.ErrorIs(t, s.PutBlock("block-1", "other", []byte{2}), storage.ErrConflict)
	require.ErrorIs(t, s.PutBlock("block-2", "name", []byte{2}), storage.ErrConflict)

	// failed puts leave no trace behind
	_, err := s.GetBlock("block-2")
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetBlockByLabel("other")
	require.ErrorIs(t, err, storage.ErrNotFound)

	// empty label is not subject to the uniqueness constraint
	require.NoError(t, s.PutBlock("block-3", "", []byte{3}))
	require.NoError(t, s.PutBlock("block-4", "", []byte{4}))
}

func TestStore_Signatures(t *testing.T) {
	s := newTestStore(t)
	payload := []byte("aggregated signature set")

	require.NoError(t, s.PutSignatures("block-1", payload))

	got, err := s.GetSignatures("block-1")
	require.NoError(t, err)
	require.Equal(t, payload, got)

	require.ErrorIs(t, s.PutSignatures("block-1", []byte("other")), storage.ErrConflict)
	require.ErrorIs(t, s.PutSignatures("block-2", payload), storage.ErrConflict)

	_, err = s.GetSignatures("block-2")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_StoreBlock(t *testing.T) {
	s := newTestStore(t)
	b, certs := testblock.New(t, 1)

	require.NoError(t, s.StoreBlock(b, certs))
	require.ErrorIs(t, s.StoreBlock(b, certs), storage.ErrConflict)

	got, err := s.GetBlockByID(b.ID())
	require.NoError(t, err)
	require.Equal(t, b, got)

	gotCerts, err := s.GetBlockCertificates(b.ID())
	require.NoError(t, err)
	require.Equal(t, certs, gotCerts)
}

func TestStore_StoreBlockIsAtomic(t *testing.T) {
	s := newTestStore(t)
	b1, certs := testblock.New(t, 1)
	b2, _ := testblock.New(t, 2)

	require.NoError(t, s.StoreBlock(b1, certs))
	require.ErrorIs(t, s.StoreBlock(b2, certs), storage.ErrConflict)

	// the conflicting update rolled back the block write as well
	_, err := s.GetBlock(b2.ID())
	require.ErrorIs(t, err, storage.ErrNotFound)

	last, err := s.GetLastBlock()
	require.NoError(t, err)
	require.Equal(t, b1, last)
}

func TestStore_GetLastBlock(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetLastBlock()
	require.ErrorIs(t, err, storage.ErrNotFound)

	b1, certs1 := testblock.New(t, 1)
	b2, certs2 := testblock.New(t, 2)
	require.NoError(t, s.StoreBlock(b1, certs1))
	require.NoError(t, s.StoreBlock(b2, certs2))

	last, err := s.GetLastBlock()
	require.NoError(t, err)
	require.Equal(t, b2, last)
}

func TestStore_GetLastBlockWithConcurrentWriter(t *testing.T) {
	s := newTestStore(t)

	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	creator, err := kp.PeerID()
	require.NoError(t, err)

	// blocks are sized so that concurrent writes keep remapping pages
	const blockCount = 32
	blocks := make([]*block.Block, blockCount)
	certs := make([][]crypto.Certificate, blockCount)
	for i := range blocks {
		msg, err := block.NewRawMessage(fmt.Sprintf("message-%d", i), bytes.Repeat([]byte{byte(i)}, 64*1024)).Sign(kp)
		require.NoError(t, err)
		raw := block.NewRawBlock(creator, uint64(i), []block.Message{msg})
		blocks[i], err = raw.Sign(kp)
		require.NoError(t, err)

		data, err := raw.Encode()
		require.NoError(t, err)
		cert, err := kp.Certify(data)
		require.NoError(t, err)
		certs[i] = []crypto.Certificate{cert}
	}
	require.NoError(t, s.StoreBlock(blocks[0], certs[0]))

	done := make(chan error, 1)
	go func() {
		for i := 1; i < blockCount; i++ {
			if err := s.StoreBlock(blocks[i], certs[i]); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	// the last-block key always names a stored block so every read while the
	// writer runs must succeed and return verifiable content
	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			last, err := s.GetLastBlock()
			require.NoError(t, err)
			require.Equal(t, blocks[blockCount-1], last)
			return
		default:
			last, err := s.GetLastBlock()
			require.NoError(t, err)
			require.NoError(t, last.Verify())
		}
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "blocks.db"), testlogger.New(t))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}
