package testblock

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"ephemera/block"
	"ephemera/crypto"
)

// New creates a signed block with a couple of messages and the certificates
// of three distinct signers over it.
func New(t *testing.T, height uint64) (*block.Block, []crypto.Certificate) {
	t.Helper()

	creator, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	creatorID, err := creator.PeerID()
	require.NoError(t, err)

	var messages []block.Message
	for i := 0; i < 2; i++ {
		msg, err := block.NewRawMessage(fmt.Sprintf("message-%d", i), []byte{1, 2, 3, byte(i)}).Sign(creator)
		require.NoError(t, err)
		messages = append(messages, msg)
	}

	raw := block.NewRawBlock(creatorID, height, messages)
	b, err := raw.Sign(creator)
	require.NoError(t, err)

	data, err := raw.Encode()
	require.NoError(t, err)

	var certs []crypto.Certificate
	for i := 0; i < 3; i++ {
		kp, err := crypto.GenerateKeypair()
		require.NoError(t, err)
		cert, err := kp.Certify(data)
		require.NoError(t, err)
		certs = append(certs, cert)
	}
	return b, certs
}
