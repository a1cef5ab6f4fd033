package crypto

import (
	"encoding/hex"
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

// Certificate is a signature over some data bundled with the public key of
// the author. A finalized block carries one certificate per cluster member
// that signed it.
type Certificate struct {
	Signature []byte `json:"signature"`
	PublicKey []byte `json:"public_key"`
}

// Verify checks the certificate signature against data.
func (c Certificate) Verify(data []byte) error {
	pub, err := crypto.UnmarshalPublicKey(c.PublicKey)
	if err != nil {
		return fmt.Errorf("unmarshaling public key: %w", err)
	}
	ok, err := pub.Verify(data, c.Signature)
	if err != nil {
		return fmt.Errorf("verifying signature: %w", err)
	}
	if !ok {
		return fmt.Errorf("signature does not match data")
	}
	return nil
}

// Issuer returns the peer id of the certificate author.
func (c Certificate) Issuer() (peer.ID, error) {
	pub, err := crypto.UnmarshalPublicKey(c.PublicKey)
	if err != nil {
		return "", fmt.Errorf("unmarshaling public key: %w", err)
	}
	return peer.IDFromPublicKey(pub)
}

func (c Certificate) String() string {
	return fmt.Sprintf("sig: %s, pub: %s", hex.EncodeToString(c.Signature), hex.EncodeToString(c.PublicKey))
}
