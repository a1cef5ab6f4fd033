package crypto

import (
	"crypto/rand"
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

type (
	// Signer component for digitally signing data.
	Signer interface {
		// SignBytes signs the data with the private key of the Signer.
		SignBytes(data []byte) ([]byte, error)
		// Certify signs the data and returns the signature bundled with the
		// signer public key so that the receiver can verify it.
		Certify(data []byte) (Certificate, error)
	}

	// Keypair is an ed25519 identity of a node or message author. The same
	// key signs messages and derives the libp2p peer id of the node.
	Keypair struct {
		priv crypto.PrivKey
	}
)

var _ Signer = (*Keypair)(nil)

// GenerateKeypair creates a new random ed25519 keypair.
func GenerateKeypair() (*Keypair, error) {
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating ed25519 key: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

// KeypairFromBytes restores a keypair from its marshaled private key.
func KeypairFromBytes(data []byte) (*Keypair, error) {
	priv, err := crypto.UnmarshalPrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshaling private key: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

// ToBytes returns the marshaled private key so the keypair can be restored
// later with KeypairFromBytes.
func (k *Keypair) ToBytes() ([]byte, error) {
	return crypto.MarshalPrivateKey(k.priv)
}

func (k *Keypair) SignBytes(data []byte) ([]byte, error) {
	sig, err := k.priv.Sign(data)
	if err != nil {
		return nil, fmt.Errorf("signing data: %w", err)
	}
	return sig, nil
}

func (k *Keypair) Certify(data []byte) (Certificate, error) {
	sig, err := k.SignBytes(data)
	if err != nil {
		return Certificate{}, err
	}
	pub, err := crypto.MarshalPublicKey(k.priv.GetPublic())
	if err != nil {
		return Certificate{}, fmt.Errorf("marshaling public key: %w", err)
	}
	return Certificate{Signature: sig, PublicKey: pub}, nil
}

// PeerID derives the libp2p peer id from the public key part.
func (k *Keypair) PeerID() (peer.ID, error) {
	return peer.IDFromPublicKey(k.priv.GetPublic())
}
