package block

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/libp2p/go-libp2p/core/peer"

	"ephemera/crypto"
)

type (
	// Header identifies a block. Hash is the hex encoded sha256 over the raw
	// block encoding and doubles as the block id in storage.
	Header struct {
		Hash      string  `cbor:"1,keyasint" json:"hash"`
		Creator   peer.ID `cbor:"2,keyasint" json:"creator"`
		Height    uint64  `cbor:"3,keyasint" json:"height"`
		Timestamp uint64  `cbor:"4,keyasint" json:"timestamp"`
	}

	// RawBlock is the unsigned form of a block, the input for hashing and
	// signing. Its header hash field is empty.
	RawBlock struct {
		Header   Header    `cbor:"1,keyasint" json:"header"`
		Messages []Message `cbor:"2,keyasint" json:"messages"`
	}

	// Block is a finalized block as persisted and distributed: header,
	// the messages it carries and the creator certificate over the raw form.
	Block struct {
		Header      Header             `cbor:"1,keyasint" json:"header"`
		Messages    []Message          `cbor:"2,keyasint" json:"messages"`
		Certificate crypto.Certificate `cbor:"3,keyasint" json:"certificate"`
	}
)

func (h Header) String() string {
	return fmt.Sprintf("hash: %s, creator: %s, height: %d", h.Hash, h.Creator, h.Height)
}

// NewRawBlock assembles an unsigned block for the given creator and height.
func NewRawBlock(creator peer.ID, height uint64, messages []Message) RawBlock {
	return RawBlock{
		Header: Header{
			Creator:   creator,
			Height:    height,
			Timestamp: uint64(time.Now().Unix()),
		},
		Messages: messages,
	}
}

// Encode returns the canonical encoding of the raw block.
func (rb RawBlock) Encode() ([]byte, error) {
	return cbor.Marshal(rb)
}

// HashHex computes the block hash over the raw encoding.
func (rb RawBlock) HashHex() (string, error) {
	data, err := rb.Encode()
	if err != nil {
		return "", fmt.Errorf("encoding block: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Sign computes the block hash, signs the raw encoding and returns the
// finalized block.
func (rb RawBlock) Sign(signer crypto.Signer) (*Block, error) {
	data, err := rb.Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding block: %w", err)
	}
	cert, err := signer.Certify(data)
	if err != nil {
		return nil, fmt.Errorf("signing block: %w", err)
	}
	sum := sha256.Sum256(data)

	header := rb.Header
	header.Hash = hex.EncodeToString(sum[:])
	return &Block{
		Header:      header,
		Messages:    rb.Messages,
		Certificate: cert,
	}, nil
}

// Raw strips the hash and certificate from the block.
func (b *Block) Raw() RawBlock {
	header := b.Header
	header.Hash = ""
	return RawBlock{
		Header:   header,
		Messages: b.Messages,
	}
}

// ID is the storage identity of the block.
func (b *Block) ID() string {
	return b.Header.Hash
}

// Verify checks that the header hash matches the raw encoding and that the
// creator certificate is valid for it.
func (b *Block) Verify() error {
	raw := b.Raw()
	data, err := raw.Encode()
	if err != nil {
		return fmt.Errorf("encoding block: %w", err)
	}
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != b.Header.Hash {
		return fmt.Errorf("header hash does not match block content")
	}
	return b.Certificate.Verify(data)
}

// Encode serializes the finalized block for storage.
func (b *Block) Encode() ([]byte, error) {
	return cbor.Marshal(b)
}

// Decode deserializes a finalized block from its storage encoding.
func Decode(data []byte) (*Block, error) {
	b := &Block{}
	if err := cbor.Unmarshal(data, b); err != nil {
		return nil, fmt.Errorf("decoding block: %w", err)
	}
	return b, nil
}
