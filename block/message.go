package block

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"ephemera/crypto"
)

type (
	// RawMessage is the unsigned form of a message, it is exactly the data
	// that gets signed.
	RawMessage struct {
		Timestamp uint64 `cbor:"1,keyasint" json:"timestamp"`
		// Label is an application specific logical identifier of the message.
		Label string `cbor:"2,keyasint" json:"label"`
		// Data is opaque application specific payload.
		Data []byte `cbor:"3,keyasint" json:"data"`
	}

	// Message is a signed application message included in a block.
	Message struct {
		Timestamp   uint64             `cbor:"1,keyasint" json:"timestamp"`
		Label       string             `cbor:"2,keyasint" json:"label"`
		Data        []byte             `cbor:"3,keyasint" json:"data"`
		Certificate crypto.Certificate `cbor:"4,keyasint" json:"certificate"`
	}
)

// NewRawMessage creates an unsigned message stamped with the current time.
func NewRawMessage(label string, data []byte) RawMessage {
	return RawMessage{
		Timestamp: uint64(time.Now().Unix()),
		Label:     label,
		Data:      data,
	}
}

// Encode returns the canonical encoding of the raw message.
func (m RawMessage) Encode() ([]byte, error) {
	return cbor.Marshal(m)
}

// Sign produces a Message carrying a certificate over the raw encoding.
func (m RawMessage) Sign(signer crypto.Signer) (Message, error) {
	data, err := m.Encode()
	if err != nil {
		return Message{}, fmt.Errorf("encoding message: %w", err)
	}
	cert, err := signer.Certify(data)
	if err != nil {
		return Message{}, fmt.Errorf("signing message: %w", err)
	}
	return Message{
		Timestamp:   m.Timestamp,
		Label:       m.Label,
		Data:        m.Data,
		Certificate: cert,
	}, nil
}

// Raw strips the certificate from the message.
func (m Message) Raw() RawMessage {
	return RawMessage{
		Timestamp: m.Timestamp,
		Label:     m.Label,
		Data:      m.Data,
	}
}

// Verify checks the message certificate against the raw encoding.
func (m Message) Verify() error {
	data, err := m.Raw().Encode()
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	return m.Certificate.Verify(data)
}
