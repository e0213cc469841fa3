package models

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Canonical claim encoding, version 1:
//
//	magic      [4]byte "PVCL"
//	version    uint16
//	generator  uint32 length + bytes
//	asset hash uint32 length + bytes
//	assertions uint32 count, each:
//	    type       uint32 length + bytes
//	    payload    uint32 length + bytes
//	    created at int64 unix nanoseconds (UTC)
//
// All integers are big endian. The layout is fixed so that two claims built
// from identical inputs serialize to byte-identical output, which is what makes
// signatures reproducible and verifiable without re-encoding.
const ClaimEncodingVersion uint16 = 1

var claimMagic = [4]byte{'P', 'V', 'C', 'L'}

// Assertion is a single typed statement about an asset. Immutable once created.
type Assertion struct {
	Type      string    `json:"type"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// Claim is an ordered, append-only sequence of assertions bound to the hash of
// a target asset and the identity of the generator that produced them.
type Claim struct {
	GeneratorID string      `json:"generator_id"`
	AssetHash   []byte      `json:"asset_hash"`
	Assertions  []Assertion `json:"assertions"`
}

func (c *Claim) CanonicalBytes() ([]byte, error) {
	buf := new(bytes.Buffer)

	buf.Write(claimMagic[:])
	binary.Write(buf, binary.BigEndian, ClaimEncodingVersion)

	writeLengthPrefixed(buf, []byte(c.GeneratorID))
	writeLengthPrefixed(buf, c.AssetHash)

	binary.Write(buf, binary.BigEndian, uint32(len(c.Assertions)))
	for _, assertion := range c.Assertions {
		writeLengthPrefixed(buf, []byte(assertion.Type))
		writeLengthPrefixed(buf, assertion.Payload)
		binary.Write(buf, binary.BigEndian, assertion.CreatedAt.UTC().UnixNano())
	}

	return buf.Bytes(), nil
}

func ParseClaim(data []byte) (*Claim, error) {
	reader := bytes.NewReader(data)

	var magic [4]byte
	if _, err := reader.Read(magic[:]); err != nil || magic != claimMagic {
		return nil, fmt.Errorf("bad claim magic")
	}

	var version uint16
	if err := binary.Read(reader, binary.BigEndian, &version); err != nil {
		return nil, fmt.Errorf("could not read claim version: %w", err)
	}

	if version != ClaimEncodingVersion {
		return nil, fmt.Errorf("unknown claim encoding version %d", version)
	}

	generatorID, err := readLengthPrefixed(reader)
	if err != nil {
		return nil, fmt.Errorf("could not read generator id: %w", err)
	}

	assetHash, err := readLengthPrefixed(reader)
	if err != nil {
		return nil, fmt.Errorf("could not read asset hash: %w", err)
	}

	var assertionCount uint32
	if err := binary.Read(reader, binary.BigEndian, &assertionCount); err != nil {
		return nil, fmt.Errorf("could not read assertion count: %w", err)
	}

	if int(assertionCount) > reader.Len() {
		return nil, fmt.Errorf("assertion count %d exceeds remaining claim bytes", assertionCount)
	}

	assertions := make([]Assertion, 0, assertionCount)
	for i := uint32(0); i < assertionCount; i++ {
		assertionType, err := readLengthPrefixed(reader)
		if err != nil {
			return nil, fmt.Errorf("could not read assertion %d type: %w", i, err)
		}

		payload, err := readLengthPrefixed(reader)
		if err != nil {
			return nil, fmt.Errorf("could not read assertion %d payload: %w", i, err)
		}

		var createdAtNanos int64
		if err := binary.Read(reader, binary.BigEndian, &createdAtNanos); err != nil {
			return nil, fmt.Errorf("could not read assertion %d timestamp: %w", i, err)
		}

		assertions = append(assertions, Assertion{
			Type:      string(assertionType),
			Payload:   payload,
			CreatedAt: time.Unix(0, createdAtNanos).UTC(),
		})
	}

	if reader.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after claim", reader.Len())
	}

	return &Claim{
		GeneratorID: string(generatorID),
		AssetHash:   assetHash,
		Assertions:  assertions,
	}, nil
}

func writeLengthPrefixed(buf *bytes.Buffer, data []byte) {
	binary.Write(buf, binary.BigEndian, uint32(len(data)))
	buf.Write(data)
}

func readLengthPrefixed(reader *bytes.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return nil, err
	}

	if int(length) > reader.Len() {
		return nil, fmt.Errorf("field length %d exceeds remaining bytes", length)
	}

	data := make([]byte, length)
	if _, err := reader.Read(data); err != nil {
		return nil, err
	}

	return data, nil
}
