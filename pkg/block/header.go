// Package block defines the block header, block body, and their structural
// validation rules.
package block

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/coinjecture/coinjecture/pkg/codec"
	"github.com/coinjecture/coinjecture/pkg/crypto"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// Header contains block metadata. Field order here is the canonical order
// used by Encode/Hash; changing it requires a codec_version bump.
type Header struct {
	CodecVersion     uint32     `json:"codec_version"`
	BlockIndex       uint32     `json:"block_index"`
	Timestamp        int64      `json:"timestamp"`
	ParentHash       types.Hash `json:"parent_hash"`
	MerkleRoot       types.Hash `json:"merkle_root"`
	MinerAddress     types.Address `json:"miner_address"`
	Commitment       types.Hash `json:"commitment"`
	DifficultyTarget uint32     `json:"difficulty_target"`
	Nonce            uint64     `json:"nonce"`
	ExtraData        []byte     `json:"extra_data,omitempty"`
}

// Encode returns the canonical byte encoding of the header, in field order.
func (h *Header) Encode() []byte {
	e := codec.NewEncoder(128 + len(h.ExtraData))
	e.WriteUint32(h.CodecVersion)
	e.WriteUint32(h.BlockIndex)
	e.WriteInt64(h.Timestamp)
	e.WriteFixed(h.ParentHash[:])
	e.WriteFixed(h.MerkleRoot[:])
	e.WriteFixed(h.MinerAddress[:])
	e.WriteFixed(h.Commitment[:])
	e.WriteUint32(h.DifficultyTarget)
	e.WriteUint64(h.Nonce)
	e.WriteVarBytes(h.ExtraData)
	return e.Bytes()
}

// DecodeHeader strict-decodes a Header from its canonical encoding.
func DecodeHeader(b []byte) (*Header, error) {
	d := codec.NewDecoder(b)
	h := &Header{}

	var err error
	if h.CodecVersion, err = d.ReadUint32(); err != nil {
		return nil, fmt.Errorf("codec_version: %w", err)
	}
	if h.BlockIndex, err = d.ReadUint32(); err != nil {
		return nil, fmt.Errorf("block_index: %w", err)
	}
	if h.Timestamp, err = d.ReadInt64(); err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}
	ph, err := d.ReadFixed(types.HashSize)
	if err != nil {
		return nil, fmt.Errorf("parent_hash: %w", err)
	}
	copy(h.ParentHash[:], ph)
	mr, err := d.ReadFixed(types.HashSize)
	if err != nil {
		return nil, fmt.Errorf("merkle_root: %w", err)
	}
	copy(h.MerkleRoot[:], mr)
	ma, err := d.ReadFixed(types.AddressSize)
	if err != nil {
		return nil, fmt.Errorf("miner_address: %w", err)
	}
	copy(h.MinerAddress[:], ma)
	cm, err := d.ReadFixed(types.HashSize)
	if err != nil {
		return nil, fmt.Errorf("commitment: %w", err)
	}
	copy(h.Commitment[:], cm)
	if h.DifficultyTarget, err = d.ReadUint32(); err != nil {
		return nil, fmt.Errorf("difficulty_target: %w", err)
	}
	if h.Nonce, err = d.ReadUint64(); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	if h.ExtraData, err = d.ReadVarBytes(); err != nil {
		return nil, fmt.Errorf("extra_data: %w", err)
	}
	if err := d.Done(); err != nil {
		return nil, err
	}
	return h, nil
}

// Hash computes the block header hash. Unlike the UTXO-era header this
// format has no in-header signature field to exclude: the header is the
// whole signing surface.
func (h *Header) Hash() types.Hash {
	return crypto.Hash(h.Encode())
}

// headerJSON mirrors Header for marshaling with hex-friendly byte fields.
type headerJSON struct {
	CodecVersion     uint32        `json:"codec_version"`
	BlockIndex       uint32        `json:"block_index"`
	Timestamp        int64         `json:"timestamp"`
	ParentHash       types.Hash    `json:"parent_hash"`
	MerkleRoot       types.Hash    `json:"merkle_root"`
	MinerAddress     types.Address `json:"miner_address"`
	Commitment       types.Hash    `json:"commitment"`
	DifficultyTarget uint32        `json:"difficulty_target"`
	Nonce            uint64        `json:"nonce"`
	ExtraData        string        `json:"extra_data,omitempty"`
}

// MarshalJSON encodes the header with hex-encoded extra data.
func (h *Header) MarshalJSON() ([]byte, error) {
	j := headerJSON{
		CodecVersion:     h.CodecVersion,
		BlockIndex:       h.BlockIndex,
		Timestamp:        h.Timestamp,
		ParentHash:       h.ParentHash,
		MerkleRoot:       h.MerkleRoot,
		MinerAddress:     h.MinerAddress,
		Commitment:       h.Commitment,
		DifficultyTarget: h.DifficultyTarget,
		Nonce:            h.Nonce,
	}
	if h.ExtraData != nil {
		j.ExtraData = hex.EncodeToString(h.ExtraData)
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes a header with hex-encoded extra data.
func (h *Header) UnmarshalJSON(data []byte) error {
	var j headerJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	h.CodecVersion = j.CodecVersion
	h.BlockIndex = j.BlockIndex
	h.Timestamp = j.Timestamp
	h.ParentHash = j.ParentHash
	h.MerkleRoot = j.MerkleRoot
	h.MinerAddress = j.MinerAddress
	h.Commitment = j.Commitment
	h.DifficultyTarget = j.DifficultyTarget
	h.Nonce = j.Nonce
	if j.ExtraData != "" {
		b, err := hex.DecodeString(j.ExtraData)
		if err != nil {
			return fmt.Errorf("invalid extra_data hex: %w", err)
		}
		h.ExtraData = b
	}
	return nil
}
