package parity

import (
	"encoding/binary"

	"github.com/coinjecture/coinjecture/pkg/block"
)

// ReplayHeaderEncoding dual-runs the canonical header codec (primary,
// pkg/block.Header.Encode/pkg/codec) against a hand-rolled reimplementation
// of the same field layout (reference, plain encoding/binary) for each
// header, returning the trusted result per op's mode. A divergence here
// means the canonical codec and this package's field-order assumptions
// have drifted — exactly the regression a codec_version bump must not
// silently introduce.
func ReplayHeaderEncoding(r *Runner, headers []*block.Header) ([][]byte, error) {
	out := make([][]byte, len(headers))
	for i, h := range headers {
		h := h
		got, err := r.Run("header_encode", func() ([]byte, error) {
			return h.Encode(), nil
		}, func() ([]byte, error) {
			return referenceEncodeHeader(h), nil
		})
		if err != nil {
			return nil, err
		}
		out[i] = got
	}
	return out, nil
}

// referenceEncodeHeader is an independent, byte-for-byte reimplementation
// of Header.Encode's field layout. It must never import pkg/codec: the
// whole point is to catch a regression in that package using code that
// does not share its bugs.
func referenceEncodeHeader(h *block.Header) []byte {
	buf := make([]byte, 0, 128+len(h.ExtraData))

	var u32 [4]byte
	var u64 [8]byte

	binary.LittleEndian.PutUint32(u32[:], h.CodecVersion)
	buf = append(buf, u32[:]...)

	binary.LittleEndian.PutUint32(u32[:], h.BlockIndex)
	buf = append(buf, u32[:]...)

	binary.LittleEndian.PutUint64(u64[:], uint64(h.Timestamp))
	buf = append(buf, u64[:]...)

	buf = append(buf, h.ParentHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = append(buf, h.MinerAddress[:]...)
	buf = append(buf, h.Commitment[:]...)

	binary.LittleEndian.PutUint32(u32[:], h.DifficultyTarget)
	buf = append(buf, u32[:]...)

	binary.LittleEndian.PutUint64(u64[:], h.Nonce)
	buf = append(buf, u64[:]...)

	binary.LittleEndian.PutUint32(u32[:], uint32(len(h.ExtraData)))
	buf = append(buf, u32[:]...)
	buf = append(buf, h.ExtraData...)

	return buf
}
