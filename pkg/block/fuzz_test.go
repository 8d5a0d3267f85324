package block

import (
	"encoding/json"
	"testing"
)

// FuzzBlockUnmarshal tests that arbitrary JSON input does not panic
// when unmarshaled into a Block struct.
func FuzzBlockUnmarshal(f *testing.F) {
	f.Add([]byte(`{"header":{"codec_version":1,"block_index":0,"timestamp":1000,"parent_hash":"","merkle_root":""},"transactions":[]}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"header":null}`))
	f.Add([]byte(`{"header":{"codec_version":99999},"transactions":[{}]}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var blk Block
		if err := json.Unmarshal(data, &blk); err != nil {
			return // Invalid JSON is expected.
		}
		// If unmarshal succeeded, ValidateStructure and Hash must not panic.
		_ = blk.ValidateStructure()
		blk.Hash()
	})
}

// FuzzHeaderUnmarshal tests that arbitrary JSON input does not panic when
// unmarshaled into a Header struct.
func FuzzHeaderUnmarshal(f *testing.F) {
	f.Add([]byte(`{"codec_version":1,"block_index":0,"timestamp":1000}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"difficulty_target":4294967295,"nonce":18446744073709551615}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var h Header
		if err := json.Unmarshal(data, &h); err != nil {
			return
		}
		h.Hash()
		h.Encode()
	})
}

// FuzzHeaderDecode tests that arbitrary wire bytes do not panic the strict
// codec decoder.
func FuzzHeaderDecode(f *testing.F) {
	f.Add([]byte{})
	f.Add(make([]byte, 20))
	f.Add(make([]byte, 200))

	f.Fuzz(func(t *testing.T, data []byte) {
		h, err := DecodeHeader(data)
		if err != nil {
			return
		}
		h.Hash()
		h.Encode()
	})
}
