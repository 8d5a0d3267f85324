package block

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/coinjecture/coinjecture/pkg/codec"
	"github.com/coinjecture/coinjecture/pkg/crypto"
	"github.com/coinjecture/coinjecture/pkg/types"
)

func sampleHeader() *Header {
	return &Header{
		CodecVersion:     codec.Version,
		BlockIndex:       7,
		Timestamp:        1_700_000_000,
		ParentHash:       crypto.Hash([]byte("parent")),
		MerkleRoot:       crypto.Hash([]byte("txs")),
		MinerAddress:     types.Address{0x01, 0x02},
		Commitment:       crypto.Hash([]byte("commitment")),
		DifficultyTarget: 1_000_000,
		Nonce:            42,
		ExtraData:        []byte("genesis validators v1"),
	}
}

func TestHeader_EncodeDecode_Roundtrip(t *testing.T) {
	h := sampleHeader()
	encoded := h.Encode()

	decoded, err := DecodeHeader(encoded)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}

	if !reflect.DeepEqual(decoded, h) {
		t.Errorf("roundtrip mismatch:\ngot  %+v\nwant %+v", decoded, h)
	}
	if !bytes.Equal(decoded.Encode(), encoded) {
		t.Error("re-encoding decoded header did not reproduce original bytes")
	}
}

func TestHeader_Hash_ExcludesNothing_IsDeterministic(t *testing.T) {
	h := sampleHeader()
	h1 := h.Hash()
	h2 := h.Hash()
	if h1 != h2 {
		t.Error("Hash() is not deterministic")
	}

	other := sampleHeader()
	other.Nonce++
	if h.Hash() == other.Hash() {
		t.Error("changing nonce should change header hash")
	}
}

func TestDecodeHeader_RejectsTrailingBytes(t *testing.T) {
	h := sampleHeader()
	encoded := append(h.Encode(), 0xFF)
	if _, err := DecodeHeader(encoded); err == nil {
		t.Error("expected error decoding header with trailing byte")
	}
}

func TestDecodeHeader_RejectsTruncated(t *testing.T) {
	h := sampleHeader()
	encoded := h.Encode()
	if _, err := DecodeHeader(encoded[:len(encoded)-10]); err == nil {
		t.Error("expected error decoding truncated header")
	}
}

func TestHeader_JSON_Roundtrip(t *testing.T) {
	h := sampleHeader()
	data, err := h.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	var decoded Header
	if err := decoded.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if !reflect.DeepEqual(&decoded, h) {
		t.Errorf("JSON roundtrip mismatch:\ngot  %+v\nwant %+v", decoded, h)
	}
}

func TestHeader_EmptyExtraData_Roundtrip(t *testing.T) {
	h := sampleHeader()
	h.ExtraData = nil
	decoded, err := DecodeHeader(h.Encode())
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if len(decoded.ExtraData) != 0 {
		t.Errorf("expected empty extra_data, got %x", decoded.ExtraData)
	}
}
