package tx

import (
	"reflect"
	"testing"

	"github.com/coinjecture/coinjecture/pkg/crypto"
	"github.com/coinjecture/coinjecture/pkg/types"
)

func signedTransfer(t *testing.T, amount, fee, nonce uint64) *Transaction {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tr := &Transaction{
		To:        types.Address{0x42},
		Amount:    amount,
		Fee:       fee,
		Nonce:     nonce,
		GasLimit:  21000,
		GasPrice:  1,
		TxType:    Transfer,
		Timestamp: 1_770_000_000,
	}
	if err := tr.Sign(key); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return tr
}

func TestTransaction_Hash_Deterministic(t *testing.T) {
	tr := signedTransfer(t, 1000, 10, 0)
	h1 := tr.Hash()
	h2 := tr.Hash()
	if h1 != h2 {
		t.Error("Hash() should be deterministic")
	}
	if h1.IsZero() {
		t.Error("Hash() should not be zero")
	}
}

func TestTransaction_Hash_ChangesWithContent(t *testing.T) {
	tr1 := signedTransfer(t, 1000, 10, 0)
	tr2 := signedTransfer(t, 2000, 10, 0)
	if tr1.Hash() == tr2.Hash() {
		t.Error("different transactions should have different hashes")
	}
}

func TestTransaction_Hash_IncludesSignature(t *testing.T) {
	tr := signedTransfer(t, 1000, 10, 0)
	h1 := tr.Hash()

	tr.Signature = append([]byte(nil), tr.Signature...)
	tr.Signature[0] ^= 0xFF
	h2 := tr.Hash()

	if h1 == h2 {
		t.Error("Hash() should change when the signature bytes change")
	}
}

func TestTransaction_SigningBytes_ExcludesSignatureAndPubKey(t *testing.T) {
	tr := signedTransfer(t, 1000, 10, 0)
	before := tr.SigningBytes()

	tr.Signature[0] ^= 0xFF
	after := tr.SigningBytes()

	if string(before) != string(after) {
		t.Error("SigningBytes() must not depend on Signature")
	}
}

func TestTransaction_Cost(t *testing.T) {
	tr := &Transaction{Amount: 1000, Fee: 50}
	got, err := tr.Cost()
	if err != nil {
		t.Fatalf("Cost() error: %v", err)
	}
	if got != 1050 {
		t.Errorf("Cost() = %d, want 1050", got)
	}
}

func TestTransaction_Cost_Overflow(t *testing.T) {
	tr := &Transaction{Amount: ^uint64(0), Fee: 1}
	if _, err := tr.Cost(); err == nil {
		t.Error("Cost() should error on overflow")
	}
}

func TestTransaction_EncodeDecode_Roundtrip(t *testing.T) {
	tr := signedTransfer(t, 12345, 7, 3)
	tr.Data = []byte("problem params")

	decoded, err := Decode(tr.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, tr) {
		t.Errorf("roundtrip mismatch:\n got %+v\nwant %+v", decoded, tr)
	}
}

func TestTransaction_JSON_Roundtrip(t *testing.T) {
	tr := signedTransfer(t, 500, 5, 1)
	tr.Data = []byte{0xde, 0xad, 0xbe, 0xef}

	data, err := tr.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	var decoded Transaction
	if err := decoded.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if !reflect.DeepEqual(&decoded, tr) {
		t.Errorf("JSON roundtrip mismatch:\n got %+v\nwant %+v", &decoded, tr)
	}
}

func TestTransaction_Sign_DerivesFromAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tr := &Transaction{To: types.Address{0x01}, Amount: 1, GasLimit: 1, TxType: Transfer}
	if err := tr.Sign(key); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	want := crypto.AddressFromPubKey(key.PublicKey())
	if tr.From != want {
		t.Errorf("From = %s, want %s", tr.From, want)
	}
}
