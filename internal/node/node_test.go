package node

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coinjecture/coinjecture/config"
	"github.com/coinjecture/coinjecture/pkg/crypto"
	"github.com/coinjecture/coinjecture/pkg/tx"
	"github.com/coinjecture/coinjecture/pkg/types"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	tests := []struct {
		input, want string
	}{
		{"~/foo/bar", filepath.Join(home, "foo/bar")},
		{"~/.coinjecture/key", filepath.Join(home, ".coinjecture/key")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}
	for _, tt := range tests {
		got := expandHome(tt.input)
		if got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLoadValidatorKeyMissingFile(t *testing.T) {
	_, err := loadValidatorKey(filepath.Join(t.TempDir(), "does-not-exist.key"))
	if err == nil {
		t.Fatal("expected an error for a missing key file")
	}
}

func TestLoadValidatorKeyEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.key")
	if err := os.WriteFile(path, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadValidatorKey(path); err == nil {
		t.Fatal("expected an error for an empty key file")
	}
}

func TestLoadValidatorKeyInvalidHex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.key")
	if err := os.WriteFile(path, []byte("not-hex"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadValidatorKey(path); err == nil {
		t.Fatal("expected an error for non-hex key contents")
	}
}

func TestLoadValidatorKeyValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "validator.key")
	if err := os.WriteFile(path, []byte(config.TestnetValidatorPrivKey+"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	key, err := loadValidatorKey(path)
	if err != nil {
		t.Fatalf("loadValidatorKey: %v", err)
	}
	addr := crypto.AddressFromPubKey(key.PublicKey())
	if addr.IsZero() {
		t.Error("derived address should not be zero")
	}
}

func TestFormatDifficulty(t *testing.T) {
	tests := []struct {
		in   uint32
		want string
	}{
		{500, "500"},
		{5_000, "5.00K"},
		{5_000_000, "5.00M"},
	}
	for _, tt := range tests {
		if got := formatDifficulty(tt.in); got != tt.want {
			t.Errorf("formatDifficulty(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default(config.Testnet)
	cfg.DataDir = t.TempDir()
	cfg.Log.Level = "error"
	return cfg
}

func TestNewInitializesGenesisOnFreshDataDir(t *testing.T) {
	n, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Stop()

	if n.Chain.Height() != 0 {
		t.Errorf("height = %d, want 0", n.Chain.Height())
	}
	gen := config.TestnetGenesis()
	_, err = n.Chain.Account(validatorAddr(t, gen.Validators[0]))
	if err != nil {
		t.Errorf("expected genesis validator account to exist: %v", err)
	}
}

func TestNewResumesExistingChain(t *testing.T) {
	cfg := testConfig(t)

	first, err := New(cfg)
	if err != nil {
		t.Fatalf("New (first): %v", err)
	}
	height := first.Chain.Height()
	tip := first.Chain.TipHash()
	if err := first.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	second, err := New(cfg)
	if err != nil {
		t.Fatalf("New (resumed): %v", err)
	}
	defer second.Stop()

	if second.Chain.Height() != height {
		t.Errorf("resumed height = %d, want %d", second.Chain.Height(), height)
	}
	if second.Chain.TipHash() != tip {
		t.Errorf("resumed tip hash mismatch")
	}
}

func TestNewRequiresValidatorKeyWhenProducing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Producer.Enabled = true
	cfg.Producer.ValidatorKey = ""

	if _, err := New(cfg); err == nil {
		t.Fatal("expected an error when producer is enabled with no validator key configured")
	}
}

func TestNewLoadsProducerKey(t *testing.T) {
	cfg := testConfig(t)
	keyPath := filepath.Join(cfg.DataDir, "validator.key")
	if err := os.WriteFile(keyPath, []byte(config.TestnetValidatorPrivKey), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	cfg.Producer.Enabled = true
	cfg.Producer.ValidatorKey = keyPath

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Stop()

	if n.producerKey == nil {
		t.Fatal("expected a loaded producer key")
	}
	if n.producerAddr.IsZero() {
		t.Error("producer address should not be zero")
	}
}

func TestSubmitTransactionRejectsMalformed(t *testing.T) {
	n, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Stop()

	// Zero-value transaction: no From address, no signature.
	if err := n.SubmitTransaction(&tx.Transaction{}); err == nil {
		t.Error("expected a malformed transaction to be rejected")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	n, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n.Start(ctx)

	height, tip := n.CurrentTip()
	if height != 0 {
		t.Errorf("height = %d, want 0", height)
	}
	if tip.IsZero() {
		t.Error("genesis tip hash should not be zero")
	}

	sub := n.Subscribe()
	select {
	case <-sub:
		t.Error("no block should have been produced without a producer key")
	case <-time.After(20 * time.Millisecond):
	}

	if err := n.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

// validatorAddr mirrors chain.BuildGenesisValidatorRegistry's derivation of a
// validator's address from its hex-encoded compressed public key.
func validatorAddr(t *testing.T, pubHex string) types.Address {
	t.Helper()
	pub, err := hex.DecodeString(pubHex)
	if err != nil {
		t.Fatalf("decode validator pubkey: %v", err)
	}
	return crypto.AddressFromPubKey(pub)
}
