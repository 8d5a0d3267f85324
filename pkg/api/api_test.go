package api

import (
	"testing"

	"github.com/coinjecture/coinjecture/config"
	"github.com/coinjecture/coinjecture/internal/node"
	"github.com/coinjecture/coinjecture/pkg/tx"
)

func testNode(t *testing.T) *node.Node {
	t.Helper()
	cfg := config.Default(config.Testnet)
	cfg.DataDir = t.TempDir()
	cfg.Log.Level = "error"
	n, err := node.New(cfg)
	if err != nil {
		t.Fatalf("node.New: %v", err)
	}
	t.Cleanup(func() { n.Stop() })
	return n
}

func TestCurrentTipPassesThrough(t *testing.T) {
	a := New(testNode(t))
	height, hash := a.CurrentTip()
	if height != 0 {
		t.Errorf("height = %d, want 0", height)
	}
	if hash.IsZero() {
		t.Error("genesis tip hash should not be zero")
	}
}

func TestSubmitTransactionPassesThrough(t *testing.T) {
	a := New(testNode(t))
	if err := a.SubmitTransaction(&tx.Transaction{}); err == nil {
		t.Error("expected a malformed transaction to be rejected")
	}
}

func TestQueryBlockPassesThrough(t *testing.T) {
	a := New(testNode(t))
	_, tip := a.CurrentTip()
	blk, err := a.QueryBlock(tip)
	if err != nil {
		t.Fatalf("QueryBlock: %v", err)
	}
	if blk.Hash() != tip {
		t.Error("returned block does not match the queried hash")
	}
}

func TestSubscribeReturnsAChannel(t *testing.T) {
	a := New(testNode(t))
	ch := a.Subscribe()
	if ch == nil {
		t.Fatal("expected a non-nil channel")
	}
}
