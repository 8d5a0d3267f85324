// COINjecture full node daemon.
//
// Usage:
//
//	coinjectured [--produce --validator-key=...]   Run node
//	coinjectured --help                            Show help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coinjecture/coinjecture/config"
	"github.com/coinjecture/coinjecture/internal/node"
)

func main() {
	// ── 1. Load config (defaults → file → flags) ────────────────────────
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Build the node: opens storage, resumes or initializes the
	// chain from genesis, wires the mempool, and loads the producer key
	// if configured. ──────────────────────────────────────────────────
	n, err := node.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to start node: %v\n", err)
		os.Exit(1)
	}

	height, tip := n.CurrentTip()
	fmt.Printf("coinjectured starting: network=%s height=%d tip=%s producing=%t\n",
		cfg.Network, height, tip, cfg.Producer.Enabled)

	// ── 3. Run the tick loop until a shutdown signal arrives. ───────────
	ctx, cancel := context.WithCancel(context.Background())
	n.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	fmt.Printf("shutdown signal received: %s\n", sig)

	cancel()
	if err := n.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("goodbye")
}
