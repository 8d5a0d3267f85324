// Package node wires storage, the chain state machine, the mempool, and
// the PoA block-production loop into one running process.
package node

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coinjecture/coinjecture/config"
	"github.com/coinjecture/coinjecture/internal/chain"
	"github.com/coinjecture/coinjecture/internal/commitreveal"
	"github.com/coinjecture/coinjecture/internal/consensus"
	"github.com/coinjecture/coinjecture/internal/log"
	"github.com/coinjecture/coinjecture/internal/mempool"
	"github.com/coinjecture/coinjecture/internal/problem"
	"github.com/coinjecture/coinjecture/internal/state"
	"github.com/coinjecture/coinjecture/internal/storage"
	"github.com/coinjecture/coinjecture/pkg/block"
	"github.com/coinjecture/coinjecture/pkg/crypto"
	"github.com/coinjecture/coinjecture/pkg/merkle"
	"github.com/coinjecture/coinjecture/pkg/tx"
	"github.com/coinjecture/coinjecture/pkg/types"
)

// producedBlock is a worker goroutine's result: a fully-assembled candidate
// block ready for the tick loop to hand to the chain, or an error if
// assembly failed (e.g. no solution found within the solving deadline).
type producedBlock struct {
	blk *block.Block
	err error
}

// Node runs a single chain as one cooperative tick loop: a block-production
// ticker, a drain of externally submitted blocks, and a liveness ticker
// that reports an absent leader, all serialized through one goroutine so
// chain state is only ever touched from that goroutine (chain.Chain itself
// also holds its own mutex, since a reorg can be triggered directly by
// ProcessBlock without going through the tick loop's channels). Problem
// solving and merkle-root computation run on plain worker goroutines that
// report back over buffered channels instead of mutating chain state
// directly.
type Node struct {
	cfg     *config.Config
	genesis *config.Genesis
	logger  zerolog.Logger

	db       storage.DB
	Chain    *chain.Chain
	pool     *mempool.Pool
	poa      *consensus.PoA
	problems problem.Registry
	tracker  *consensus.ValidatorTracker

	producerKey  *crypto.PrivateKey
	producerAddr types.Address

	inbound  chan *inboundBlock
	produced chan producedBlock

	subMu sync.Mutex
	subs  []chan *block.Block

	notifyMu           sync.Mutex
	missedTurnNotified map[uint64]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Node from configuration: it opens storage, loads (or
// seeds) genesis, wires the PoA engine and mempool, and — if block
// production is enabled — loads the validator key. It does not start the
// tick loop; call Start for that.
func New(cfg *config.Config) (*Node, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := config.EnsureDataDirs(cfg); err != nil {
		return nil, fmt.Errorf("ensure data dirs: %w", err)
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger := log.WithComponent("node")

	gen := config.GenesisFor(cfg.Network)

	db, err := storage.NewBadger(cfg.DBDir())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	registry, err := chain.BuildGenesisValidatorRegistry(gen)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build validator registry: %w", err)
	}
	poa := &consensus.PoA{Registry: registry, Slasher: consensus.NewSlasher(registry)}
	problems := problem.NewDefaultRegistry()

	ch, err := chain.New(gen.ChainID, db, poa, problems, gen)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open chain: %w", err)
	}
	// SetGenesisConfig must run on every startup, not just the first one:
	// InitFromGenesis already records it for a fresh chain, but a resumed
	// chain's in-memory Chain has no other way to learn it, and a crash
	// mid-reorg needs it to reseed genesis accounts during recovery.
	ch.SetGenesisConfig(gen)
	if ch.State().IsGenesis() {
		if err := ch.InitFromGenesis(gen); err != nil {
			db.Close()
			return nil, fmt.Errorf("init genesis: %w", err)
		}
		logger.Info().Str("chain_id", gen.ChainID).Msg("initialized fresh chain from genesis")
	} else {
		logger.Info().Uint64("height", ch.Height()).Str("tip", ch.TipHash().String()).Msg("resumed chain")
	}

	pool := mempool.New(config.MempoolMaxSize)
	pool.SetMaxAge(time.Duration(config.MempoolMaxAgeSec) * time.Second)
	pool.SetAccountReader(ch)

	n := &Node{
		cfg:                cfg,
		genesis:            gen,
		logger:             logger,
		db:                 db,
		Chain:              ch,
		pool:               pool,
		poa:                poa,
		problems:           problems,
		tracker:            consensus.NewValidatorTracker(time.Duration(config.BlockIntervalSeconds) * time.Second),
		inbound:            make(chan *inboundBlock, 64),
		produced:           make(chan producedBlock, 1),
		missedTurnNotified: make(map[uint64]bool),
	}

	// Transactions dropped by a reorg go back in the pool if still valid;
	// Add re-validates against current account state on its own.
	ch.SetRevertedTxHandler(func(txs []*tx.Transaction) {
		for _, t := range txs {
			if _, err := n.pool.Add(t); err != nil {
				n.logger.Debug().Err(err).Str("tx", t.Hash().String()).Msg("reverted transaction did not return to mempool")
			}
		}
	})

	if cfg.Producer.Enabled {
		key, err := loadValidatorKey(cfg.Producer.ValidatorKey)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("load validator key: %w", err)
		}
		n.producerKey = key
		n.producerAddr = crypto.AddressFromPubKey(key.PublicKey())
		if !registry.IsValidator(n.producerAddr) {
			logger.Warn().Str("address", n.producerAddr.String()).Msg("producer key does not belong to a genesis validator; it will never be scheduled to lead")
		}
	}

	return n, nil
}

// SubmitTransaction admits a transaction to the mempool.
func (n *Node) SubmitTransaction(transaction *tx.Transaction) error {
	_, err := n.pool.Add(transaction)
	return err
}

// inboundBlock pairs an externally submitted block with the channel its
// caller is waiting on for the acceptance result.
type inboundBlock struct {
	blk    *block.Block
	result chan error
}

// SubmitBlock hands an externally-received block to the tick loop for
// validation and acceptance. It blocks until the tick loop has processed
// it (or the node is shutting down), matching the synchronous semantics a
// caller of a plain Go method expects.
func (n *Node) SubmitBlock(blk *block.Block) error {
	req := &inboundBlock{blk: blk, result: make(chan error, 1)}
	select {
	case n.inbound <- req:
	case <-n.ctx.Done():
		return fmt.Errorf("node is shutting down")
	}
	select {
	case err := <-req.result:
		return err
	case <-n.ctx.Done():
		return fmt.Errorf("node is shutting down")
	}
}

// QueryBlock returns a block by hash.
func (n *Node) QueryBlock(hash types.Hash) (*block.Block, error) {
	return n.Chain.GetBlock(hash)
}

// QueryAccount returns an account's committed state.
func (n *Node) QueryAccount(addr types.Address) (*state.Account, error) {
	return n.Chain.Account(addr)
}

// QueryEscrow returns an escrow's committed state, and whether it exists.
func (n *Node) QueryEscrow(id types.Hash) (*state.Escrow, bool, error) {
	return n.Chain.Escrow(id)
}

// CurrentTip returns the current canonical tip height and hash.
func (n *Node) CurrentTip() (uint64, types.Hash) {
	return n.Chain.Height(), n.Chain.TipHash()
}

// VerifyProof checks a merkle inclusion proof against a block's merkle
// root, exposed so a light client doesn't have to pull the whole block.
func (n *Node) VerifyProof(leaf types.Hash, proof merkle.Proof, root types.Hash) bool {
	return merkle.VerifyProof(leaf, proof, root)
}

// Subscribe returns a channel that receives every block accepted onto the
// canonical tip, whether self-produced or externally submitted. The
// caller must keep draining it; when the channel is full, that block's
// notification is dropped rather than allowed to block the tick loop.
func (n *Node) Subscribe() <-chan *block.Block {
	ch := make(chan *block.Block, 16)
	n.subMu.Lock()
	n.subs = append(n.subs, ch)
	n.subMu.Unlock()
	return ch
}

func (n *Node) broadcast(blk *block.Block) {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- blk:
		default:
			n.logger.Warn().Msg("subscriber channel full, dropping block notification")
		}
	}
}

// Start launches the tick loop and its companion tickers. Call Stop to
// shut down cleanly.
func (n *Node) Start(ctx context.Context) {
	n.ctx, n.cancel = context.WithCancel(ctx)
	n.wg.Add(1)
	go n.runTick()
}

// Stop cancels the tick loop, waits for it to exit, zeroes the producer
// key, and closes storage.
func (n *Node) Stop() error {
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()
	if n.producerKey != nil {
		n.producerKey.Zero()
	}
	return n.db.Close()
}

// runTick is the single goroutine that ever touches chain-tip-adjacent
// node state (the subscriber list, missed-turn bookkeeping, the mempool
// prune/select calls). It drains five sources: the block-production
// ticker, externally submitted blocks, solved candidate blocks produced
// by worker goroutines, the missed-turn liveness ticker, and the mempool
// prune ticker.
func (n *Node) runTick() {
	defer n.wg.Done()

	produceTicker := time.NewTicker(time.Duration(config.BlockIntervalSeconds) * time.Second)
	defer produceTicker.Stop()
	livenessTicker := time.NewTicker(time.Duration(config.BlockIntervalSeconds+config.TurnToleranceSeconds) * time.Second)
	defer livenessTicker.Stop()
	pruneTicker := time.NewTicker(time.Minute)
	defer pruneTicker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return

		case req := <-n.inbound:
			err := n.Chain.ProcessBlock(req.blk)
			req.result <- err
			if err == nil {
				n.pool.RemoveConfirmed(req.blk.Transactions)
				n.tracker.RecordBlock(req.blk.Header.MinerAddress)
				n.broadcast(req.blk)
			}

		case pb := <-n.produced:
			if pb.err != nil {
				n.logger.Warn().Err(pb.err).Msg("block production failed")
				continue
			}
			if err := n.Chain.ProcessBlock(pb.blk); err != nil {
				n.logger.Warn().Err(err).Msg("self-produced block rejected")
				continue
			}
			n.pool.RemoveConfirmed(pb.blk.Transactions)
			n.tracker.RecordBlock(pb.blk.Header.MinerAddress)
			n.broadcast(pb.blk)
			n.logger.Info().
				Uint32("block_index", pb.blk.Header.BlockIndex).
				Str("hash", pb.blk.Hash().String()).
				Int("txs", len(pb.blk.Transactions)).
				Msg("produced block")

		case <-produceTicker.C:
			n.maybeProduce()

		case <-livenessTicker.C:
			n.checkLiveness()

		case <-pruneTicker.C:
			n.pool.PruneExpired()
		}
	}
}

// maybeProduce checks whether this node is the scheduled leader for the
// next block and, if so, launches a worker goroutine to assemble and solve
// a candidate. The worker reports back over n.produced; it never touches
// chain state itself.
func (n *Node) maybeProduce() {
	if n.producerKey == nil {
		return
	}
	nextIndex := uint32(n.Chain.Height()) + 1
	if !n.poa.IsLeader(n.producerAddr, nextIndex) {
		return
	}

	parentHash := n.Chain.TipHash()
	parent, err := n.Chain.GetBlockByHeight(n.Chain.Height())
	if err != nil {
		n.logger.Error().Err(err).Msg("load tip block for production")
		return
	}
	target := n.Chain.DifficultyTarget()
	n.logger.Debug().Str("target", formatDifficulty(target)).Msg("attempting to produce block")

	go n.produceBlock(parentHash, parent.Header.Timestamp, nextIndex, target)
}

// produceBlock runs off the tick goroutine: it generates and solves the
// epoch-canonical puzzle (potentially the expensive part), selects
// transactions, computes the merkle root, and assembles a header. The
// result is sent to n.produced for the tick loop to submit.
func (n *Node) produceBlock(parentHash types.Hash, parentTimestamp int64, blockIndex uint32, target uint32) {
	timestamp := time.Now().Unix()
	if timestamp <= parentTimestamp {
		timestamp = parentTimestamp + 1
	}

	tier := chain.TierForTarget(target)
	epochSalt := commitreveal.EpochSalt(parentHash, timestamp)
	seed := [32]byte(epochSalt)

	prob, err := n.problems.Generate(problem.SubsetSum, seed, tier)
	if err != nil {
		n.produced <- producedBlock{err: fmt.Errorf("generate problem: %w", err)}
		return
	}

	ctx, cancel := context.WithTimeout(n.ctx, time.Duration(config.BlockIntervalSeconds)*time.Second)
	defer cancel()
	sol, ok := n.problems.Solve(ctx, prob)
	if !ok {
		n.produced <- producedBlock{err: fmt.Errorf("no solution found within this turn's deadline")}
		return
	}

	var minerSalt types.Hash
	if _, err := rand.Read(minerSalt[:]); err != nil {
		n.produced <- producedBlock{err: fmt.Errorf("generate miner salt: %w", err)}
		return
	}

	txs := n.pool.SelectForBlock(config.MaxBlockTxs)
	leaves := make([]types.Hash, len(txs))
	for i, t := range txs {
		leaves[i] = t.Hash()
	}
	merkleRoot := merkle.ComputeRoot(leaves)

	header := &block.Header{
		CodecVersion:     1,
		BlockIndex:       blockIndex,
		Timestamp:        timestamp,
		ParentHash:       parentHash,
		MerkleRoot:       merkleRoot,
		MinerAddress:     n.producerAddr,
		Commitment:       commitreveal.Commitment(prob.Encode(), minerSalt, epochSalt),
		DifficultyTarget: target,
		ExtraData:        chain.EncodeReveal(minerSalt, prob, sol),
	}

	n.produced <- producedBlock{blk: block.NewBlock(header, txs)}
}

// checkLiveness reports a missed turn to the chain once per height, the
// turn window after the tip's timestamp having elapsed with no new block.
// Only the node's own ticker observes this absence — ProcessBlock has
// nothing to validate when no block ever arrives.
func (n *Node) checkLiveness() {
	st := n.Chain.State()
	deadline := st.TipTimestamp + config.BlockIntervalSeconds + config.TurnToleranceSeconds
	if time.Now().Unix() <= deadline {
		return
	}

	missedIndex := uint32(st.Height) + 1
	leader := n.poa.Registry.EffectiveLeader(missedIndex)

	n.notifyMu.Lock()
	defer n.notifyMu.Unlock()
	if n.missedTurnNotified[uint64(missedIndex)] {
		return
	}
	n.missedTurnNotified[uint64(missedIndex)] = true
	n.tracker.RecordMiss(leader)
	n.Chain.NotifyMissedTurn(leader)
	n.logger.Warn().Uint32("block_index", missedIndex).Str("leader", leader.String()).Msg("leader missed its turn")
}
