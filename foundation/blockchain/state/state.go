// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iprotocol/blockchain/foundation/blockchain/database"
	"github.com/iprotocol/blockchain/foundation/blockchain/genesis"
	"github.com/iprotocol/blockchain/foundation/blockchain/mempool"
	"github.com/iprotocol/blockchain/foundation/blockchain/signature"
	"github.com/iprotocol/blockchain/foundation/blockchain/storage/memory"
)

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for background mining.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining()
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Genesis          genesis.Genesis
	Storage          database.Serializer // Nil means the chain is only held in memory.
	DifficultyPolicy DifficultyPolicy    // Nil means the genesis difficulty for every block.
	Now              func() time.Time    // Nil means time.Now.
	EvHandler        EventHandler
}

// State manages the blockchain database.
type State struct {
	mu       sync.Mutex // Serializes changes to the chain and the mempool.
	miningMu sync.Mutex // Serializes mining operations.

	genesis    genesis.Genesis
	difficulty DifficultyPolicy
	now        func() time.Time
	evHandler  EventHandler

	mempool *mempool.Mempool
	db      *database.Database

	Worker Worker
}

// New constructs a new blockchain for data management. Blocks held by the
// storage are validated and replayed. When the storage is empty a genesis
// block is mined for the genesis difficulty.
func New(ctx context.Context, cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Genesis.Difficulty > signature.MaxDifficulty {
		return nil, fmt.Errorf("genesis difficulty %d: %w", cfg.Genesis.Difficulty, database.ErrDifficultyRange)
	}

	if err := cfg.Genesis.Validate(); err != nil {
		return nil, err
	}

	strg := cfg.Storage
	if strg == nil {
		strg = memory.New()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	// Access the storage for the blockchain. Every stored block is validated.
	db, err := database.New(strg, ev)
	if err != nil {
		return nil, err
	}

	// A stored chain keeps the difficulty it was started with.
	gen := cfg.Genesis
	if db.Length() > 0 {
		first, err := db.GetBlock(0)
		if err != nil {
			return nil, err
		}

		if first.Header.Difficulty != gen.Difficulty {
			ev("state: New: WARNING: stored genesis difficulty[%d] overrides configured difficulty[%d]", first.Header.Difficulty, gen.Difficulty)
			gen.Difficulty = first.Header.Difficulty
		}
	}

	policy := cfg.DifficultyPolicy
	if policy == nil {
		policy = ConstantDifficulty(gen.Difficulty)
	}

	state := State{
		genesis:    gen,
		difficulty: policy,
		now:        now,
		evHandler:  ev,
		mempool:    mempool.New(),
		db:         db,
	}

	if db.Length() == 0 {
		if err := state.mineGenesis(ctx); err != nil {
			return nil, err
		}
	}

	if err := ValidateChain(db.Blocks(), policy, ev); err != nil {
		return nil, err
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start the background mining for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	// Make sure the storage is properly closed.
	return s.db.Close()
}

// mineGenesis mines and writes the first block of the chain. The genesis
// block holds no transactions and is subject to the same proof of work as
// every other block.
func (s *State) mineGenesis(ctx context.Context) error {
	s.evHandler("state: mineGenesis: MINING: difficulty[%d]", s.genesis.Difficulty)

	block, err := database.POW(ctx, database.POWArgs{
		Height:     0,
		ParentHash: signature.ZeroHash,
		Difficulty: s.genesis.Difficulty,
		TimeStamp:  s.genesis.TimeStamp(),
		Now:        s.now,
		EvHandler:  s.evHandler,
	})
	if err != nil {
		return fmt.Errorf("mine genesis: %w", err)
	}

	if err := block.ValidateGenesis(s.evHandler); err != nil {
		return fmt.Errorf("mine genesis: %w", err)
	}

	if err := s.db.Write(block); err != nil {
		return fmt.Errorf("write genesis: %w", err)
	}

	s.evHandler("viewer: genesis block: blk[%d]: hash[%s]", block.Header.Height, block.Hash())

	return nil
}
