package state

import (
	"context"
	"errors"

	"github.com/iprotocol/blockchain/foundation/blockchain/database"
)

// ErrNoTransactions is returned when a block is requested to be created
// and there are not enough transactions.
var ErrNoTransactions = errors.New("no transactions in mempool")

// =============================================================================

// MinePendingTransactions takes every pending transaction, in arrival order,
// and mines them into the next block of the chain.
//
// The pending set is captured when mining starts. Transactions submitted
// while the search runs stay pending for the next block. If the context is
// canceled before a solution is found, nothing changes.
func (s *State) MinePendingTransactions(ctx context.Context) (database.Block, error) {
	s.miningMu.Lock()
	defer s.miningMu.Unlock()

	s.evHandler("state: MinePendingTransactions: MINING: check mempool count")

	trans := s.mempool.PickBest(-1)
	if len(trans) == 0 {
		return database.Block{}, ErrNoTransactions
	}

	latest := s.db.LatestBlock()

	// The header timestamp can't go backwards from the parent's.
	timeStamp := database.UnixSeconds(s.now())
	if timeStamp < latest.Header.TimeStamp {
		timeStamp = latest.Header.TimeStamp
	}

	s.evHandler("state: MinePendingTransactions: MINING: perform POW: txs[%d]", len(trans))

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	block, err := database.POW(ctx, database.POWArgs{
		Height:     latest.Header.Height + 1,
		ParentHash: latest.Hash(),
		Difficulty: s.nextDifficulty(),
		Trans:      trans,
		TimeStamp:  timeStamp,
		Now:        s.now,
		EvHandler:  s.evHandler,
	})
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MinePendingTransactions: MINING: validate and update database")

	if err := s.validateUpdateDatabase(block, latest); err != nil {
		return database.Block{}, err
	}

	s.evHandler("viewer: block mined: blk[%d]: hash[%s]: txs[%d]", block.Header.Height, block.Hash(), len(trans))

	return block, nil
}

// =============================================================================

// validateUpdateDatabase takes the block and validates it against the parent
// it was mined on. If the block passes, the block is added to the chain and
// its transactions are removed from the mempool.
func (s *State) validateUpdateDatabase(block database.Block, parent database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: validateUpdateDatabase: validate block")

	if err := block.ValidateBlock(parent, s.evHandler); err != nil {
		return err
	}

	s.evHandler("state: validateUpdateDatabase: write to storage")

	if err := s.db.Write(block); err != nil {
		return err
	}

	s.evHandler("state: validateUpdateDatabase: remove from mempool")

	s.mempool.Delete(block.Transactions()...)

	return nil
}
