package state

import (
	"github.com/iprotocol/blockchain/foundation/blockchain/database"
	"github.com/iprotocol/blockchain/foundation/blockchain/genesis"
	"github.com/iprotocol/blockchain/foundation/blockchain/signature"
)

// QueryLatest represents to query the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// Status represents a point in time report of the ledger.
type Status struct {
	ChainLength  int              `json:"chain_length"`
	Pending      int              `json:"pending"`
	Difficulty   uint             `json:"difficulty"`
	Valid        bool             `json:"valid"`
	LatestHeight uint64           `json:"latest_height"`
	LatestHash   signature.Digest `json:"latest_hash"`
}

// Status reports the chain length, the pending count, the difficulty for the
// next block and whether the chain is valid.
func (s *State) Status() Status {
	latest := s.db.LatestBlock()

	return Status{
		ChainLength:  s.db.Length(),
		Pending:      s.mempool.Count(),
		Difficulty:   s.nextDifficulty(),
		Valid:        s.IsValid(),
		LatestHeight: latest.Header.Height,
		LatestHash:   latest.Hash(),
	}
}

// Snapshot returns the chain in its serializable form.
func (s *State) Snapshot() database.ChainData {
	return database.NewChainData(s.db.Blocks())
}

// =============================================================================

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveLatestBlock returns a copy the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveMempool returns a copy of the mempool in arrival order.
func (s *State) RetrieveMempool() []database.Tx {
	return s.mempool.PickBest(-1)
}

// RetrieveAccount returns the nonce information for the account.
func (s *State) RetrieveAccount(accountID database.AccountID) (database.Account, error) {
	return s.db.Account(accountID)
}

// RetrieveAccounts returns every account that has sent a transaction.
func (s *State) RetrieveAccounts() []database.Account {
	return s.db.CopyAccounts()
}

// RetrieveBlock returns the block at the height.
func (s *State) RetrieveBlock(height uint64) (database.Block, error) {
	if height == QueryLatest {
		return s.db.LatestBlock(), nil
	}

	return s.db.GetBlock(height)
}

// RetrieveBlocks returns the set of blocks between the heights, inclusive.
// QueryLatest can be used for either height.
func (s *State) RetrieveBlocks(from uint64, to uint64) []database.Block {
	latest := s.db.LatestBlock().Header.Height

	if from == QueryLatest {
		from = latest
	}
	if to == QueryLatest || to > latest {
		to = latest
	}

	var out []database.Block
	for i := from; i <= to; i++ {
		block, err := s.db.GetBlock(i)
		if err != nil {
			s.evHandler("state: RetrieveBlocks: ERROR: %s", err)
			return nil
		}
		out = append(out, block)
	}

	return out
}
