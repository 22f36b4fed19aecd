package state

import (
	"errors"
	"fmt"

	"github.com/iprotocol/blockchain/foundation/blockchain/database"
)

// ChainError reports the first block found to break the chain rules.
type ChainError struct {
	Height uint64
	Err    error
}

// Error implements the error interface.
func (ce *ChainError) Error() string {
	return fmt.Sprintf("block %d: %s", ce.Height, ce.Err)
}

// Unwrap returns the rule that was broken.
func (ce *ChainError) Unwrap() error {
	return ce.Err
}

// =============================================================================

// ValidateChain checks every block in height order from genesis to tip and
// stops at the first violation. The difficulty of every block after genesis
// is checked against the policy when one is provided.
func ValidateChain(blocks []database.Block, policy DifficultyPolicy, evHandler func(v string, args ...any)) error {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	if len(blocks) == 0 {
		return &ChainError{Height: 0, Err: errors.New("chain has no genesis block")}
	}

	nonces := make(map[database.AccountID]uint64)

	for i, block := range blocks {
		var err error
		switch i {
		case 0:
			err = block.ValidateGenesis(evHandler)
		default:
			err = block.ValidateBlock(blocks[i-1], evHandler)
		}
		if err != nil {
			return &ChainError{Height: uint64(i), Err: err}
		}

		if i > 0 && policy != nil {
			if exp := policy(blocks[:i]); block.Header.Difficulty != exp {
				return &ChainError{Height: uint64(i), Err: fmt.Errorf("difficulty %d does not match the required %d", block.Header.Difficulty, exp)}
			}
		}

		for _, tx := range block.Transactions() {
			fromID := tx.FromAccount()
			if last, exists := nonces[fromID]; exists && tx.Nonce <= last {
				return &ChainError{Height: uint64(i), Err: fmt.Errorf("transaction %s replays nonce %d, last %d", tx.ID, tx.Nonce, last)}
			}
			nonces[fromID] = tx.Nonce
		}
	}

	return nil
}

// LoadSnapshot converts a chain snapshot back into blocks and validates
// them as a chain.
func LoadSnapshot(chainData database.ChainData, policy DifficultyPolicy, evHandler func(v string, args ...any)) ([]database.Block, error) {
	blocks, err := chainData.ToBlocks()
	if err != nil {
		return nil, err
	}

	if err := ValidateChain(blocks, policy, evHandler); err != nil {
		return nil, err
	}

	return blocks, nil
}

// =============================================================================

// Validate checks the entire chain held by the ledger. It is a query and
// emits no trace events, the chain rules are traced when blocks are accepted.
func (s *State) Validate() error {
	return ValidateChain(s.db.Blocks(), s.difficulty, nil)
}

// IsValid reports whether the entire chain held by the ledger is valid.
func (s *State) IsValid() bool {
	return s.Validate() == nil
}
