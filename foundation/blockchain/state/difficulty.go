package state

import "github.com/iprotocol/blockchain/foundation/blockchain/database"

// DifficultyPolicy returns the difficulty the next block mined on top of
// the chain must satisfy. The chain always holds at least the genesis block.
type DifficultyPolicy func(chain []database.Block) uint

// ConstantDifficulty returns a policy that never adjusts the difficulty.
func ConstantDifficulty(difficulty uint) DifficultyPolicy {
	return func(chain []database.Block) uint {
		return difficulty
	}
}

// nextDifficulty applies the policy to the current chain.
func (s *State) nextDifficulty() uint {
	return s.difficulty(s.db.Blocks())
}
