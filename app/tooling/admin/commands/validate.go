package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/iprotocol/blockchain/foundation/blockchain/state"
)

// ErrInvalidChain is returned when the stored chain breaks a chain rule.
var ErrInvalidChain = errors.New("chain is invalid")

// Validate checks the chain stored at the path and reports the first
// height that breaks a rule.
func Validate(w io.Writer, dbPath string) error {
	blocks, err := readChain(dbPath)
	if err != nil {
		return err
	}

	var policy state.DifficultyPolicy
	if len(blocks) > 0 {
		policy = state.ConstantDifficulty(blocks[0].Header.Difficulty)
	}

	if err := state.ValidateChain(blocks, policy, nil); err != nil {
		var chainErr *state.ChainError
		if errors.As(err, &chainErr) {
			fmt.Fprintf(w, "INVALID at height %d: %s\n", chainErr.Height, chainErr.Err)
		}
		return fmt.Errorf("%w: %w", ErrInvalidChain, err)
	}

	fmt.Fprintf(w, "VALID: %d blocks\n", len(blocks))

	return nil
}
