// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/iprotocol/blockchain/foundation/blockchain/signature"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date       time.Time `json:"date"`       // Timestamp used for the genesis block header.
	Difficulty uint      `json:"difficulty"` // How difficult it needs to be to solve the work problem.
}

// New constructs a genesis value for the difficulty with the current date.
func New(difficulty uint) (Genesis, error) {
	g := Genesis{
		Date:       time.Now().UTC().Truncate(time.Second),
		Difficulty: difficulty,
	}

	if err := g.Validate(); err != nil {
		return Genesis{}, err
	}

	return g, nil
}

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("decode genesis: %w", err)
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// Validate checks the genesis values can produce a solvable genesis block.
func (g Genesis) Validate() error {
	if g.Difficulty > signature.MaxDifficulty {
		return fmt.Errorf("genesis difficulty %d is above the maximum %d", g.Difficulty, signature.MaxDifficulty)
	}

	if g.Date.IsZero() {
		return fmt.Errorf("genesis date is not set")
	}

	if g.Date.Unix() < 0 {
		return fmt.Errorf("genesis date %s is before the unix epoch", g.Date.UTC().Format(time.RFC3339))
	}

	return nil
}

// TimeStamp returns the genesis date in unix seconds.
func (g Genesis) TimeStamp() uint64 {
	secs := g.Date.UTC().Unix()
	if secs < 0 {
		return 0
	}
	return uint64(secs)
}
