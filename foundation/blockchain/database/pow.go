package database

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/iprotocol/blockchain/foundation/blockchain/signature"
)

// progressInterval is how many attempts are made between progress events.
const progressInterval = 1_000_000

// Set of errors returned by the proof of work search.
var (
	ErrNoSolution      = errors.New("no solution found within the attempt budget")
	ErrDifficultyRange = fmt.Errorf("difficulty must be between 0 and %d", signature.MaxDifficulty)
)

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	Height      uint64
	ParentHash  signature.Digest
	Difficulty  uint
	Trans       []Tx
	TimeStamp   uint64           // Zero means the current time.
	StartNonce  uint64           // Nonce the search begins with.
	MaxAttempts uint64           // Zero means the search is unbounded.
	Now         func() time.Time // Clock used for timestamps, nil means time.Now.
	EvHandler   func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle. The search only stops without a
// solution when the context is canceled or the attempt budget is used up.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	if args.Difficulty > signature.MaxDifficulty {
		return Block{}, ErrDifficultyRange
	}

	now := args.Now
	if now == nil {
		now = time.Now
	}

	timeStamp := args.TimeStamp
	if timeStamp == 0 {
		timeStamp = UnixSeconds(now())
	}

	header := BlockHeader{
		Height:     args.Height,
		ParentHash: args.ParentHash,
		TimeStamp:  timeStamp,
		Difficulty: args.Difficulty,
		Nonce:      args.StartNonce,
	}

	block, err := NewBlock(header, args.Trans)
	if err != nil {
		return Block{}, err
	}

	cfg := SearchConfig{
		MaxAttempts: args.MaxAttempts,
		Now:         now,
		EvHandler:   args.EvHandler,
	}

	solved, err := Search(ctx, block.Header, cfg)
	if err != nil {
		return Block{}, err
	}

	block.Header = solved
	return block, nil
}

// =============================================================================

// SearchConfig controls the bounds and clock of a nonce search.
type SearchConfig struct {
	MaxAttempts uint64
	Now         func() time.Time
	EvHandler   func(v string, args ...any)
}

// Search mutates the nonce, and the timestamp on nonce overflow, of the
// header until its hash satisfies the header difficulty. Every field other
// than the nonce and timestamp is left as provided.
//
// When the budget is used up, the header reached so far is returned with
// ErrNoSolution so a caller can resume from it.
func Search(ctx context.Context, header BlockHeader, cfg SearchConfig) (BlockHeader, error) {
	if header.Difficulty > signature.MaxDifficulty {
		return header, ErrDifficultyRange
	}

	evHandler := cfg.EvHandler
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	evHandler("database: POW: MINING: started: blk[%d]: difficulty[%d]", header.Height, header.Difficulty)
	defer evHandler("database: POW: MINING: completed: blk[%d]", header.Height)

	var attempts uint64
	for {
		if attempts%progressInterval == 0 {
			if attempts > 0 {
				evHandler("database: POW: MINING: running: blk[%d]: attempts[%d]", header.Height, attempts)
			}

			// Checking the context on every attempt costs more than the hash.
			if err := ctx.Err(); err != nil {
				evHandler("database: POW: MINING: CANCELLED: blk[%d]", header.Height)
				return header, err
			}
		}

		hash := header.Hash()
		if signature.IsHashSolved(header.Difficulty, hash) {
			evHandler("database: POW: MINING: SOLVED: blk[%d]: prevBlk[%s]: newBlk[%s]", header.Height, header.ParentHash, hash)
			return header, nil
		}

		header = advance(header, now, evHandler)

		attempts++
		if cfg.MaxAttempts > 0 && attempts >= cfg.MaxAttempts {
			evHandler("database: POW: MINING: budget used: blk[%d]: attempts[%d]", header.Height, attempts)
			return header, ErrNoSolution
		}
	}
}

// advance moves the header to the next point in the search space. When the
// nonce can't be incremented it is reset to zero and the timestamp is moved
// forward so the hash domain changes.
func advance(header BlockHeader, now func() time.Time, evHandler func(v string, args ...any)) BlockHeader {
	if header.Nonce < math.MaxUint64 {
		header.Nonce++
		return header
	}

	timeStamp := UnixSeconds(now())
	if timeStamp <= header.TimeStamp {
		timeStamp = header.TimeStamp + 1
	}

	evHandler("database: POW: MINING: nonce overflow: blk[%d]: timestamp[%d -> %d]", header.Height, header.TimeStamp, timeStamp)

	header.Nonce = 0
	header.TimeStamp = timeStamp

	return header
}
