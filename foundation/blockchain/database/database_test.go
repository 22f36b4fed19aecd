package database_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/iprotocol/blockchain/foundation/blockchain/database"
	"github.com/iprotocol/blockchain/foundation/blockchain/merkle"
	"github.com/iprotocol/blockchain/foundation/blockchain/signature"
	"github.com/iprotocol/blockchain/foundation/blockchain/storage/memory"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_TransactionID(t *testing.T) {
	t.Log("Given the need to derive a stable transaction id.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen handling a signed transaction.", testID)
		{
			tx := signedTx(t, 1, 1, 100)

			if tx.ID != tx.ComputeID() {
				t.Fatalf("\t%s\tTest %d:\tShould have an id that matches its contents.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have an id that matches its contents.", success, testID)

			if tx.ComputeID() != tx.ComputeID() {
				t.Fatalf("\t%s\tTest %d:\tShould compute the same id on every call.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould compute the same id on every call.", success, testID)

			data, err := json.Marshal(tx)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to marshal the transaction: %v", failed, testID, err)
			}

			var got database.Tx
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to unmarshal the transaction: %v", failed, testID, err)
			}

			if got.ComputeID() != tx.ID {
				t.Fatalf("\t%s\tTest %d:\tShould compute the same id after a round trip.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould compute the same id after a round trip.", success, testID)

			if err := got.Validate(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be valid after a round trip: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be valid after a round trip.", success, testID)

			changed := tx
			changed.Amount++
			if changed.ComputeID() == tx.ID {
				t.Fatalf("\t%s\tTest %d:\tShould compute a different id when a field changes.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould compute a different id when a field changes.", success, testID)
		}
	}
}

func Test_PreEpochTime(t *testing.T) {
	t.Log("Given the need to carry times as unsigned seconds.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the time is before the unix epoch.", testID)
		{
			before := time.Date(1960, time.January, 1, 0, 0, 0, 0, time.UTC)

			if got := database.UnixSeconds(before); got != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould clamp to zero, got %d.", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould clamp to zero.", success, testID)

			priv := key(1)
			tx := database.NewTx(priv.Public().(ed25519.PublicKey), account(2), 1, 1, before)
			if tx.TimeStamp != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould not wrap the transaction time, got %d.", failed, testID, tx.TimeStamp)
			}
			t.Logf("\t%s\tTest %d:\tShould not wrap the transaction time.", success, testID)

			clock := func() time.Time { return before }
			block, err := database.POW(context.Background(), database.POWArgs{Difficulty: 1, Now: clock})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine: %v", failed, testID, err)
			}
			if block.Header.TimeStamp > 1 {
				t.Fatalf("\t%s\tTest %d:\tShould not wrap the header time, got %d.", failed, testID, block.Header.TimeStamp)
			}
			t.Logf("\t%s\tTest %d:\tShould not wrap the header time.", success, testID)
		}
	}
}

func Test_TransactionValidate(t *testing.T) {
	type table struct {
		name   string
		mutate func(tx database.Tx) database.Tx
		err    error
	}

	tt := []table{
		{
			name:   "valid",
			mutate: func(tx database.Tx) database.Tx { return tx },
		},
		{
			name: "amount-changed",
			mutate: func(tx database.Tx) database.Tx {
				tx.Amount++
				return tx
			},
			err: database.ErrTxIDMismatch,
		},
		{
			name: "amount-changed-id-recomputed",
			mutate: func(tx database.Tx) database.Tx {
				tx.Amount++
				tx.ID = tx.ComputeID()
				return tx
			},
			err: database.ErrTxInvalidSig,
		},
		{
			name: "wrong-fee",
			mutate: func(tx database.Tx) database.Tx {
				tx.Fee = 0
				tx.ID = tx.ComputeID()
				return tx
			},
			err: database.ErrTxFee,
		},
		{
			name: "missing-signature",
			mutate: func(tx database.Tx) database.Tx {
				tx.Signature = nil
				return tx
			},
			err: database.ErrTxMissingSig,
		},
		{
			name: "short-signature",
			mutate: func(tx database.Tx) database.Tx {
				tx.Signature = tx.Signature[:10]
				return tx
			},
			err: database.ErrTxInvalidSig,
		},
		{
			name: "short-from",
			mutate: func(tx database.Tx) database.Tx {
				tx.From = tx.From[:16]
				tx.ID = tx.ComputeID()
				return tx
			},
			err: database.ErrTxInvalidFromKey,
		},
	}

	t.Log("Given the need to reject malformed transactions.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a %s transaction.", testID, tst.name)
			{
				f := func(t *testing.T) {
					tx := tst.mutate(signedTx(t, 1, 1, 100))

					err := tx.Validate()
					if !errors.Is(err, tst.err) {
						t.Fatalf("\t%s\tTest %d:\tShould get the expected error, got %v, exp %v", failed, testID, err, tst.err)
					}
					t.Logf("\t%s\tTest %d:\tShould get the expected error.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_SignWrongKey(t *testing.T) {
	t.Log("Given the need to only sign with the sender's key.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen signing with a different key.", testID)
		{
			tx := database.NewTx(key(1).Public().(ed25519.PublicKey), account(2), 1, 1, time.Unix(1_700_000_000, 0))

			if _, err := tx.Sign(key(3)); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould not be able to sign.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not be able to sign.", success, testID)
		}
	}
}

func Test_POW(t *testing.T) {
	t.Log("Given the need to mine a block.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen mining with difficulty 2.", testID)
		{
			trans := []database.Tx{signedTx(t, 1, 1, 10), signedTx(t, 1, 2, 20), signedTx(t, 2, 1, 30)}

			args := database.POWArgs{
				Height:     1,
				ParentHash: signature.Hash([]byte("parent")),
				Difficulty: 2,
				Trans:      trans,
				TimeStamp:  1_700_000_000,
				EvHandler:  func(v string, args ...any) {},
			}

			block, err := database.POW(context.Background(), args)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to mine a block.", success, testID)

			if n := signature.LeadingZeroNibbles(block.Hash()); n < 2 {
				t.Fatalf("\t%s\tTest %d:\tShould have at least 2 leading zero nibbles, got %d.", failed, testID, n)
			}
			t.Logf("\t%s\tTest %d:\tShould have at least 2 leading zero nibbles.", success, testID)

			ids := []signature.Digest{trans[0].ID, trans[1].ID, trans[2].ID}
			if block.Header.MerkleRoot != merkle.Root(ids) {
				t.Fatalf("\t%s\tTest %d:\tShould have the merkle root of the transactions.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have the merkle root of the transactions.", success, testID)

			got := block.Transactions()
			for i := range trans {
				if got[i].ID != trans[i].ID {
					t.Fatalf("\t%s\tTest %d:\tShould preserve the transaction order.", failed, testID)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould preserve the transaction order.", success, testID)

			if !block.Header.IsSolved() {
				t.Fatalf("\t%s\tTest %d:\tShould accept the header when checked again.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould accept the header when checked again.", success, testID)
		}
	}
}

func Test_HeaderFieldSensitivity(t *testing.T) {
	block := mine(t, database.POWArgs{Height: 0, Difficulty: 4, TimeStamp: 1_700_000_000})

	type table struct {
		name   string
		mutate func(h *database.BlockHeader)
	}

	tt := []table{
		{"height", func(h *database.BlockHeader) { h.Height++ }},
		{"parent", func(h *database.BlockHeader) { h.ParentHash[31] ^= 0x01 }},
		{"merkle", func(h *database.BlockHeader) { h.MerkleRoot[0] ^= 0x80 }},
		{"timestamp", func(h *database.BlockHeader) { h.TimeStamp++ }},
		{"difficulty", func(h *database.BlockHeader) { h.Difficulty++ }},
		{"nonce", func(h *database.BlockHeader) { h.Nonce++ }},
	}

	t.Log("Given the need to detect a changed header field.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen changing the %s field.", testID, tst.name)
			{
				f := func(t *testing.T) {
					header := block.Header
					tst.mutate(&header)

					if header.Hash() == block.Hash() {
						t.Fatalf("\t%s\tTest %d:\tShould change the header hash.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould change the header hash.", success, testID)

					changed := block
					changed.Header = header
					if err := changed.ValidateGenesis(noop); err == nil {
						t.Fatalf("\t%s\tTest %d:\tShould fail validation.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould fail validation.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_NonceOverflow(t *testing.T) {
	t.Log("Given the need to keep searching when the nonce space is used up.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the search starts at the last nonce.", testID)
		{
			const start = 1_700_000_000
			clock := func() time.Time { return time.Unix(start+60, 0) }

			header := database.BlockHeader{
				Height:     1,
				TimeStamp:  start,
				Difficulty: signature.MaxDifficulty,
				Nonce:      math.MaxUint64 - 1,
			}

			var overflow bool
			ev := func(v string, args ...any) {
				if bytes.Contains([]byte(v), []byte("nonce overflow")) {
					overflow = true
				}
			}

			cfg := database.SearchConfig{MaxAttempts: 3, Now: clock, EvHandler: ev}
			got, err := database.Search(context.Background(), header, cfg)
			if !errors.Is(err, database.ErrNoSolution) {
				t.Fatalf("\t%s\tTest %d:\tShould stop on the attempt budget: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould stop on the attempt budget.", success, testID)

			if got.Nonce != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould reset the nonce and continue, got %d.", failed, testID, got.Nonce)
			}
			t.Logf("\t%s\tTest %d:\tShould reset the nonce and continue.", success, testID)

			if got.TimeStamp != start+60 {
				t.Fatalf("\t%s\tTest %d:\tShould advance the timestamp to now, got %d.", failed, testID, got.TimeStamp)
			}
			t.Logf("\t%s\tTest %d:\tShould advance the timestamp to now.", success, testID)

			if !overflow {
				t.Fatalf("\t%s\tTest %d:\tShould report the overflow.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould report the overflow.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the clock has not moved past the header time.", testID)
		{
			const start = 1_700_000_000
			clock := func() time.Time { return time.Unix(start, 0) }

			header := database.BlockHeader{
				TimeStamp:  start,
				Difficulty: signature.MaxDifficulty,
				Nonce:      math.MaxUint64,
			}

			cfg := database.SearchConfig{MaxAttempts: 1, Now: clock}
			got, err := database.Search(context.Background(), header, cfg)
			if !errors.Is(err, database.ErrNoSolution) {
				t.Fatalf("\t%s\tTest %d:\tShould stop on the attempt budget: %v", failed, testID, err)
			}

			if got.Nonce != 0 || got.TimeStamp != start+1 {
				t.Fatalf("\t%s\tTest %d:\tShould still change the timestamp, got nonce %d ts %d.", failed, testID, got.Nonce, got.TimeStamp)
			}
			t.Logf("\t%s\tTest %d:\tShould still change the timestamp.", success, testID)
		}
	}
}

func Test_SearchCancel(t *testing.T) {
	t.Log("Given the need to abort a search.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the context is already canceled.", testID)
		{
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			header := database.BlockHeader{Difficulty: signature.MaxDifficulty}
			if _, err := database.Search(ctx, header, database.SearchConfig{}); !errors.Is(err, context.Canceled) {
				t.Fatalf("\t%s\tTest %d:\tShould return the context error: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould return the context error.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the difficulty is out of range.", testID)
		{
			args := database.POWArgs{Difficulty: signature.MaxDifficulty + 1}
			if _, err := database.POW(context.Background(), args); !errors.Is(err, database.ErrDifficultyRange) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the difficulty: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the difficulty.", success, testID)
		}
	}
}

func Test_ValidateBlock(t *testing.T) {
	genesis := mine(t, database.POWArgs{Height: 0, Difficulty: 1, TimeStamp: 1_700_000_000})

	next := func(mutate func(args *database.POWArgs)) database.Block {
		args := database.POWArgs{
			Height:     1,
			ParentHash: genesis.Hash(),
			Difficulty: 1,
			Trans:      []database.Tx{signedTx(t, 1, 1, 10)},
			TimeStamp:  1_700_000_100,
		}
		mutate(&args)
		return mine(t, args)
	}

	type table struct {
		name  string
		block database.Block
		valid bool
	}

	tampered := next(func(args *database.POWArgs) {})
	trans := tampered.Transactions()
	trans[0].Amount = 1_000
	tree, err := merkle.NewTree(trans)
	if err != nil {
		t.Fatalf("Should be able to build a tree: %v", err)
	}
	tampered.MerkleTree = tree

	tt := []table{
		{"valid", next(func(args *database.POWArgs) {}), true},
		{"wrong-height", next(func(args *database.POWArgs) { args.Height = 2 }), false},
		{"wrong-parent", next(func(args *database.POWArgs) { args.ParentHash = signature.ZeroHash }), false},
		{"older-timestamp", next(func(args *database.POWArgs) { args.TimeStamp = 1_600_000_000 }), false},
		{"tampered-transaction", tampered, false},
	}

	t.Log("Given the need to validate a block against its parent.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a %s block.", testID, tst.name)
			{
				f := func(t *testing.T) {
					err := tst.block.ValidateBlock(genesis, noop)
					switch tst.valid {
					case true:
						if err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould be valid: %v", failed, testID, err)
						}
						t.Logf("\t%s\tTest %d:\tShould be valid.", success, testID)

					default:
						if err == nil {
							t.Fatalf("\t%s\tTest %d:\tShould be invalid.", failed, testID)
						}
						t.Logf("\t%s\tTest %d:\tShould be invalid: %v", success, testID, err)
					}
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_BlockDataRoundTrip(t *testing.T) {
	t.Log("Given the need to round trip a block through its text form.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen handling a block with transactions.", testID)
		{
			trans := []database.Tx{signedTx(t, 1, 1, 10), signedTx(t, 2, 1, 25)}
			block := mine(t, database.POWArgs{Height: 1, Difficulty: 1, Trans: trans, TimeStamp: 1_700_000_000})

			data, err := json.Marshal(block)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to marshal the block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to marshal the block.", success, testID)

			var blockData database.BlockData
			if err := json.Unmarshal(data, &blockData); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to unmarshal the block data: %v", failed, testID, err)
			}

			if blockData.Hash != block.Hash() || blockData.TxCount != 2 || blockData.TotalAmount != 35 || blockData.TotalFees != 2*database.TransactionFee {
				t.Fatalf("\t%s\tTest %d:\tShould carry the derived block stats: %+v", failed, testID, blockData)
			}
			t.Logf("\t%s\tTest %d:\tShould carry the derived block stats.", success, testID)

			var got database.Block
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to unmarshal the block: %v", failed, testID, err)
			}

			if got.Hash() != block.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould have the same hash.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have the same hash.", success, testID)

			gotTrans := got.Transactions()
			if len(gotTrans) != 2 || gotTrans[0].ID != trans[0].ID || gotTrans[1].ID != trans[1].ID {
				t.Fatalf("\t%s\tTest %d:\tShould preserve the transaction order.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould preserve the transaction order.", success, testID)
		}
	}
}

func Test_DatabaseReload(t *testing.T) {
	t.Log("Given the need to reload a chain from storage.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen storage holds a valid chain.", testID)
		{
			store := memory.New()

			db, err := database.New(store, noop)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open an empty database: %v", failed, testID, err)
			}

			genesis := mine(t, database.POWArgs{Height: 0, Difficulty: 1, TimeStamp: 1_700_000_000})
			if err := db.Write(genesis); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to write genesis: %v", failed, testID, err)
			}

			block := mine(t, database.POWArgs{
				Height:     1,
				ParentHash: genesis.Hash(),
				Difficulty: 1,
				Trans:      []database.Tx{signedTx(t, 1, 7, 10)},
				TimeStamp:  1_700_000_100,
			})
			if err := db.Write(block); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to write block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to write blocks.", success, testID)

			if err := db.Write(block); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould not be able to write a block twice.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not be able to write a block twice.", success, testID)

			reloaded, err := database.New(store, noop)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to reload the chain: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to reload the chain.", success, testID)

			if reloaded.Length() != 2 || reloaded.LatestBlock().Hash() != block.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould have the same chain.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have the same chain.", success, testID)

			account, err := reloaded.Account(database.PublicKeyToAccountID(key(1).Public().(ed25519.PublicKey)))
			if err != nil || account.Nonce != 7 {
				t.Fatalf("\t%s\tTest %d:\tShould replay the sender nonce: %v %+v", failed, testID, err, account)
			}
			t.Logf("\t%s\tTest %d:\tShould replay the sender nonce.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen storage holds a tampered chain.", testID)
		{
			store := memory.New()

			genesis := mine(t, database.POWArgs{Height: 0, Difficulty: 1, TimeStamp: 1_700_000_000})
			blockData := database.NewBlockData(genesis)
			blockData.Header.Nonce++
			for signature.IsHashSolved(1, blockData.Header.Hash()) {
				blockData.Header.Nonce++
			}

			if err := store.Write(blockData); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to write to storage: %v", failed, testID, err)
			}

			if _, err := database.New(store, noop); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould refuse to load the chain.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse to load the chain.", success, testID)
		}
	}
}

// =============================================================================

func noop(v string, args ...any) {}

func key(seed byte) ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
}

func account(seed byte) database.AccountID {
	return database.PublicKeyToAccountID(key(seed).Public().(ed25519.PublicKey))
}

func signedTx(t *testing.T, from byte, nonce uint64, amount uint64) database.Tx {
	t.Helper()

	priv := key(from)
	tx := database.NewTx(priv.Public().(ed25519.PublicKey), account(from+100), amount, nonce, time.Unix(1_700_000_000, 0))

	signed, err := tx.Sign(priv)
	if err != nil {
		t.Fatalf("Should be able to sign transaction: %v", err)
	}

	return signed
}

func mine(t *testing.T, args database.POWArgs) database.Block {
	t.Helper()

	block, err := database.POW(context.Background(), args)
	if err != nil {
		t.Fatalf("Should be able to mine block: %v", err)
	}

	return block
}
