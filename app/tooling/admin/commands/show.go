package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iprotocol/blockchain/foundation/blockchain/database"
)

// Show writes the block at the height as indented json.
func Show(w io.Writer, dbPath string, height uint64) error {
	blocks, err := readChain(dbPath)
	if err != nil {
		return err
	}

	if height >= uint64(len(blocks)) {
		return fmt.Errorf("block %d: %w", height, database.ErrNotFound)
	}

	data, err := json.MarshalIndent(database.NewBlockData(blocks[height]), "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(w, string(data))

	return nil
}

// Status writes a one line summary of every block in the chain.
func Status(w io.Writer, dbPath string) error {
	blocks, err := readChain(dbPath)
	if err != nil {
		return err
	}

	for _, block := range blocks {
		bd := database.NewBlockData(block)
		fmt.Fprintf(w, "Height: %d  Hash: %s  Difficulty: %d  Nonce: %d  Txs: %d  Amount: %d  Fees: %d\n",
			bd.Header.Height, bd.Hash, bd.Header.Difficulty, bd.Header.Nonce, bd.TxCount, bd.TotalAmount, bd.TotalFees)
	}

	fmt.Fprintf(w, "Length: %d\n", len(blocks))

	return nil
}
