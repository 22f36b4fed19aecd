// Package commands contains the functionality for the set of commands
// currently supported by the admin tool.
package commands

import (
	"fmt"
	"os"

	"github.com/iprotocol/blockchain/foundation/blockchain/database"
	"github.com/iprotocol/blockchain/foundation/blockchain/storage/disk"
)

// readChain reads every block stored at the path without validating them so
// a broken chain can still be reported on.
func readChain(dbPath string) ([]database.Block, error) {

	// Opening the storage creates the directory, a read must not.
	if _, err := os.Stat(dbPath); err != nil {
		return nil, err
	}

	dsk, err := disk.New(dbPath)
	if err != nil {
		return nil, err
	}
	defer dsk.Close()

	var blocks []database.Block

	iter := dsk.ForEach()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		block, err := database.ToBlock(blockData)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", blockData.Header.Height, err)
		}

		blocks = append(blocks, block)
	}

	return blocks, nil
}
