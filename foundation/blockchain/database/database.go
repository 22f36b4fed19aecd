// Package database handles all the lower level support for maintaining the
// blockchain in storage and maintaining an in memory view of the chain and
// the accounts that have transacted on it.
package database

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned when a block does not exist at the height.
var ErrNotFound = errors.New("block not found")

// Serializer interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain.
type Serializer interface {
	Write(blockData BlockData) error
	GetBlock(height uint64) (BlockData, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// =============================================================================

// Database manages the ordered set of blocks and the nonce of every account
// that has sent a transaction.
type Database struct {
	mu sync.RWMutex

	blocks   []Block
	accounts map[AccountID]Account

	serializer Serializer
}

// New constructs a new database and reads every block held by the
// serializer. Every block read is validated against its parent, the first
// block against the genesis rules.
func New(serializer Serializer, evHandler func(v string, args ...any)) (*Database, error) {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	db := Database{
		accounts:   make(map[AccountID]Account),
		serializer: serializer,
	}

	iter := db.serializer.ForEach()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		block, err := ToBlock(blockData)
		if err != nil {
			return nil, err
		}

		switch len(db.blocks) {
		case 0:
			err = block.ValidateGenesis(evHandler)
		default:
			err = block.ValidateBlock(db.blocks[len(db.blocks)-1], evHandler)
		}
		if err != nil {
			return nil, fmt.Errorf("stored block %d: %w", blockData.Header.Height, err)
		}

		db.blocks = append(db.blocks, block)
		db.applyNonces(block)
	}

	return &db, nil
}

// Close closes the open blocks database.
func (db *Database) Close() error {
	return db.serializer.Close()
}

// Reset re-initalizes the database back to an empty chain.
func (db *Database) Reset() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.serializer.Reset(); err != nil {
		return err
	}

	db.blocks = nil
	db.accounts = make(map[AccountID]Account)

	return nil
}

// Write persists the block and adds it to the end of the chain. The block
// must already be validated against the latest block.
func (db *Database) Write(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if height := uint64(len(db.blocks)); block.Header.Height != height {
		return fmt.Errorf("block height %d is not the next height %d", block.Header.Height, height)
	}

	if err := db.serializer.Write(NewBlockData(block)); err != nil {
		return err
	}

	db.blocks = append(db.blocks, block)
	db.applyNonces(block)

	return nil
}

// Length returns the number of blocks in the chain.
func (db *Database) Length() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// LatestBlock returns the latest block. The zero block is returned when the
// chain is empty.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if len(db.blocks) == 0 {
		return Block{}
	}

	return db.blocks[len(db.blocks)-1]
}

// GetBlock returns the block at the specified height.
func (db *Database) GetBlock(height uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if height >= uint64(len(db.blocks)) {
		return Block{}, fmt.Errorf("height %d: %w", height, ErrNotFound)
	}

	return db.blocks[height], nil
}

// Blocks returns a copy of the chain in height order.
func (db *Database) Blocks() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	blocks := make([]Block, len(db.blocks))
	copy(blocks, db.blocks)

	return blocks
}

// Account returns the nonce information for the specified account.
func (db *Database) Account(accountID AccountID) (Account, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	account, exists := db.accounts[accountID]
	if !exists {
		return Account{}, errors.New("account does not exist")
	}

	return account, nil
}

// CopyAccounts makes a copy of the current accounts in the database sorted
// by account id.
func (db *Database) CopyAccounts() []Account {
	db.mu.RLock()
	defer db.mu.RUnlock()

	accounts := make([]Account, 0, len(db.accounts))
	for _, account := range db.accounts {
		accounts = append(accounts, account)
	}
	sort.Sort(byAccount(accounts))

	return accounts
}

// applyNonces records the highest nonce seen for every sender in the block.
// The caller must hold the write lock.
func (db *Database) applyNonces(block Block) {
	for _, tx := range block.Transactions() {
		fromID := tx.FromAccount()

		account, exists := db.accounts[fromID]
		if !exists {
			account = Account{AccountID: fromID}
		}

		if tx.Nonce > account.Nonce {
			account.Nonce = tx.Nonce
		}

		db.accounts[fromID] = account
	}
}
