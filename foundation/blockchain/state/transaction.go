package state

import (
	"errors"
	"fmt"

	"github.com/iprotocol/blockchain/foundation/blockchain/database"
)

// Set of errors returned when a transaction is refused.
var (
	ErrMalformedTx = errors.New("transaction is malformed")
	ErrTxConflict  = errors.New("transaction conflicts with the ledger")
)

// SubmitTransaction accepts a transaction for inclusion in a future block.
// A malformed transaction is refused with ErrMalformedTx. A well formed
// transaction that repeats an id or doesn't move the sender's nonce forward
// is refused with ErrTxConflict.
func (s *State) SubmitTransaction(tx database.Tx) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedTx, err)
	}

	if err := s.addTransaction(tx); err != nil {
		return err
	}

	s.evHandler("viewer: transaction added: tx[%s]: id[%s]", tx, tx.ID)

	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}

	return nil
}

// addTransaction performs the ledger checks and adds the transaction to the
// mempool as one step so concurrent submissions can't both pass the checks.
func (s *State) addTransaction(tx database.Tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mempool.Contains(tx.ID) {
		return fmt.Errorf("%w: transaction %s is already pending", ErrTxConflict, tx.ID)
	}

	fromID := tx.FromAccount()

	if account, err := s.db.Account(fromID); err == nil && tx.Nonce <= account.Nonce {
		return fmt.Errorf("%w: nonce too small, current %d, provided %d", ErrTxConflict, account.Nonce, tx.Nonce)
	}

	if nonce, found := s.mempool.LastNonce(fromID); found && tx.Nonce <= nonce {
		return fmt.Errorf("%w: nonce too small, pending %d, provided %d", ErrTxConflict, nonce, tx.Nonce)
	}

	if _, err := s.mempool.Add(tx); err != nil {
		return fmt.Errorf("%w: %w", ErrTxConflict, err)
	}

	return nil
}
