package database

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/iprotocol/blockchain/foundation/blockchain/signature"
)

// UnitsPerToken is the number of base units that make up one token.
const UnitsPerToken uint64 = 1_000_000_000

// TransactionFee is the fixed fee paid by every transaction, 0.001 tokens.
const TransactionFee uint64 = 1_000_000

// Set of errors returned by Tx.Validate.
var (
	ErrTxIDMismatch     = errors.New("transaction id does not match its contents")
	ErrTxFee            = errors.New("transaction fee is not the fixed fee")
	ErrTxMissingSig     = errors.New("transaction is not signed")
	ErrTxInvalidSig     = errors.New("transaction signature is invalid")
	ErrTxInvalidFromKey = errors.New("transaction from key is not a public key")
)

// =============================================================================

// Tx is the transactional information between two parties. The ID is derived
// from every field except the signature and the signature covers the same
// bytes the ID is derived from.
type Tx struct {
	ID        signature.Digest `json:"id"`        // Hash of the signing bytes.
	From      hexutil.Bytes    `json:"from"`      // Public key of the sender.
	To        AccountID        `json:"to"`        // Account receiving the value.
	Amount    uint64           `json:"amount"`    // Value in base units.
	Fee       uint64           `json:"fee"`       // Always TransactionFee.
	Nonce     uint64           `json:"nonce"`     // Per sender counter used for replay protection.
	TimeStamp uint64           `json:"timestamp"` // Creation time in unix seconds.
	Signature hexutil.Bytes    `json:"signature"` // Ed25519 signature of the signing bytes.
}

// NewTx constructs a new unsigned transaction with its id derived.
func NewTx(from ed25519.PublicKey, to AccountID, amount uint64, nonce uint64, timeStamp time.Time) Tx {
	tx := Tx{
		From:      hexutil.Bytes(from),
		To:        to,
		Amount:    amount,
		Fee:       TransactionFee,
		Nonce:     nonce,
		TimeStamp: UnixSeconds(timeStamp),
	}
	tx.ID = tx.ComputeID()

	return tx
}

// Sign uses the specified private key to sign the transaction. The private
// key must belong to the from public key.
func (tx Tx) Sign(privateKey ed25519.PrivateKey) (Tx, error) {
	pub, ok := privateKey.Public().(ed25519.PublicKey)
	if !ok || !pub.Equal(ed25519.PublicKey(tx.From)) {
		return Tx{}, errors.New("private key does not match the from account")
	}

	tx.ID = tx.ComputeID()
	tx.Signature = signature.Sign(privateKey, tx.SigningBytes())

	return tx, nil
}

// UnixSeconds converts the time to the unsigned seconds carried by
// transactions and headers. Times before the unix epoch become 0.
func UnixSeconds(t time.Time) uint64 {
	secs := t.UTC().Unix()
	if secs < 0 {
		return 0
	}
	return uint64(secs)
}

// SigningBytes returns the canonical encoding of every field except the id
// and the signature. Variable length fields are length prefixed and numbers
// are big endian so the encoding is unambiguous.
func (tx Tx) SigningBytes() []byte {
	b := make([]byte, 0, 8+len(tx.From)+8+len(tx.To)+32)
	b = binary.BigEndian.AppendUint64(b, uint64(len(tx.From)))
	b = append(b, tx.From...)
	b = binary.BigEndian.AppendUint64(b, uint64(len(tx.To)))
	b = append(b, tx.To...)
	b = binary.BigEndian.AppendUint64(b, tx.Amount)
	b = binary.BigEndian.AppendUint64(b, tx.Fee)
	b = binary.BigEndian.AppendUint64(b, tx.Nonce)
	b = binary.BigEndian.AppendUint64(b, tx.TimeStamp)

	return b
}

// ComputeID derives the transaction id from the signing bytes.
func (tx Tx) ComputeID() signature.Digest {
	return signature.Hash(tx.SigningBytes())
}

// VerifySignature reports whether the signature was produced by the from key
// over the signing bytes. A missing or forged signature returns false.
func (tx Tx) VerifySignature() bool {
	return signature.Verify(tx.From, tx.SigningBytes(), tx.Signature)
}

// Validate verifies the transaction is structurally sound. The stored id
// must match the contents, the fee must be the fixed fee and the signature
// must verify against the from key.
func (tx Tx) Validate() error {
	if tx.ID != tx.ComputeID() {
		return ErrTxIDMismatch
	}

	if tx.Fee != TransactionFee {
		return fmt.Errorf("%w: got %d, exp %d", ErrTxFee, tx.Fee, TransactionFee)
	}

	if len(tx.From) != signature.PublicKeySize {
		return ErrTxInvalidFromKey
	}

	if len(tx.Signature) == 0 {
		return ErrTxMissingSig
	}

	if !tx.VerifySignature() {
		return ErrTxInvalidSig
	}

	return nil
}

// FromAccount returns the account id of the sender.
func (tx Tx) FromAccount() AccountID {
	return AccountID(hexutil.Encode(tx.From))
}

// Hash implements the merkle Hashable interface. The leaf of a transaction
// is its id.
func (tx Tx) Hash() ([]byte, error) {
	return tx.ID.Bytes(), nil
}

// Equals implements the merkle Hashable interface. Transactions with the
// same id are the same transaction.
func (tx Tx) Equals(otherTx Tx) bool {
	return tx.ID == otherTx.ID
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	from := string(tx.FromAccount())
	if len(from) > 10 {
		from = from[:10]
	}

	return fmt.Sprintf("%s:%d", from, tx.Nonce)
}
