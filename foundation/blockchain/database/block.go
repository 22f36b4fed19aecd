package database

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/iprotocol/blockchain/foundation/blockchain/merkle"
	"github.com/iprotocol/blockchain/foundation/blockchain/signature"
)

// BlockHeader represents common information required for each block. The
// hash of the header is never stored, it is always recalculated.
type BlockHeader struct {
	Height     uint64           `json:"height"`      // Index of the block in the chain, genesis is 0.
	ParentHash signature.Digest `json:"parent_hash"` // Hash of the previous block header.
	MerkleRoot signature.Digest `json:"merkle_root"` // Root of the merkle tree of transaction ids.
	TimeStamp  uint64           `json:"timestamp"`   // Time the current search for a nonce started.
	Difficulty uint             `json:"difficulty"`  // Number of leading 0 hex nibbles needed to solve the hash.
	Nonce      uint64           `json:"nonce"`       // Value identified to solve the hash solution.
}

// Bytes returns the canonical encoding of the header fields in a fixed
// order with fixed widths.
func (bh BlockHeader) Bytes() []byte {
	b := make([]byte, 0, 8+32+32+8+8+8)
	b = binary.BigEndian.AppendUint64(b, bh.Height)
	b = append(b, bh.ParentHash[:]...)
	b = append(b, bh.MerkleRoot[:]...)
	b = binary.BigEndian.AppendUint64(b, bh.TimeStamp)
	b = binary.BigEndian.AppendUint64(b, uint64(bh.Difficulty))
	b = binary.BigEndian.AppendUint64(b, bh.Nonce)

	return b
}

// Hash returns the unique hash for the header.
func (bh BlockHeader) Hash() signature.Digest {
	return signature.Hash(bh.Bytes())
}

// IsSolved reports whether the header hash satisfies its own difficulty.
func (bh BlockHeader) IsSolved() bool {
	return signature.IsHashSolved(bh.Difficulty, bh.Hash())
}

// =============================================================================

// Block represents a group of transactions batched together. The order of
// the transactions is significant.
type Block struct {
	Header     BlockHeader
	MerkleTree *merkle.Tree[Tx]
}

// NewBlock constructs a block for the transactions and sets the merkle root
// in the header.
func NewBlock(header BlockHeader, trans []Tx) (Block, error) {
	tree, err := merkle.NewTree(trans)
	if err != nil {
		return Block{}, err
	}

	header.MerkleRoot = tree.RootHash()

	b := Block{
		Header:     header,
		MerkleTree: tree,
	}

	return b, nil
}

// Hash returns the unique hash for the Block.
func (b Block) Hash() signature.Digest {

	// Only the header is hashed. The merkle root in the header commits to
	// the transactions so the chain can be checked with headers alone.

	return b.Header.Hash()
}

// Transactions returns the transactions in the block in their committed order.
func (b Block) Transactions() []Tx {
	if b.MerkleTree == nil {
		return nil
	}

	return b.MerkleTree.Values()
}

// ValidateGenesis validates the block can be the first block of a chain.
func (b Block) ValidateGenesis(evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateGenesis: validate: blk[%d]: check: genesis height", b.Header.Height)

	if b.Header.Height != 0 {
		return fmt.Errorf("genesis block height must be 0, got %d", b.Header.Height)
	}

	evHandler("database: ValidateGenesis: validate: blk[%d]: check: genesis parent hash", b.Header.Height)

	if b.Header.ParentHash != signature.ZeroHash {
		return fmt.Errorf("genesis parent hash must be the zero hash, got %s", b.Header.ParentHash)
	}

	evHandler("database: ValidateGenesis: validate: blk[%d]: check: genesis has no transactions", b.Header.Height)

	if n := len(b.Transactions()); n != 0 {
		return fmt.Errorf("genesis block must not hold transactions, got %d", n)
	}

	return b.validateContents(evHandler)
}

// ValidateBlock takes a block and validates it to be the next block after
// the previous block in the chain.
func (b Block) ValidateBlock(previousBlock Block, evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateBlock: validate: blk[%d]: check: block height is the next height", b.Header.Height)

	nextHeight := previousBlock.Header.Height + 1
	if b.Header.Height != nextHeight {
		return fmt.Errorf("this block is not the next height, got %d, exp %d", b.Header.Height, nextHeight)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: parent hash does match parent block", b.Header.Height)

	if parentHash := previousBlock.Hash(); b.Header.ParentHash != parentHash {
		return fmt.Errorf("parent block hash doesn't match our known parent, got %s, exp %s", b.Header.ParentHash, parentHash)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block's timestamp is not before parent block's timestamp", b.Header.Height)

	if b.Header.TimeStamp < previousBlock.Header.TimeStamp {
		return fmt.Errorf("block timestamp is before parent block, parent %d, block %d", previousBlock.Header.TimeStamp, b.Header.TimeStamp)
	}

	return b.validateContents(evHandler)
}

// validateContents performs the checks every block shares. The proof of
// work, the merkle root and every transaction.
func (b Block) validateContents(evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateBlock: validate: blk[%d]: check: block hash has been solved", b.Header.Height)

	if b.Header.Difficulty > signature.MaxDifficulty {
		return fmt.Errorf("block difficulty %d is above the maximum %d", b.Header.Difficulty, signature.MaxDifficulty)
	}

	if hash := b.Hash(); !signature.IsHashSolved(b.Header.Difficulty, hash) {
		return fmt.Errorf("%s invalid block hash for difficulty %d", hash, b.Header.Difficulty)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: merkle root does match transactions", b.Header.Height)

	trans := b.Transactions()
	ids := make([]signature.Digest, len(trans))
	for i, tx := range trans {
		ids[i] = tx.ID
	}

	if root := merkle.Root(ids); b.Header.MerkleRoot != root {
		return fmt.Errorf("merkle root does not match transactions, got %s, exp %s", root, b.Header.MerkleRoot)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: transactions are valid", b.Header.Height)

	for i, tx := range trans {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("transaction %d [%s]: %w", i, tx.ID, err)
		}
	}

	return nil
}

// MarshalJSON implements the json.Marshaler interface by writing the block
// in its BlockData form.
func (b Block) MarshalJSON() ([]byte, error) {
	return json.Marshal(NewBlockData(b))
}

// UnmarshalJSON implements the json.Unmarshaler interface by reading the
// block from its BlockData form.
func (b *Block) UnmarshalJSON(data []byte) error {
	var blockData BlockData
	if err := json.Unmarshal(data, &blockData); err != nil {
		return err
	}

	block, err := ToBlock(blockData)
	if err != nil {
		return err
	}

	*b = block
	return nil
}

// =============================================================================

// BlockData represents what is written to storage and handed to anything
// that wants to display a block. The hash and totals are derived values and
// are ignored when the block is read back.
type BlockData struct {
	Hash        signature.Digest `json:"hash"`
	Header      BlockHeader      `json:"header"`
	TxCount     int              `json:"transaction_count"`
	TotalAmount uint64           `json:"total_amount"`
	TotalFees   uint64           `json:"total_fees"`
	Trans       []Tx             `json:"transactions"`
}

// NewBlockData constructs the value to serialize.
func NewBlockData(block Block) BlockData {
	trans := block.Transactions()
	if trans == nil {
		trans = []Tx{}
	}

	var amount, fees uint64
	for _, tx := range trans {
		amount += tx.Amount
		fees += tx.Fee
	}

	blockData := BlockData{
		Hash:        block.Hash(),
		Header:      block.Header,
		TxCount:     len(trans),
		TotalAmount: amount,
		TotalFees:   fees,
		Trans:       trans,
	}

	return blockData
}

// ToBlock converts a BlockData into a Block. The header is taken as is so
// validation can detect a header that doesn't match the transactions.
func ToBlock(blockData BlockData) (Block, error) {
	tree, err := merkle.NewTree(blockData.Trans)
	if err != nil {
		return Block{}, err
	}

	block := Block{
		Header:     blockData.Header,
		MerkleTree: tree,
	}

	return block, nil
}

// =============================================================================

// ChainData represents an ordered snapshot of a chain for serialization.
type ChainData struct {
	Blocks []BlockData `json:"blocks"`
}

// NewChainData constructs the snapshot value for the blocks.
func NewChainData(blocks []Block) ChainData {
	chainData := ChainData{
		Blocks: make([]BlockData, len(blocks)),
	}

	for i, block := range blocks {
		chainData.Blocks[i] = NewBlockData(block)
	}

	return chainData
}

// ToBlocks converts the snapshot back into blocks preserving the order.
func (cd ChainData) ToBlocks() ([]Block, error) {
	blocks := make([]Block, len(cd.Blocks))
	for i, blockData := range cd.Blocks {
		block, err := ToBlock(blockData)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		blocks[i] = block
	}

	return blocks, nil
}
