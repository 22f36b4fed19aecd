package merkle

import (
	"github.com/iprotocol/blockchain/foundation/blockchain/signature"
)

// leaf is a digest that is already hashed and used as is for a leaf.
type leaf signature.Digest

// Hash implements the Hashable interface.
func (l leaf) Hash() ([]byte, error) {
	b := [32]byte(l)
	return b[:], nil
}

// Equals implements the Hashable interface.
func (l leaf) Equals(other leaf) bool {
	return l == other
}

// Root calculates the merkle root for the ordered set of digests. The order
// of the digests is significant. An empty set returns signature.EmptyHash.
func Root(ids []signature.Digest) signature.Digest {
	leafs := make([]leaf, len(ids))
	for i, id := range ids {
		leafs[i] = leaf(id)
	}

	// Leaf hashing and keccak writes can't fail.
	tree, err := NewTree(leafs)
	if err != nil {
		return signature.ZeroHash
	}

	return tree.RootHash()
}
