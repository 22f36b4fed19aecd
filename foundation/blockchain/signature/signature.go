// Package signature provides helper functions for handling the blockchain
// hashing and signature needs.
package signature

import (
	"crypto/ed25519"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Sizes of the key material and signatures accepted by Verify.
const (
	PublicKeySize = ed25519.PublicKeySize
	SignatureSize = ed25519.SignatureSize
)

// MaxDifficulty is the number of hex nibbles in a digest. A difficulty
// above this value can never be solved.
const MaxDifficulty = common.HashLength * 2

// Digest represents the 256 bit output of the blockchain hash function.
type Digest = common.Hash

// ZeroHash represents a hash code of zeros. It is the parent hash of the
// genesis block.
var ZeroHash Digest

// EmptyHash is the hash of the empty byte sequence. It is the merkle root
// of a block with no transactions.
var EmptyHash = Hash()

// =============================================================================

// Hash returns the Keccak-256 digest of the concatenation of the data.
func Hash(data ...[]byte) Digest {
	return crypto.Keccak256Hash(data...)
}

// Sign uses the specified private key to sign the message. Key material is
// owned by the caller, this package never generates it.
func Sign(privateKey ed25519.PrivateKey, message []byte) []byte {
	return ed25519.Sign(privateKey, message)
}

// Verify reports whether sig is a valid signature of message by the public
// key. Any structurally invalid key or signature returns false.
func Verify(publicKey []byte, message []byte, sig []byte) bool {
	if len(publicKey) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}

	return ed25519.Verify(ed25519.PublicKey(publicKey), message, sig)
}

// =============================================================================

// LeadingZeroNibbles returns the number of leading zero hex characters in
// the string form of the digest.
func LeadingZeroNibbles(d Digest) uint {
	var n uint
	for _, b := range d {
		if b == 0 {
			n += 2
			continue
		}
		if b < 0x10 {
			n++
		}
		break
	}

	return n
}

// IsHashSolved checks the hash to make sure it complies with the POW rules.
// We need to match a difficulty number of leading 0's in hex form.
func IsHashSolved(difficulty uint, d Digest) bool {
	if difficulty > MaxDifficulty {
		return false
	}

	return LeadingZeroNibbles(d) >= difficulty
}
