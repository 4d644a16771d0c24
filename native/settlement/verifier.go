package settlement

import (
	"bytes"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// CommitmentVerifier is a deterministic stand-in for the external proof
// backend: the proof is the keccak digest of the padded public inputs. It
// attests commitment consistency only, which matches the guarantee the real
// circuit currently provides, and lets the coordinator run without a proving
// stack in development and tests.
type CommitmentVerifier struct{}

// CommitmentProof derives the proof a CommitmentVerifier accepts for the
// given public inputs.
func CommitmentProof(publicInputs []*big.Int) []byte {
	buf := make([]byte, 0, len(publicInputs)*32)
	for _, input := range publicInputs {
		var word [32]byte
		if input != nil {
			input.FillBytes(word[:])
		}
		buf = append(buf, word[:]...)
	}
	return ethcrypto.Keccak256(buf)
}

func (CommitmentVerifier) VerifyProof(proof []byte, publicInputs []*big.Int) bool {
	return bytes.Equal(proof, CommitmentProof(publicInputs))
}
