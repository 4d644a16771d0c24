package settlement

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// BatchCapacity is the fixed action capacity of a settlement batch. The
// actions root is always folded over exactly this many action slots, with
// empty slots padded by the zero-action hash, so the commitment structure an
// external proof circuit encodes never changes shape.
const BatchCapacity = 50

// fieldPrime is the BN254 scalar field modulus the fold operates over.
var fieldPrime, _ = new(big.Int).SetString("21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)

var (
	foldBeta     = big.NewInt(2)
	foldConstant = big.NewInt(1)
)

// action type tags mixed into each action hash so identical fields under
// different action kinds cannot collide.
var (
	tagSupply   = big.NewInt(1)
	tagRepay    = big.NewInt(2)
	tagBorrow   = big.NewInt(3)
	tagWithdraw = big.NewInt(4)
)

// zeroActionHash pads the unused slots of a batch up to BatchCapacity.
var zeroActionHash = hashPair(big.NewInt(0), big.NewInt(0))

// hashPair is the fold step: t = left + right*beta + c (mod p), then t^5
// (mod p). The quintic map keeps the accumulator non-linear in both inputs.
func hashPair(left, right *big.Int) *big.Int {
	t := new(big.Int).Mul(right, foldBeta)
	t.Add(t, left)
	t.Add(t, foldConstant)
	t.Mod(t, fieldPrime)
	return t.Exp(t, big.NewInt(5), fieldPrime)
}

// fieldElem reduces an arbitrary big-endian byte string into the field.
func fieldElem(b []byte) *big.Int {
	return new(big.Int).Mod(new(big.Int).SetBytes(b), fieldPrime)
}

func addrElem(addr [20]byte) *big.Int {
	return new(big.Int).SetBytes(addr[:])
}

// assetElem maps an asset symbol into the field via its keccak digest.
func assetElem(asset string) *big.Int {
	return fieldElem(ethcrypto.Keccak256([]byte(asset)))
}

func amountElem(amount *big.Int) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mod(amount, fieldPrime)
}

func creditHash(tag *big.Int, depositID [32]byte, user [20]byte, asset string, amount *big.Int) *big.Int {
	h := hashPair(tag, fieldElem(depositID[:]))
	h = hashPair(h, addrElem(user))
	h = hashPair(h, assetElem(asset))
	return hashPair(h, amountElem(amount))
}

func finalizeHash(tag *big.Int, intentID [32]byte, user [20]byte, asset string, amount, fee *big.Int, relayer [20]byte) *big.Int {
	h := hashPair(tag, fieldElem(intentID[:]))
	h = hashPair(h, addrElem(user))
	h = hashPair(h, assetElem(asset))
	h = hashPair(h, amountElem(amount))
	h = hashPair(h, amountElem(fee))
	return hashPair(h, addrElem(relayer))
}

// ComputeActionsRoot derives the deterministic commitment over a batch: fold
// the batch header (id, hub domain, spoke domain, action count), then every
// action hash in fixed list order, then zero-action padding out to
// BatchCapacity. The fold order and padding are load-bearing; an external
// circuit reproduces this exact structure.
func ComputeActionsRoot(batch *Batch) *big.Int {
	acc := hashPair(fieldElem(batch.ID[:]), new(big.Int).SetUint64(batch.HubDomain))
	acc = hashPair(acc, new(big.Int).SetUint64(batch.SpokeDomain))
	acc = hashPair(acc, big.NewInt(int64(batch.ActionCount())))

	slots := 0
	for _, a := range batch.Supplies {
		acc = hashPair(acc, creditHash(tagSupply, a.DepositID, a.User, a.Asset, a.Amount))
		slots++
	}
	for _, a := range batch.Repays {
		acc = hashPair(acc, creditHash(tagRepay, a.DepositID, a.User, a.Asset, a.Amount))
		slots++
	}
	for _, a := range batch.Borrows {
		acc = hashPair(acc, finalizeHash(tagBorrow, a.IntentID, a.User, a.Asset, a.Amount, a.Fee, a.Relayer))
		slots++
	}
	for _, a := range batch.Withdraws {
		acc = hashPair(acc, finalizeHash(tagWithdraw, a.IntentID, a.User, a.Asset, a.Amount, a.Fee, a.Relayer))
		slots++
	}
	for ; slots < BatchCapacity; slots++ {
		acc = hashPair(acc, zeroActionHash)
	}
	return acc
}

// PublicInputs assembles the verifier inputs for a batch, each reduced into
// the field: [batchId, hubDomainId, spokeDomainId, actionsRoot].
func PublicInputs(batch *Batch, actionsRoot *big.Int) []*big.Int {
	return []*big.Int{
		fieldElem(batch.ID[:]),
		new(big.Int).SetUint64(batch.HubDomain),
		new(big.Int).SetUint64(batch.SpokeDomain),
		new(big.Int).Mod(actionsRoot, fieldPrime),
	}
}
