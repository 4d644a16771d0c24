package settlement

import (
	"math/big"
	"testing"
)

func sampleBatch() *Batch {
	return &Batch{
		ID:          [32]byte{0xb1},
		HubDomain:   1,
		SpokeDomain: 7,
		Supplies: []SupplyCredit{
			{DepositID: [32]byte{0xd1}, User: [20]byte{0x01}, Asset: "USDX", Amount: big.NewInt(1_000)},
			{DepositID: [32]byte{0xd2}, User: [20]byte{0x02}, Asset: "USDX", Amount: big.NewInt(2_000)},
		},
		Repays: []RepayCredit{
			{DepositID: [32]byte{0xd3}, User: [20]byte{0x01}, Asset: "GOLD", Amount: big.NewInt(300)},
		},
		Borrows: []BorrowFinalize{
			{IntentID: [32]byte{0xa1}, User: [20]byte{0x03}, Asset: "USDX", Amount: big.NewInt(500), Fee: big.NewInt(5), Relayer: [20]byte{0x0a}},
		},
	}
}

func TestComputeActionsRootDeterministic(t *testing.T) {
	a := ComputeActionsRoot(sampleBatch())
	b := ComputeActionsRoot(sampleBatch())
	if a.Cmp(b) != 0 {
		t.Fatalf("same batch produced different roots: %s vs %s", a, b)
	}
	if a.Sign() <= 0 || a.Cmp(fieldPrime) >= 0 {
		t.Fatalf("root outside the field: %s", a)
	}
}

func TestComputeActionsRootOrderSensitive(t *testing.T) {
	base := ComputeActionsRoot(sampleBatch())

	swapped := sampleBatch()
	swapped.Supplies[0], swapped.Supplies[1] = swapped.Supplies[1], swapped.Supplies[0]
	if ComputeActionsRoot(swapped).Cmp(base) == 0 {
		t.Fatal("reordering actions did not change the root")
	}
}

func TestComputeActionsRootBindsEveryField(t *testing.T) {
	base := ComputeActionsRoot(sampleBatch())

	mutations := map[string]func(*Batch){
		"batch id":     func(b *Batch) { b.ID[0] ^= 0xff },
		"hub domain":   func(b *Batch) { b.HubDomain = 2 },
		"spoke domain": func(b *Batch) { b.SpokeDomain = 8 },
		"deposit id":   func(b *Batch) { b.Supplies[0].DepositID[0] ^= 0xff },
		"user":         func(b *Batch) { b.Supplies[0].User[0] ^= 0xff },
		"asset":        func(b *Batch) { b.Supplies[0].Asset = "GOLD" },
		"amount":       func(b *Batch) { b.Supplies[0].Amount = big.NewInt(999) },
		"fee":          func(b *Batch) { b.Borrows[0].Fee = big.NewInt(6) },
		"relayer":      func(b *Batch) { b.Borrows[0].Relayer[0] ^= 0xff },
	}
	for name, mutate := range mutations {
		batch := sampleBatch()
		mutate(batch)
		if ComputeActionsRoot(batch).Cmp(base) == 0 {
			t.Errorf("mutating %s did not change the root", name)
		}
	}
}

func TestComputeActionsRootDistinguishesActionKinds(t *testing.T) {
	supply := &Batch{
		ID: [32]byte{0xb2}, HubDomain: 1, SpokeDomain: 7,
		Supplies: []SupplyCredit{{DepositID: [32]byte{0xd1}, User: [20]byte{0x01}, Asset: "USDX", Amount: big.NewInt(100)}},
	}
	repay := &Batch{
		ID: [32]byte{0xb2}, HubDomain: 1, SpokeDomain: 7,
		Repays: []RepayCredit{{DepositID: [32]byte{0xd1}, User: [20]byte{0x01}, Asset: "USDX", Amount: big.NewInt(100)}},
	}
	if ComputeActionsRoot(supply).Cmp(ComputeActionsRoot(repay)) == 0 {
		t.Fatal("identical fields under different action kinds collided")
	}
}

func TestPublicInputsShape(t *testing.T) {
	batch := sampleBatch()
	root := ComputeActionsRoot(batch)
	inputs := PublicInputs(batch, root)
	if len(inputs) != 4 {
		t.Fatalf("expected 4 public inputs, got %d", len(inputs))
	}
	if inputs[1].Uint64() != batch.HubDomain || inputs[2].Uint64() != batch.SpokeDomain {
		t.Fatal("domain inputs out of order")
	}
	if inputs[3].Cmp(root) != 0 {
		t.Fatal("root input not reduced copy of root")
	}
	for i, in := range inputs {
		if in.Sign() < 0 || in.Cmp(fieldPrime) >= 0 {
			t.Fatalf("input %d outside the field: %s", i, in)
		}
	}
}

func TestCommitmentVerifierRoundTrip(t *testing.T) {
	batch := sampleBatch()
	root := ComputeActionsRoot(batch)
	inputs := PublicInputs(batch, root)

	v := CommitmentVerifier{}
	proof := CommitmentProof(inputs)
	if !v.VerifyProof(proof, inputs) {
		t.Fatal("valid commitment proof rejected")
	}
	proof[0] ^= 0xff
	if v.VerifyProof(proof, inputs) {
		t.Fatal("tampered proof accepted")
	}
	other := PublicInputs(batch, big.NewInt(42))
	if v.VerifyProof(CommitmentProof(inputs), other) {
		t.Fatal("proof accepted for different public inputs")
	}
}
