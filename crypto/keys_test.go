package crypto

import (
	"bytes"
	"strings"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func TestAddressBech32RoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()

	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(HubPrefix)+"1") {
		t.Fatalf("unexpected encoding %q", encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Prefix() != HubPrefix {
		t.Fatalf("prefix lost: %q", decoded.Prefix())
	}
	if !bytes.Equal(decoded.Bytes(), addr.Bytes()) {
		t.Fatalf("bytes lost: %x vs %x", decoded.Bytes(), addr.Bytes())
	}
	if decoded.Raw() != addr.Raw() {
		t.Fatal("raw representation mismatch")
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-bech32"); err == nil {
		t.Fatal("garbage accepted")
	}
	if _, err := DecodeAddress(""); err == nil {
		t.Fatal("empty string accepted")
	}
}

func TestSignRecoverRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	digest := ethcrypto.Keccak256([]byte("payload"))

	sig, err := key.Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("signature length %d, want 65", len(sig))
	}
	signer, err := RecoverAddress(digest, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if signer != key.PubKey().Address().Raw() {
		t.Fatal("recovered wrong signer")
	}

	other := ethcrypto.Keccak256([]byte("different payload"))
	recovered, err := RecoverAddress(other, sig)
	if err == nil && recovered == key.PubKey().Address().Raw() {
		t.Fatal("signature verified against wrong digest")
	}
}

func TestPrivateKeyBytesRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.PubKey().Address().Raw() != key.PubKey().Address().Raw() {
		t.Fatal("restored key derives a different address")
	}
}
