package signature_test

import (
	"math/big"
	"testing"

	"github.com/ardanlabs/todochain/foundation/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	from     = "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"
)

// =============================================================================

func Test_Signing(t *testing.T) {
	value := struct {
		Task string
	}{
		Task: "buy milk",
	}

	t.Log("Given the need to sign and verify row transactions.")
	{
		pk, err := crypto.HexToECDSA(pkHexKey)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load a private key: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to load a private key.", success)

		v, r, s, err := signature.Sign(value, pk)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign data: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to sign data.", success)

		if err := signature.VerifySignature(v, r, s); err != nil {
			t.Fatalf("\t%s\tShould be able to verify the signature: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to verify the signature.", success)

		addr, err := signature.FromAddress(value, v, r, s)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to recover the from address: %s", failed, err)
		}

		if addr != from {
			t.Logf("\t\tgot: %s", addr)
			t.Logf("\t\texp: %s", from)
			t.Fatalf("\t%s\tShould get back the right address.", failed)
		}
		t.Logf("\t%s\tShould get back the right address.", success)

		str := signature.SignatureString(v, r, s)
		if len(str) != 2+2*crypto.SignatureLength {
			t.Fatalf("\t%s\tShould get back a 65 byte signature string: %d", failed, len(str))
		}
		t.Logf("\t%s\tShould get back a 65 byte signature string.", success)
	}
}

func Test_TamperedValue(t *testing.T) {
	signed := struct{ Task string }{Task: "buy milk"}
	tampered := struct{ Task string }{Task: "buy beer"}

	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to load a private key: %s", err)
	}

	v, r, s, err := signature.Sign(signed, pk)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	addr, err := signature.FromAddress(tampered, v, r, s)
	if err == nil && addr == from {
		t.Fatalf("Should not recover the signer for a tampered value.")
	}
}

func Test_BadRecoveryID(t *testing.T) {
	v := big.NewInt(27)
	r := big.NewInt(1)
	s := big.NewInt(1)

	if err := signature.VerifySignature(v, r, s); err == nil {
		t.Fatalf("Should reject a recovery id without the rowdb offset.")
	}
}

func Test_Hash(t *testing.T) {
	value := struct {
		Name string
	}{
		Name: "Bill",
	}
	hash := "0x0f6887ac85101d6d6425a617edf35bd721b5f619fb92c36c3d2224e3bdb0ee5a"

	h := signature.Hash(value)
	if h != hash {
		t.Logf("got: %s", h)
		t.Logf("exp: %s", hash)
		t.Fatalf("Should get back the right hash: %s", h[:6])
	}

	h = signature.Hash(value)
	if h != hash {
		t.Logf("got: %s", h)
		t.Logf("exp: %s", hash)
		t.Fatalf("Should get back the same hash twice.")
	}
}
