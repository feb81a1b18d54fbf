package crypto

import (
	"encoding/base64"
	"strings"
	"testing"
)

func testKeyring(t *testing.T) *Keyring {
	t.Helper()
	k1 := base64.StdEncoding.EncodeToString(make([]byte, 32))
	k2 := base64.RawStdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	kr, err := NewKeyring("v1:"+k1+", v2:"+k2, "v2")
	if err != nil {
		t.Fatalf("NewKeyring: %v", err)
	}
	return kr
}

func TestSealOpen(t *testing.T) {
	kr := testKeyring(t)
	plain := []byte("dado sensível")
	s, err := kr.Seal(plain)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if len(s.Ciphertext) == 0 || len(s.Nonce) == 0 || s.KeyVersion != "v2" {
		t.Fatalf("unexpected sealed value: %+v", s)
	}
	dec, err := kr.Open(s)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(dec) != string(plain) {
		t.Fatalf("decrypted %q != plain %q", dec, plain)
	}
}

func TestOpenOldKeyVersion(t *testing.T) {
	old, err := NewKeyring("v1:"+strings.Repeat("A", 43), "v1")
	if err != nil {
		t.Fatalf("NewKeyring v1: %v", err)
	}
	s, err := old.Seal([]byte("legado"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	rotated := testKeyring(t)
	got := rotated.OpenString(s.Ciphertext, s.Nonce, &s.KeyVersion)
	if got == nil || *got != "legado" {
		t.Fatalf("rotated keyring must read v1 data, got %v", got)
	}
}

func TestOpenStringMissingValues(t *testing.T) {
	kr := testKeyring(t)
	if kr.OpenString(nil, nil, nil) != nil {
		t.Fatal("nil values must return nil")
	}
	bad := "v9"
	if kr.OpenString([]byte{1}, []byte{2}, &bad) != nil {
		t.Fatal("unknown key version must return nil")
	}
}

func TestNewKeyringUnknownCurrent(t *testing.T) {
	if _, err := NewKeyring("v1:"+strings.Repeat("A", 43), "v2"); err == nil {
		t.Fatal("expected error for unknown current version")
	}
}

func TestParseKeysEnv(t *testing.T) {
	key := strings.Repeat("A", 43)
	m, err := ParseKeysEnv("v1:" + key)
	if err != nil {
		t.Fatalf("ParseKeysEnv: %v", err)
	}
	if len(m["v1"]) != 32 {
		t.Fatalf("key length: %d", len(m["v1"]))
	}
	// 44 chars com "=" também deve funcionar
	mPad, err := ParseKeysEnv("v1:" + key + "=")
	if err != nil || len(mPad["v1"]) != 32 {
		t.Fatalf("ParseKeysEnv padded: %v len=%d", err, len(mPad["v1"]))
	}
	if _, err := ParseKeysEnv("v1:QUJD"); err == nil {
		t.Fatal("short key must fail")
	}
	empty, err := ParseKeysEnv("")
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty env: %v %v", empty, err)
	}
}
