package keystore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := Encrypt(testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, err := Decrypt(blob, "hunter2")
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("Decrypt = %q, want %q", got, testKeyHex)
	}
}

func TestEncryptAccepts0xPrefix(t *testing.T) {
	blob, err := Encrypt("0x"+testKeyHex, "pw")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := Decrypt(blob, "pw")
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("Decrypt = %q, want %q", got, testKeyHex)
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := Encrypt(testKeyHex, "correct")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(blob, "wrong"); err == nil {
		t.Fatal("Decrypt with wrong password should fail")
	}
}

func TestEncryptRejectsBadKey(t *testing.T) {
	if _, err := Encrypt("not-hex", "pw"); err == nil {
		t.Fatal("Encrypt should reject non-hex input")
	}
	if _, err := Encrypt("abcd", "pw"); err == nil {
		t.Fatal("Encrypt should reject short keys")
	}
	if _, err := Encrypt(testKeyHex, ""); err == nil {
		t.Fatal("Encrypt should reject empty password")
	}
}

func TestLoadKeyPrefersRaw(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex})
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("LoadKey = %q, want %q", got, testKeyHex)
	}
}

func TestLoadKeyFromEncryptedFile(t *testing.T) {
	blob, err := Encrypt(testKeyHex, "pw")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("LoadKey = %q, want %q", got, testKeyHex)
	}
}

func TestLoadKeyNoSource(t *testing.T) {
	_, err := LoadKey(KeyConfig{})
	if err == nil || !strings.Contains(err.Error(), "no private key source") {
		t.Fatalf("LoadKey with empty config: %v", err)
	}
}

func TestLoadECDSA(t *testing.T) {
	pk, err := LoadECDSA(KeyConfig{RawPrivateKey: testKeyHex})
	if err != nil {
		t.Fatalf("LoadECDSA: %v", err)
	}
	if pk == nil || pk.D.Sign() == 0 {
		t.Fatal("LoadECDSA returned an empty key")
	}
}
