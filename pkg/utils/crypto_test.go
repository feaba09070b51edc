package utils

import "testing"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	ciphertext, err := Encrypt([]byte("access-token-value"), key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if ciphertext == "access-token-value" {
		t.Fatal("ciphertext equals plaintext")
	}

	plaintext, err := Decrypt(ciphertext, key)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plaintext != "access-token-value" {
		t.Fatalf("round trip = %q", plaintext)
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	otherKey := []byte("fedcba9876543210fedcba9876543210")

	ciphertext, err := Encrypt([]byte("secret"), key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := Decrypt(ciphertext, otherKey); err == nil {
		t.Fatal("decrypt succeeded with wrong key")
	}
}

func TestDecryptRejectsShortCiphertext(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	if _, err := Decrypt("YWJj", key); err == nil {
		t.Fatal("decrypt accepted truncated data")
	}
}
