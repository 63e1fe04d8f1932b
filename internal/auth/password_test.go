package auth

import (
	"strings"
	"testing"
)

func TestHashPassword_Format(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=1$") {
		t.Errorf("hash = %q, want PHC argon2id prefix", hash)
	}
	if strings.Count(hash, "$") != 5 {
		t.Errorf("hash = %q, want 5 segments", hash)
	}
}

func TestHashPassword_Salted(t *testing.T) {
	a, _ := HashPassword("same") //nolint:errcheck // checked below via inequality
	b, _ := HashPassword("same") //nolint:errcheck // checked below via inequality
	if a == b {
		t.Error("two hashes of the same password should differ")
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("p1")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	ok, err := VerifyPassword("p1", hash)
	if err != nil || !ok {
		t.Errorf("VerifyPassword(correct) = %v, %v; want true, nil", ok, err)
	}

	ok, err = VerifyPassword("p2", hash)
	if err != nil || ok {
		t.Errorf("VerifyPassword(wrong) = %v, %v; want false, nil", ok, err)
	}
}

func TestVerifyPassword_Malformed(t *testing.T) {
	tests := []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=65536,t=3,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=3,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=65536,t=3,p=1$!!!$a2V5",
	}
	for _, encoded := range tests {
		if ok, err := VerifyPassword("p1", encoded); err == nil || ok {
			t.Errorf("VerifyPassword(%q) = %v, %v; want false, error", encoded, ok, err)
		}
	}
}
