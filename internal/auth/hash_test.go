package auth

import (
	"testing"
)

func TestHashPasswordAndCheck(t *testing.T) {
	plain := "SenhaSecreta123!"
	hash, err := HashPassword(plain)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == plain {
		t.Fatal("hash must not equal plaintext")
	}
	if !CheckPassword(hash, plain) {
		t.Fatal("CheckPassword should succeed for correct password")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("CheckPassword should fail for wrong password")
	}
}

func TestCheckPasswordStrength(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"abc12345", true},
		{"Senha2024!", true},
		{"short1", false},
		{"onlyletters", false},
		{"1234567890", false},
		{"", false},
	}
	for _, c := range cases {
		err := CheckPasswordStrength(c.in)
		if (err == nil) != c.want {
			t.Errorf("password=%q wantOk=%v gotErr=%v", c.in, c.want, err)
		}
	}
}
