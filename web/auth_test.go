package web

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordMatchesPlaintext(t *testing.T) {
	if !passwordMatches("concrete", "concrete") {
		t.Error("expected plaintext match")
	}
	if passwordMatches("concrete", "cement") {
		t.Error("unexpected plaintext match")
	}
	if passwordMatches("concrete", "") {
		t.Error("unexpected empty match")
	}
}

func TestPasswordMatchesBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("concrete"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if !passwordMatches(string(hash), "concrete") {
		t.Error("expected bcrypt match")
	}
	if passwordMatches(string(hash), "cement") {
		t.Error("unexpected bcrypt match")
	}
	// The hash itself must not pass as the password.
	if passwordMatches(string(hash), string(hash)) {
		t.Error("hash accepted as password")
	}
}
