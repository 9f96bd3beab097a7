package password

import "testing"

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("s3cret-password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !Verify("s3cret-password", hash) {
		t.Error("Verify rejected the correct password")
	}
	if Verify("wrong-password", hash) {
		t.Error("Verify accepted a wrong password")
	}
}

func TestHashToken(t *testing.T) {
	a := HashToken("token-a")
	b := HashToken("token-b")
	if a == b {
		t.Error("different tokens hashed identically")
	}
	if a != HashToken("token-a") {
		t.Error("token hashing is not deterministic")
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64 hex chars", len(a))
	}
}

func TestValidatePassword(t *testing.T) {
	if ValidatePassword("short") {
		t.Error("accepted a 5-char password")
	}
	if !ValidatePassword("longenough") {
		t.Error("rejected a valid password")
	}
}
