package keyring

import (
	"testing"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/habitkit/internal/constants"
)

func TestSetAndGetToken(t *testing.T) {
	gokeyring.MockInit()
	t.Setenv(constants.TokenEnvVar, "")

	if err := SetToken("  tok-123 "); err != nil {
		t.Fatalf("SetToken() failed: %v", err)
	}

	got, err := GetToken()
	if err != nil {
		t.Fatalf("GetToken() failed: %v", err)
	}
	if got != "tok-123" {
		t.Errorf("GetToken() = %q, want %q", got, "tok-123")
	}
}

func TestSetTokenEmpty(t *testing.T) {
	gokeyring.MockInit()

	if err := SetToken(" "); err == nil {
		t.Error("SetToken(\" \") should return an error")
	}
}

func TestEnvTokenWins(t *testing.T) {
	gokeyring.MockInit()
	if err := SetToken("stored"); err != nil {
		t.Fatalf("SetToken() failed: %v", err)
	}
	t.Setenv(constants.TokenEnvVar, "from-env")

	got, err := GetToken()
	if err != nil {
		t.Fatalf("GetToken() failed: %v", err)
	}
	if got != "from-env" {
		t.Errorf("GetToken() = %q, want env token", got)
	}
}

func TestDeleteToken(t *testing.T) {
	gokeyring.MockInit()
	t.Setenv(constants.TokenEnvVar, "")

	if err := SetToken("tok"); err != nil {
		t.Fatalf("SetToken() failed: %v", err)
	}
	if err := DeleteToken(); err != nil {
		t.Fatalf("DeleteToken() failed: %v", err)
	}
	if _, err := GetToken(); err != ErrNotFound {
		t.Errorf("After DeleteToken(), GetToken() error = %v, want %v", err, ErrNotFound)
	}
	if err := DeleteToken(); err != ErrNotFound {
		t.Errorf("DeleteToken() twice error = %v, want %v", err, ErrNotFound)
	}
}

func TestIsAvailable(t *testing.T) {
	gokeyring.MockInit()

	if !IsAvailable() {
		t.Error("IsAvailable() should be true with the mock keyring")
	}
}
