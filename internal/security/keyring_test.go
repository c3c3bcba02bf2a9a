package security

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

func newMockStore(t *testing.T) *KeyringStore {
	t.Helper()
	keyring.MockInit()
	ks := NewKeyringStore()
	if !ks.IsEnabled() {
		t.Fatal("store disabled with mock keyring")
	}
	return ks
}

func TestNewKeyringStore_ProbeFailureDisables(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service"))
	ks := NewKeyringStore()
	if ks.IsEnabled() {
		t.Error("store enabled although keyring fails")
	}
}

func TestKeyringStore_SSHPassphrase(t *testing.T) {
	ks := newMockStore(t)

	if err := ks.StoreSSHPassphrase("/home/u/.ssh/id_ed25519", []byte("pass\x00phrase")); err != nil {
		t.Fatalf("StoreSSHPassphrase: %v", err)
	}
	got, err := ks.SSHPassphrase("/home/u/.ssh/id_ed25519")
	if err != nil {
		t.Fatalf("SSHPassphrase: %v", err)
	}
	if got.String() != "pass\x00phrase" {
		t.Errorf("passphrase = %q", got.String())
	}

	if err := ks.DeleteSSHPassphrase("/home/u/.ssh/id_ed25519"); err != nil {
		t.Fatalf("DeleteSSHPassphrase: %v", err)
	}
	got, err = ks.SSHPassphrase("/home/u/.ssh/id_ed25519")
	if err != nil || got != nil {
		t.Errorf("after delete: %v, %v", got, err)
	}
}

func TestKeyringStore_ServerPassword(t *testing.T) {
	ks := newMockStore(t)

	if err := ks.StoreServerPassword("sftp.example.com", "deploy", []byte("s3cr3t")); err != nil {
		t.Fatalf("StoreServerPassword: %v", err)
	}
	got, err := ks.ServerPassword("sftp.example.com", "deploy")
	if err != nil || got.String() != "s3cr3t" {
		t.Fatalf("ServerPassword = %q, %v", got.String(), err)
	}

	other, err := ks.ServerPassword("sftp.example.com", "other")
	if err != nil || other != nil {
		t.Errorf("unknown user: %v, %v", other, err)
	}

	if err := ks.DeleteServerPassword("sftp.example.com", "deploy"); err != nil {
		t.Fatalf("DeleteServerPassword: %v", err)
	}
	if err := ks.DeleteServerPassword("sftp.example.com", "deploy"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestKeyringStore_Disabled(t *testing.T) {
	ks := newMockStore(t)
	ks.enabled = false

	if err := ks.StoreServerPassword("h", "u", []byte("p")); !errors.Is(err, ErrKeyringUnavailable) {
		t.Errorf("store: %v", err)
	}
	if _, err := ks.ServerPassword("h", "u"); !errors.Is(err, ErrKeyringUnavailable) {
		t.Errorf("get: %v", err)
	}
	if err := ks.DeleteSSHPassphrase("k"); !errors.Is(err, ErrKeyringUnavailable) {
		t.Errorf("delete: %v", err)
	}
}

func TestKeyringStore_BackendError(t *testing.T) {
	ks := newMockStore(t)
	keyring.MockInitWithError(errors.New("locked"))

	if _, err := ks.ServerPassword("h", "u"); err == nil {
		t.Error("expected error from failing backend")
	}
	if err := ks.StoreSSHPassphrase("k", []byte("p")); err == nil {
		t.Error("expected error from failing backend")
	}
}
