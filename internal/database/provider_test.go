package database

import (
	"context"
	"testing"
)

type nopStore struct{ IdentityWriter }

func TestRegistry(t *testing.T) {
	ResetBackend()
	t.Cleanup(ResetBackend)

	if IsInitialized() {
		t.Fatal("expected no backend after reset")
	}
	if _, err := GetIdentityReader(context.Background()); err == nil {
		t.Error("expected error without a registered backend")
	}

	RegisterBackend("test", func() IdentityWriter { return nopStore{} })

	if !IsInitialized() {
		t.Error("expected backend to be initialized")
	}
	if BackendName() != "test" {
		t.Errorf("expected backend name 'test', got %q", BackendName())
	}
	if _, err := GetIdentityWriter(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	ResetBackend()
	if BackendName() != "" || IsInitialized() {
		t.Error("expected reset to clear the backend")
	}
}
