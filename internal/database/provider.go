package database

import (
	"context"
	"fmt"
	"sync"
)

var (
	registryMu     sync.RWMutex
	activeBackend  string
	identityWriter func() IdentityWriter
)

// RegisterBackend registers the repository constructor of the active storage backend.
// This is called by the backend packages' callers to avoid import cycles.
func RegisterBackend(name string, writer func() IdentityWriter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	activeBackend = name
	identityWriter = writer
}

// ResetBackend clears the registered backend.
func ResetBackend() {
	registryMu.Lock()
	defer registryMu.Unlock()
	activeBackend = ""
	identityWriter = nil
}

// IsInitialized returns whether a storage backend has been registered.
func IsInitialized() bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return identityWriter != nil
}

// BackendName returns the name of the registered backend, or "" when none is.
func BackendName() string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return activeBackend
}

// GetIdentityWriter returns an IdentityWriter from the registered backend
func GetIdentityWriter(ctx context.Context) (IdentityWriter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if identityWriter == nil {
		return nil, fmt.Errorf("storage backend not initialized: DATABASE_URL is required")
	}
	return identityWriter(), nil
}

// GetIdentityReader returns an IdentityReader from the registered backend
func GetIdentityReader(ctx context.Context) (IdentityReader, error) {
	w, err := GetIdentityWriter(ctx)
	if err != nil {
		return nil, err
	}
	return w, nil
}
