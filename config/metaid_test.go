package config

import (
	"os"
	"testing"

	"github.com/moosefs/chunkserver/build"
)

func TestEnsureMetaIDCreatesThenVerifies(t *testing.T) {
	dir := build.TempDir("config", t.Name())
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	if err := EnsureMetaID(dir, 42); err != nil {
		t.Fatalf("EnsureMetaID (create): %v", err)
	}
	if err := EnsureMetaID(dir, 42); err != nil {
		t.Fatalf("EnsureMetaID (verify): %v", err)
	}
	if err := EnsureMetaID(dir, 99); err == nil {
		t.Fatal("expected mismatch error for a different instance id")
	}
}
