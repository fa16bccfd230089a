package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestComputeBlake3HashStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.yaml")
	if err := os.WriteFile(path, []byte("service: {}\n"), 0600); err != nil {
		t.Fatal(err)
	}

	h1, err := ComputeBlake3Hash(path)
	if err != nil {
		t.Fatalf("ComputeBlake3Hash() failed: %v", err)
	}
	h2, _ := ComputeBlake3Hash(path)
	if h1 != h2 || len(h1) != 64 {
		t.Fatalf("hash = %q / %q, want two identical 64-char digests", h1, h2)
	}
	if err := VerifyFileHash(path, h1); err != nil {
		t.Fatalf("VerifyFileHash() failed: %v", err)
	}
	if err := VerifyFileHash(path, strings.Repeat("0", 64)); err == nil {
		t.Fatal("VerifyFileHash() accepted a wrong hash")
	}
}

func TestChecksumRoundTripThroughLoad(t *testing.T) {
	path := writeConfig(t, "service:\n  name: checked\n")

	verified, err := VerifyChecksums(path)
	if err != nil || verified {
		t.Fatalf("VerifyChecksums() without manifest = %v, %v; want false, nil", verified, err)
	}

	manifestPath, err := GenerateChecksums(path)
	if err != nil {
		t.Fatalf("GenerateChecksums() failed: %v", err)
	}
	if filepath.Base(manifestPath) != ChecksumFile {
		t.Fatalf("manifest path = %s", manifestPath)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !cfg.Verified {
		t.Fatal("cfg.Verified = false after checksum generation")
	}

	if err := os.WriteFile(path, []byte("service:\n  name: tampered\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "hash mismatch") {
		t.Fatalf("Load() after tamper error = %v, want hash mismatch", err)
	}
}

func TestGenerateChecksumsKeepsOtherEntries(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte(filepath.Base(p)), 0600); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := GenerateChecksums(a); err != nil {
		t.Fatal(err)
	}
	if _, err := GenerateChecksums(b); err != nil {
		t.Fatal(err)
	}

	manifest, err := LoadChecksums(dir)
	if err != nil {
		t.Fatalf("LoadChecksums() failed: %v", err)
	}
	if len(manifest.Hashes) != 2 {
		t.Fatalf("manifest hashes = %v, want entries for both files", manifest.Hashes)
	}
}

func TestVerifyChecksumsMissingEntry(t *testing.T) {
	dir := t.TempDir()
	other := filepath.Join(dir, "other.yaml")
	if err := os.WriteFile(other, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := GenerateChecksums(other); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "hookd.yaml")
	if err := os.WriteFile(path, []byte(""), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyChecksums(path); err == nil || !strings.Contains(err.Error(), "no hash") {
		t.Fatalf("VerifyChecksums() error = %v, want missing entry", err)
	}
}
