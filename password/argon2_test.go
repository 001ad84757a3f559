package password

import (
	"errors"
	"strings"
	"testing"
)

func testConfig() Config {
	// Minimum-cost parameters keep the test suite fast; production values
	// are enforced by the root Config validation.
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
}

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()

	h, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func TestHashVerify_RoundTrip(t *testing.T) {
	h := newTestHasher(t)

	encoded, err := h.Hash("Correct-Horse-9")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("expected PHC argon2id encoding, got %q", encoded)
	}

	ok, err := h.Verify("Correct-Horse-9", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("expected matching password to verify")
	}

	ok, err = h.Verify("Wrong-Horse-9", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Fatal("expected mismatched password to fail verification")
	}
}

func TestHash_SaltIsRandomized(t *testing.T) {
	h := newTestHasher(t)

	first, err := h.Hash("Same-Password-1!")
	if err != nil {
		t.Fatalf("first Hash failed: %v", err)
	}
	second, err := h.Hash("Same-Password-1!")
	if err != nil {
		t.Fatalf("second Hash failed: %v", err)
	}

	// Equal stored hashes would leak password reuse across accounts.
	if first == second {
		t.Fatal("expected distinct encodings for the same password")
	}
}

func TestVerify_MalformedHashIsIntegrityError(t *testing.T) {
	h := newTestHasher(t)

	cases := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"not phc", "plainly-not-a-hash"},
		{"wrong algorithm", "$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		{"bad version", "$argon2id$v=7$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		{"bad params", "$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		{"bad salt b64", "$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA"},
		{"short salt", "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.Verify("whatever", tc.encoded)
			if !errors.Is(err, ErrHashMalformed) {
				t.Fatalf("expected ErrHashMalformed, got %v", err)
			}
		})
	}
}

func TestNeedsRehash(t *testing.T) {
	weak, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	encoded, err := weak.Hash("Some-Password-8!")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	strongCfg := testConfig()
	strongCfg.Time = 3
	strong, err := NewHasher(strongCfg)
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	upgrade, err := strong.NeedsRehash(encoded)
	if err != nil {
		t.Fatalf("NeedsRehash failed: %v", err)
	}
	if !upgrade {
		t.Fatal("expected upgrade for weaker stored parameters")
	}

	same, err := weak.NeedsRehash(encoded)
	if err != nil {
		t.Fatalf("NeedsRehash failed: %v", err)
	}
	if same {
		t.Fatal("expected no upgrade for equal parameters")
	}
}

func TestNewHasher_RejectsWeakConfig(t *testing.T) {
	cfg := testConfig()
	cfg.SaltLength = 8

	if _, err := NewHasher(cfg); err == nil {
		t.Fatal("expected error for short salt length")
	}
}
