package crypto

import (
	"errors"
	"strings"
	"testing"

	"github.com/mochiquin/safehome/pkg/apperr"
)

func newTestEnvelope(t *testing.T, secret string) *Envelope {
	t.Helper()
	env, err := NewEnvelope(Config{Secret: secret, Salt: "test-salt"})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	return env
}

func TestNewEnvelopeRequiresKeyMaterial(t *testing.T) {
	if _, err := NewEnvelope(Config{Salt: "salt"}); err == nil {
		t.Fatal("expected error for missing secret")
	}
	if _, err := NewEnvelope(Config{Secret: "secret"}); err == nil {
		t.Fatal("expected error for missing salt")
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	env := newTestEnvelope(t, "master-secret")

	cases := []string{
		"",
		"34 Example Street, Adelaide",
		"+61 400 000 000",
		"unicode: 北京市朝阳区",
		strings.Repeat("long ", 500),
	}

	for _, plaintext := range cases {
		sealed, err := env.Seal(plaintext)
		if err != nil {
			t.Fatalf("Seal(%q): %v", plaintext, err)
		}
		if plaintext != "" && strings.Contains(sealed, plaintext) {
			t.Fatalf("ciphertext contains plaintext %q", plaintext)
		}

		opened, err := env.Open(sealed)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if opened != plaintext {
			t.Fatalf("round trip mismatch: got %q want %q", opened, plaintext)
		}
	}
}

func TestSealIsNonDeterministic(t *testing.T) {
	env := newTestEnvelope(t, "master-secret")

	first, err := env.Seal("same plaintext")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	second, err := env.Seal("same plaintext")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if first == second {
		t.Fatal("two seals of identical plaintext produced identical ciphertext")
	}

	for _, sealed := range []string{first, second} {
		opened, err := env.Open(sealed)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if opened != "same plaintext" {
			t.Fatalf("round trip mismatch: got %q", opened)
		}
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	env := newTestEnvelope(t, "master-secret")

	sealed, err := env.Seal("312 Hidden Lane")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	cases := map[string]string{
		"not base64":   "!!not-base64!!",
		"truncated":    sealed[:8],
		"empty":        "",
		"bit flipped":  flipLastChar(sealed),
		"foreign data": "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
	}

	for name, input := range cases {
		if _, err := env.Open(input); !errors.Is(err, apperr.ErrDecryption) {
			t.Fatalf("%s: got %v, want ErrDecryption", name, err)
		}
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	env := newTestEnvelope(t, "master-secret")
	other := newTestEnvelope(t, "different-secret")

	sealed, err := env.Seal("0400 111 222")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, err := other.Open(sealed); !errors.Is(err, apperr.ErrDecryption) {
		t.Fatalf("got %v, want ErrDecryption", err)
	}
}

func flipLastChar(s string) string {
	b := []byte(s)
	i := len(b) - 1
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}
