package passphrase

import (
	"io"
	"strings"
	"testing"
)

func testSource(env map[string]string, tty bool, input string) *Source {
	s := NewSource("TEST_PASS", "operator keystore")
	s.lookup = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	s.terminal = func() bool { return tty }
	s.read = func() ([]byte, error) { return []byte(input), nil }
	s.prompt = io.Discard
	return s
}

func TestSourcePrefersEnvironment(t *testing.T) {
	s := testSource(map[string]string{"TEST_PASS": "secret"}, true, "ignored")
	got, err := s.Get()
	if err != nil || got != "secret" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestSourceRejectsBlankValues(t *testing.T) {
	if _, err := testSource(map[string]string{"TEST_PASS": "  "}, true, "x").Get(); err == nil {
		t.Fatalf("expected blank env error")
	}
	if _, err := testSource(nil, true, " ").Get(); err == nil {
		t.Fatalf("expected blank prompt error")
	}
}

func TestSourceWithoutTerminal(t *testing.T) {
	_, err := testSource(nil, false, "").Get()
	if err == nil || !strings.Contains(err.Error(), "TEST_PASS") {
		t.Fatalf("expected hint naming the variable, got %v", err)
	}
}

func TestSourcePromptsAndCaches(t *testing.T) {
	calls := 0
	s := testSource(nil, true, "")
	s.read = func() ([]byte, error) {
		calls++
		return []byte("typed"), nil
	}
	for i := 0; i < 2; i++ {
		got, err := s.Get()
		if err != nil || got != "typed" {
			t.Fatalf("got %q, %v", got, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one prompt, got %d", calls)
	}
}
