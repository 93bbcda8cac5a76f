package store

import (
	"context"
	"strings"
	"testing"
)

// TestParseMode verifies that the three documented modes parse and anything
// else is refused with a message naming the valid set.
func TestParseMode(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"read", "append", "overwrite"} {
		mode, err := ParseMode(s)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", s, err)
		}
		if string(mode) != s {
			t.Fatalf("ParseMode(%q) = %q", s, mode)
		}
	}
	for _, s := range []string{"", "truncate", "Append"} {
		if _, err := ParseMode(s); err == nil {
			t.Fatalf("ParseMode(%q) did not fail", s)
		}
	}
}

// TestOpen_UnknownDriver verifies that opening an unregistered driver fails
// with a message naming the driver so misconfiguration is easy to spot.
func TestOpen_UnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{Driver: "no-such-backend"})
	if err == nil {
		t.Fatalf("Open with unknown driver did not fail")
	}
	if !strings.Contains(err.Error(), "no-such-backend") {
		t.Fatalf("error %q does not name the driver", err)
	}
}

// TestRegister_Dispatch verifies that Open routes the untouched Config to
// the factory registered under the driver name.
func TestRegister_Dispatch(t *testing.T) {
	t.Parallel()

	var got Config
	Register("dispatch-test", func(_ context.Context, cfg Config) (Store, error) {
		got = cfg
		return nil, nil
	})
	if _, err := Open(context.Background(), Config{Driver: "dispatch-test", DSN: "dsn://x"}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got.DSN != "dsn://x" {
		t.Fatalf("factory received DSN %q, want dsn://x", got.DSN)
	}

	found := false
	for _, name := range Drivers() {
		if name == "dispatch-test" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Drivers() = %v, missing dispatch-test", Drivers())
	}
}
