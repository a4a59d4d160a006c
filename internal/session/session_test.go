package session

import (
	"errors"
	"strings"
	"testing"

	"github.com/vincentbai/getracker/internal/browser"
	"github.com/vincentbai/getracker/internal/storage"
)

// failingEnv is an Environment whose every read fails.
type failingEnv struct{}

var errBlocked = errors.New("blocked by host")

func (failingEnv) Href() (string, error)      { return "", errBlocked }
func (failingEnv) Referrer() (string, error)  { return "", errBlocked }
func (failingEnv) UserAgent() (string, error) { return "", errBlocked }

func assertSessionIDFormat(t *testing.T, id string) {
	t.Helper()

	if len(id) != 36 {
		t.Fatalf("Expected 36 characters, got %d (%s)", len(id), id)
	}
	for _, pos := range []int{8, 13, 18, 23} {
		if id[pos] != '-' {
			t.Errorf("Expected dash at position %d in %s", pos, id)
		}
	}
	if id[14] != '4' {
		t.Errorf("Expected version nibble '4' at position 14 in %s", id)
	}
	if !strings.ContainsRune("89ab", rune(id[19])) {
		t.Errorf("Expected variant nibble in {8,9,a,b} at position 19 in %s", id)
	}
}

func TestGenerateIDFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateID()
		assertSessionIDFormat(t, id)
		if seen[id] {
			t.Fatalf("Duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestSessionIDStable(t *testing.T) {
	store := storage.NewMemory()
	ctx := NewContext(browser.NewWindow("https://example.com/", "", ""), store, nil)

	first := ctx.SessionID()
	assertSessionIDFormat(t, first)

	if second := ctx.SessionID(); second != first {
		t.Errorf("Expected stable session id, got %s then %s", first, second)
	}

	stored, err := store.Get(SessionIDKey)
	if err != nil || stored != first {
		t.Errorf("Expected session id persisted, got %q, %v", stored, err)
	}
}

func TestSessionIDNewSession(t *testing.T) {
	window := browser.NewWindow("https://example.com/", "", "")
	first := NewContext(window, storage.NewMemory(), nil).SessionID()
	second := NewContext(window, storage.NewMemory(), nil).SessionID()
	if first == second {
		t.Error("Expected a fresh session scope to get a fresh id")
	}
}

func TestSessionIDStorageUnavailable(t *testing.T) {
	ctx := NewContext(browser.NewWindow("https://example.com/", "", ""), storage.Disabled{}, nil)

	first := ctx.SessionID()
	assertSessionIDFormat(t, first)
	if second := ctx.SessionID(); second == first {
		t.Error("Expected unpersisted ids to differ between calls")
	}
}

func TestStoreLandingPageFirstWriteWins(t *testing.T) {
	window := browser.NewWindow("https://example.com/?utm_source=google", "", "")
	ctx := NewContext(window, storage.NewMemory(), nil)

	ctx.StoreLandingPage()
	window.Navigate("https://example.com/pricing")
	ctx.StoreLandingPage()

	if got := ctx.LandingPage(); got != "https://example.com/?utm_source=google" {
		t.Errorf("Expected original landing page, got %s", got)
	}
}

func TestLandingPageFallsBackToCurrentURL(t *testing.T) {
	window := browser.NewWindow("https://example.com/contact", "", "")

	unset := NewContext(window, storage.NewMemory(), nil)
	if got := unset.LandingPage(); got != "https://example.com/contact" {
		t.Errorf("Expected current URL when unset, got %s", got)
	}

	disabled := NewContext(window, storage.Disabled{}, nil)
	disabled.StoreLandingPage()
	if got := disabled.LandingPage(); got != "https://example.com/contact" {
		t.Errorf("Expected current URL when storage fails, got %s", got)
	}
}

func TestPassthroughReads(t *testing.T) {
	ctx := NewContext(browser.NewWindow("https://example.com/", "https://google.com/", "Mozilla/5.0"), storage.NewMemory(), nil)
	if got := ctx.Referrer(); got != "https://google.com/" {
		t.Errorf("Referrer() = %s", got)
	}
	if got := ctx.UserAgent(); got != "Mozilla/5.0" {
		t.Errorf("UserAgent() = %s", got)
	}
}

func TestEnvironmentFailuresDegradeToEmpty(t *testing.T) {
	ctx := NewContext(failingEnv{}, storage.NewMemory(), nil)

	if got := ctx.Referrer(); got != "" {
		t.Errorf("Referrer() = %q, want empty", got)
	}
	if got := ctx.UserAgent(); got != "" {
		t.Errorf("UserAgent() = %q, want empty", got)
	}
	ctx.StoreLandingPage()
	if got := ctx.LandingPage(); got != "" {
		t.Errorf("LandingPage() = %q, want empty", got)
	}
}
