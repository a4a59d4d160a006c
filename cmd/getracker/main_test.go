package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/vincentbai/getracker/internal/models"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParsePairs(t *testing.T) {
	fields, err := parsePairs("--custom", []string{"plan=pro", "note=a=b"})
	if err != nil {
		t.Fatalf("parsePairs failed: %v", err)
	}
	if fields["plan"] != "pro" || fields["note"] != "a=b" {
		t.Errorf("Unexpected fields: %v", fields)
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parsePairs("--custom", []string{bad}); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestScanCommand(t *testing.T) {
	page := filepath.Join(t.TempDir(), "page.html")
	markup := `<html><body>
		<form id="lead"><input name="Email" value="a@example.com"><input name="FullName" value="Ann"><input name="promo" value="x"></form>
		<form id="search"><input name="q" value="shoes"></form>
	</body></html>`
	if err := os.WriteFile(page, []byte(markup), 0o644); err != nil {
		t.Fatalf("Failed to write page: %v", err)
	}

	out, err := runCommand(t, "scan", page)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	var forms []scannedForm
	if err := json.Unmarshal([]byte(out), &forms); err != nil {
		t.Fatalf("Invalid scan output: %v\n%s", err, out)
	}
	if len(forms) != 2 {
		t.Fatalf("Expected 2 forms, got %d", len(forms))
	}
	if forms[0].Lead == nil || forms[0].Lead.Email != "a@example.com" || forms[0].Lead.Name != "Ann" {
		t.Fatalf("Unexpected lead for first form: %+v", forms[0].Lead)
	}
	if forms[0].Lead.Custom["promo"] != "x" {
		t.Errorf("Expected promo in custom, got %v", forms[0].Lead.Custom)
	}
	if forms[1].Lead != nil {
		t.Errorf("Expected no lead for search form, got %+v", forms[1].Lead)
	}
}

func TestScanCommandMissingFile(t *testing.T) {
	if _, err := runCommand(t, "scan", filepath.Join(t.TempDir(), "missing.html")); err == nil {
		t.Error("Expected error for missing page")
	}
}

func TestCaptureCommand(t *testing.T) {
	var received models.CapturePayload
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer pk_cli" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("Invalid body: %v", err)
		}
		io.WriteString(w, `{"id":"lead_1"}`)
	}))
	defer endpoint.Close()

	stateDir := t.TempDir()
	out, err := runCommand(t,
		"--api-key", "pk_cli",
		"--api-host", endpoint.URL,
		"--state-dir", stateDir,
		"--url", "https://example.com/?utm_source=newsletter&gclid=g1",
		"capture", "--email", "cli@example.com", "--name", "Cli", "--custom", "plan=pro",
	)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	var result models.CaptureResponse
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("Invalid capture output: %v\n%s", err, out)
	}
	if !result.Success {
		t.Errorf("Expected success, got %+v", result)
	}
	if received.Email != "cli@example.com" || received.Custom["plan"] != "pro" {
		t.Errorf("Unexpected lead: %+v", received.LeadData)
	}
	if received.Attribution == nil || received.Attribution.UTMSource != "newsletter" || received.Attribution.ClickID != "g1" {
		t.Errorf("Unexpected attribution: %+v", received.Attribution)
	}

	// A later visit without parameters still reports the stored attribution.
	out, err = runCommand(t,
		"--api-key", "pk_cli",
		"--state-dir", stateDir,
		"--url", "https://example.com/pricing",
		"attribution",
	)
	if err != nil {
		t.Fatalf("attribution failed: %v", err)
	}
	if !strings.Contains(out, `"newsletter"`) || !strings.Contains(out, `"google"`) {
		t.Errorf("Expected persisted attribution, got %s", out)
	}

	if _, err := runCommand(t, "--api-key", "pk_cli", "--state-dir", stateDir, "--url", "https://example.com/", "reset"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	out, err = runCommand(t, "--api-key", "pk_cli", "--state-dir", stateDir, "--url", "https://example.com/", "attribution")
	if err != nil {
		t.Fatalf("attribution failed: %v", err)
	}
	if strings.Contains(out, "newsletter") {
		t.Errorf("Expected attribution cleared, got %s", out)
	}
}

func TestCaptureCommandRequiresAPIKey(t *testing.T) {
	t.Setenv("GETRACKER_API_KEY", "")
	_, err := runCommand(t, "--state-dir", t.TempDir(), "capture", "--email", "a@example.com")
	if err == nil {
		t.Error("Expected error without API key")
	}
}

func TestReplayCommandSubmit(t *testing.T) {
	var emails []string
	var mu sync.Mutex
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload models.CapturePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("Invalid body: %v", err)
		}
		mu.Lock()
		emails = append(emails, payload.Email)
		mu.Unlock()
		io.WriteString(w, `{}`)
	}))
	defer endpoint.Close()

	page := filepath.Join(t.TempDir(), "page.html")
	markup := `<html><body><form><input type="email" name="user_email" value="replay@example.com"></form></body></html>`
	if err := os.WriteFile(page, []byte(markup), 0o644); err != nil {
		t.Fatalf("Failed to write page: %v", err)
	}

	_, err := runCommand(t,
		"--api-key", "pk_cli",
		"--api-host", endpoint.URL,
		"--state-dir", t.TempDir(),
		"--url", "https://example.com/landing",
		"replay", "--submit", page,
	)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(emails) != 1 || emails[0] != "replay@example.com" {
		t.Errorf("Captured = %v", emails)
	}
}

func TestDebugFromEnvironment(t *testing.T) {
	t.Setenv("GETRACKER_DEBUG", "true")
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"lead_1"}`)
	}))
	defer endpoint.Close()

	cmd := rootCmd()
	var stderr bytes.Buffer
	cmd.SetOut(io.Discard)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{
		"--api-key", "pk_cli",
		"--api-host", endpoint.URL,
		"--state-dir", t.TempDir(),
		"--url", "https://example.com/",
		"capture", "--email", "debug@example.com",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	if !strings.Contains(stderr.String(), "Tracking lead") {
		t.Errorf("Expected debug records on stderr, got %q", stderr.String())
	}
}

func TestReplayCommandFillAndOutput(t *testing.T) {
	var mu sync.Mutex
	var emails []string
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload models.CapturePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("Invalid body: %v", err)
		}
		mu.Lock()
		emails = append(emails, payload.Email)
		mu.Unlock()
		io.WriteString(w, `{}`)
	}))
	defer endpoint.Close()

	dir := t.TempDir()
	page := filepath.Join(dir, "page.html")
	if err := os.WriteFile(page, []byte(`<html><body><form><input name="email"></form></body></html>`), 0o644); err != nil {
		t.Fatalf("Failed to write page: %v", err)
	}
	output := filepath.Join(dir, "out.html")

	_, err := runCommand(t,
		"--api-key", "pk_cli",
		"--api-host", endpoint.URL,
		"--state-dir", t.TempDir(),
		"replay", "--submit", "--fill", "email=filled@example.com", "--output", output, page,
	)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	mu.Lock()
	if len(emails) != 1 || emails[0] != "filled@example.com" {
		t.Errorf("Captured = %v", emails)
	}
	mu.Unlock()

	rendered, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	if !strings.Contains(string(rendered), `data-ge-capture="true"`) || !strings.Contains(string(rendered), "filled@example.com") {
		t.Errorf("Unexpected rendered page: %s", rendered)
	}
}
