package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	// internal/cli -> repo root
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func goExe() string {
	if runtime.GOOS == "windows" {
		return "go.exe"
	}
	return "go"
}

func buildTenderscanBinary(t *testing.T) string {
	t.Helper()

	outPath := filepath.Join(t.TempDir(), "tenderscan-test")
	if runtime.GOOS == "windows" {
		outPath += ".exe"
	}

	cmd := exec.Command(goExe(), "build", "-o", outPath, "./cmd/tenderscan")
	cmd.Dir = repoRoot(t)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build tenderscan binary: %v; output=%s", err, string(out))
	}

	return outPath
}

// withoutTenderscanEnv drops any TENDERSCAN_* variables from the
// developer's environment.
func withoutTenderscanEnv() []string {
	out := make([]string, 0, len(os.Environ()))
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, envPrefix+"_") {
			continue
		}
		out = append(out, e)
	}
	return out
}

func runBinary(t *testing.T, binary string, env []string, args ...string) (string, int) {
	t.Helper()

	cmd := exec.Command(binary, args...)
	cmd.Env = append(withoutTenderscanEnv(), env...)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return string(out), 0
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %T: %v; output=%s", err, err, string(out))
	}
	return string(out), exitErr.ProcessState.ExitCode()
}

func listingHandler(rows, last int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if v := r.URL.Query().Get("page"); v != "" {
			page, _ = strconv.Atoi(v)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		var b strings.Builder
		b.WriteString(`<html><body><table class="search-results">`)
		b.WriteString(`<tr><th>Тендер</th><th>Организатор</th><th>Опубликовано</th><th>Окончание</th></tr>`)
		if page <= last {
			for i := 0; i < rows; i++ {
				fmt.Fprintf(&b, `<tr><td><a class="search-results-title" href="/market/tender-%d-%d/">Тендер %d-%d</a></td>`+
					`<td><a href="/firms/%d/">Компания %d</a></td><td>01.02.2025</td><td>15.02.2025</td></tr>`,
					page, i, page, i, i, i)
			}
		}
		b.WriteString(`</table></body></html>`)
		_, _ = fmt.Fprint(w, b.String())
	}
}

func TestFetch_ExitCode3_WhenFormatCannotBeInferred(t *testing.T) {
	binary := buildTenderscanBinary(t)

	out, code := runBinary(t, binary, nil, "fetch", "--output", "results.unknown")

	if code != 3 {
		t.Fatalf("expected exit code 3, got %d; output=%s", code, out)
	}
	if !strings.Contains(out, "cannot infer output format") {
		t.Fatalf("expected output format inference error; output=%s", out)
	}
}

func TestFetch_ExitCode3_WhenMaxInvalid(t *testing.T) {
	binary := buildTenderscanBinary(t)

	out, code := runBinary(t, binary, nil, "fetch", "--max", "0")

	if code != 3 {
		t.Fatalf("expected exit code 3, got %d; output=%s", code, out)
	}
	if !strings.Contains(out, "--max must be >= 1") {
		t.Fatalf("expected validation message; output=%s", out)
	}
}

func TestFetch_EnvironmentOverridesDefaults(t *testing.T) {
	binary := buildTenderscanBinary(t)

	out, code := runBinary(t, binary, []string{"TENDERSCAN_MAX=0"}, "fetch")

	if code != 3 {
		t.Fatalf("expected exit code 3 from TENDERSCAN_MAX=0, got %d; output=%s", code, out)
	}
	if !strings.Contains(out, "--max must be >= 1") {
		t.Fatalf("expected validation message; output=%s", out)
	}
}

func TestFetch_FlagBeatsEnvironment(t *testing.T) {
	srv := httptest.NewServer(listingHandler(2, 1))
	defer srv.Close()

	binary := buildTenderscanBinary(t)
	outPath := filepath.Join(t.TempDir(), "tenders.json")

	out, code := runBinary(t, binary, []string{"TENDERSCAN_MAX=0"},
		"fetch", "--max", "2", "--base-url", srv.URL+"/market", "--output", outPath, "--no-console")

	if code != 0 {
		t.Fatalf("expected exit code 0, got %d; output=%s", code, out)
	}
}

func TestFetch_InvalidEnvironmentValue(t *testing.T) {
	binary := buildTenderscanBinary(t)

	out, code := runBinary(t, binary, []string{"TENDERSCAN_CONCURRENCY=many"}, "fetch")

	if code == 0 {
		t.Fatalf("expected non-zero exit; output=%s", out)
	}
	if !strings.Contains(out, "TENDERSCAN_CONCURRENCY") {
		t.Fatalf("expected the variable to be named in the error; output=%s", out)
	}
}

func TestFetch_WritesTendersFromListing(t *testing.T) {
	srv := httptest.NewServer(listingHandler(3, 2))
	defer srv.Close()

	binary := buildTenderscanBinary(t)
	outPath := filepath.Join(t.TempDir(), "out", "tenders.json")

	out, code := runBinary(t, binary, nil,
		"fetch", "--max", "4", "--base-url", srv.URL+"/market", "--output", outPath, "--retries", "0")

	if code != 0 {
		t.Fatalf("expected exit code 0, got %d; output=%s", code, out)
	}
	if !strings.Contains(out, "OK") {
		t.Fatalf("expected run summary on stderr; output=%s", out)
	}

	b, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("output is not a JSON array: %v; body=%s", err, string(b))
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 tenders, got %d", len(got))
	}
	if got[0]["title"] != "Тендер 1-0" || got[3]["title"] != "Тендер 2-0" {
		t.Fatalf("unexpected order: first=%v last=%v", got[0]["title"], got[3]["title"])
	}
}

func TestFetch_EmitNDJSON(t *testing.T) {
	srv := httptest.NewServer(listingHandler(2, 1))
	defer srv.Close()

	binary := buildTenderscanBinary(t)
	outPath := filepath.Join(t.TempDir(), "tenders.ndjson")

	cmd := exec.Command(binary, "fetch", "--max", "5", "--base-url", srv.URL+"/market",
		"--output", outPath, "--no-console", "--emit", "ndjson")
	cmd.Env = withoutTenderscanEnv()
	stdout, err := cmd.Output()
	// The listing ends after 2 tenders, which is a clean finish.
	if err != nil {
		t.Fatalf("expected exit code 0, got %v; stdout=%s", err, string(stdout))
	}

	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 2 tender events and run.finished, got %d lines: %s", len(lines), string(stdout))
	}
	var last map[string]any
	if err := json.Unmarshal([]byte(lines[2]), &last); err != nil {
		t.Fatalf("invalid NDJSON line %q: %v", lines[2], err)
	}
	if last["type"] != "run.finished" {
		t.Fatalf("expected run.finished last, got %v", last["type"])
	}
}

func TestFetch_Help_DocumentsOutputAndExitCodes(t *testing.T) {
	binary := buildTenderscanBinary(t)

	out, code := runBinary(t, binary, nil, "fetch", "--help")
	if code != 0 {
		t.Fatalf("expected zero exit; code=%d; output=%s", code, out)
	}

	// Regression guard: command help must document machine-readable output
	// and exit status semantics.
	required := []string{
		"Output:",
		"Exit codes:",
		"NDJSON mode emits",
		"run.finished",
		"--concurrency",
		"--max-pages",
	}
	for _, r := range required {
		if !strings.Contains(out, r) {
			t.Fatalf("expected fetch --help to contain %q; output=%s", r, out)
		}
	}
}
