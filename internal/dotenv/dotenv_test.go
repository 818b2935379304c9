package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileIsNoop(t *testing.T) {
	t.Parallel()
	if err := Load(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("Load missing file error: %v", err)
	}
}

func TestLoad_FillsEnvWithoutClobbering(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	content := "" +
		"# development credentials\n" +
		"BRAINGEM_TEST_PLAIN=loaded\n" +
		"BRAINGEM_TEST_QUOTED=\"hello world\"\n" +
		"export BRAINGEM_TEST_EXPORTED='single'\n" +
		"BRAINGEM_TEST_EXISTING=from_file\n" +
		"not-a-pair\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("BRAINGEM_TEST_PLAIN", "")
	t.Setenv("BRAINGEM_TEST_QUOTED", "")
	t.Setenv("BRAINGEM_TEST_EXPORTED", "")
	os.Unsetenv("BRAINGEM_TEST_PLAIN")
	os.Unsetenv("BRAINGEM_TEST_QUOTED")
	os.Unsetenv("BRAINGEM_TEST_EXPORTED")
	t.Setenv("BRAINGEM_TEST_EXISTING", "already_set")

	if err := Load(envPath); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if got := os.Getenv("BRAINGEM_TEST_PLAIN"); got != "loaded" {
		t.Fatalf("plain = %q, want loaded", got)
	}
	if got := os.Getenv("BRAINGEM_TEST_QUOTED"); got != "hello world" {
		t.Fatalf("quoted = %q, want hello world", got)
	}
	if got := os.Getenv("BRAINGEM_TEST_EXPORTED"); got != "single" {
		t.Fatalf("exported = %q, want single", got)
	}
	if got := os.Getenv("BRAINGEM_TEST_EXISTING"); got != "already_set" {
		t.Fatalf("existing = %q, want already_set", got)
	}
}

func TestParseLine(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in  string
		key string
		val string
		ok  bool
	}{
		{"A=1", "A", "1", true},
		{"  B = two ", "B", "two", true},
		{`C="quoted"`, "C", "quoted", true},
		{"export D=4", "D", "4", true},
		{"# comment", "", "", false},
		{"", "", "", false},
		{"=nokey", "", "", false},
		{"noequals", "", "", false},
	}
	for _, tc := range cases {
		key, val, ok := parseLine(tc.in)
		if key != tc.key || val != tc.val || ok != tc.ok {
			t.Fatalf("parseLine(%q) = %q %q %v, want %q %q %v", tc.in, key, val, ok, tc.key, tc.val, tc.ok)
		}
	}
}
