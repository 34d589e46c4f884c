package app

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("T_STR", "  value ")
	t.Setenv("T_BOOL", "nope")
	t.Setenv("T_INT", "-3")
	t.Setenv("T_INT32", "7")
	t.Setenv("T_DUR", "90s")
	t.Setenv("T_LIST", "a, b,,c ")

	if got := EnvString("T_STR", "def"); got != "value" {
		t.Fatalf("EnvString=%q", got)
	}
	if got := EnvBool("T_BOOL", true); !got {
		t.Fatalf("EnvBool should fall back on garbage")
	}
	if got := EnvInt("T_INT", 5); got != 5 {
		t.Fatalf("EnvInt=%d want default for non-positive", got)
	}
	if got := EnvInt32("T_INT32", 1); got != 7 {
		t.Fatalf("EnvInt32=%d", got)
	}
	if got := EnvDuration("T_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("EnvDuration=%v", got)
	}
	if got := EnvStringList("T_LIST", nil); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("EnvStringList=%v", got)
	}
	if got := EnvStringList("T_MISSING", []string{"x"}); !reflect.DeepEqual(got, []string{"x"}) {
		t.Fatalf("EnvStringList default=%v", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), log); err != nil {
		t.Fatalf("missing file: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("STUDYROOMS_DOTENV_A=from-file\nSTUDYROOMS_DOTENV_B=from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("STUDYROOMS_DOTENV_A", "")
	t.Setenv("STUDYROOMS_DOTENV_B", "from-env")
	_ = os.Unsetenv("STUDYROOMS_DOTENV_A")

	if err := LoadDotEnv(path, log); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("STUDYROOMS_DOTENV_A"); got != "from-file" {
		t.Fatalf("A=%q want from-file", got)
	}
	if got := os.Getenv("STUDYROOMS_DOTENV_B"); got != "from-env" {
		t.Fatalf("B=%q: existing env must win", got)
	}
}
