package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Addr != "127.0.0.1:17890" {
		t.Errorf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.StartingCP != 0 || cfg.FirstTurn != 1 {
		t.Errorf("expected canonical variant, got cp=%d first_turn=%d", cfg.StartingCP, cfg.FirstTurn)
	}
	if cfg.FormulaTimeout != time.Second {
		t.Errorf("expected 1s formula timeout, got %s", cfg.FormulaTimeout)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("expected 30s request timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.CORSOrigin != "*" || cfg.SessionLimit != 64 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SCORER_ADDR", ":9000")
	t.Setenv("SCORER_STARTING_CP", "3")
	t.Setenv("SCORER_FIRST_TURN", "0")
	t.Setenv("SCORER_FORMULA_TIMEOUT", "250ms")
	t.Setenv("SCORER_SESSION_LIMIT", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.StartingCP != 3 || cfg.FirstTurn != 0 || cfg.SessionLimit != 4 {
		t.Errorf("expected env overrides, got %+v", cfg)
	}
	if cfg.FormulaTimeout != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %s", cfg.FormulaTimeout)
	}

	opts := cfg.MatchOptions()
	if opts.StartingCP != 3 || opts.FirstTurn != 0 {
		t.Errorf("expected pre-game variant options, got %+v", opts)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("SCORER_STARTING_CP", "lots")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"first turn 2", map[string]string{"SCORER_FIRST_TURN": "2"}, "SCORER_FIRST_TURN"},
		{"negative cp", map[string]string{"SCORER_STARTING_CP": "-1"}, "SCORER_STARTING_CP"},
		{"zero sessions", map[string]string{"SCORER_SESSION_LIMIT": "0"}, "SCORER_SESSION_LIMIT"},
		{"zero timeout", map[string]string{"SCORER_FORMULA_TIMEOUT": "0s"}, "SCORER_FORMULA_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error naming %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestResolveDBPath(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{DBPath: filepath.Join(dir, "nested", "match.db")}

	path, err := cfg.ResolveDBPath()
	if err != nil {
		t.Fatalf("ResolveDBPath failed: %v", err)
	}
	if path != cfg.DBPath {
		t.Errorf("expected explicit path, got %q", path)
	}

	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	path, err = Config{}.ResolveDBPath()
	if err != nil {
		t.Fatalf("ResolveDBPath failed: %v", err)
	}
	if filepath.Base(path) != dbFileName || !strings.Contains(path, appDirName) {
		t.Errorf("expected default path under %s, got %q", appDirName, path)
	}
}
