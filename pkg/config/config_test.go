package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pushback-tool/pushback/pkg/config"
	"github.com/pushback-tool/pushback/pkg/snapshot"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing config must not error, got %v", err)
	}
	if cfg.LargeFileMB != 200 || cfg.Snapshot.Mode != snapshot.None || !cfg.Multiplex {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if _, ok := cfg.Remotes["main"]; !ok {
		t.Error("defaults must include a placeholder 'main' remote")
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
snapshot:
  mode: weekly
remotes:
  nas:
    user: backup
    host: nas.local
    default: true
  offsite:
    user: backup
    host: offsite.example
    port: 2222
    base: /srv/backups
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Snapshot.Mode != snapshot.Weekly {
		t.Errorf("snapshot mode = %s, want weekly", cfg.Snapshot.Mode)
	}
	// Untouched fields keep their defaults.
	if cfg.LargeFileMB != 200 {
		t.Errorf("large_file_mb = %d, want default 200", cfg.LargeFileMB)
	}

	nas := cfg.Remotes["nas"]
	if nas.Name != "nas" {
		t.Errorf("remote name not filled in: %+v", nas)
	}
	if nas.Port != 22 {
		t.Errorf("port default = %d, want 22", nas.Port)
	}
	if !strings.HasPrefix(nas.Base, "~/") {
		t.Errorf("base default = %q, want home-relative", nas.Base)
	}
	if off := cfg.Remotes["offsite"]; off.Port != 2222 || off.Base != "/srv/backups" {
		t.Errorf("explicit remote fields lost: %+v", off)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("remotes: [not: a: map"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := config.Load(path); err == nil {
		t.Error("malformed config must error")
	}
}

func TestLoadRejectsUnknownSnapshotMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("snapshot:\n  mode: fortnightly\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := config.Load(path); err == nil {
		t.Error("unknown snapshot mode must error")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("BK_REMOTE_HOST", "override.example")
	t.Setenv("BK_SNAPSHOT_MODE", "daily")
	t.Setenv("BK_LARGE_FILE_MB", "500")
	t.Setenv("BK_DELETE_REMOTE", "true")

	cfg := config.NewDefault()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if cfg.Snapshot.Mode != snapshot.Daily {
		t.Errorf("snapshot mode = %s, want daily", cfg.Snapshot.Mode)
	}
	if cfg.LargeFileMB != 500 {
		t.Errorf("large_file_mb = %d, want 500", cfg.LargeFileMB)
	}
	if !cfg.DeleteRemote {
		t.Error("delete_remote override not applied")
	}
	if cfg.Remotes["main"].Host != "override.example" {
		t.Errorf("remote host = %q, want override.example", cfg.Remotes["main"].Host)
	}
	// Unset variables leave file values alone.
	if cfg.Remotes["main"].User != "your_user" {
		t.Errorf("remote user changed without an override: %q", cfg.Remotes["main"].User)
	}
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		cfg := config.NewDefault()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *config.Config) {}, false},
		{"negative threshold", func(c *config.Config) { c.LargeFileMB = -1 }, true},
		{"custom mode without hours", func(c *config.Config) {
			c.Snapshot.Mode = snapshot.Custom
			c.Snapshot.CustomHours = 0
		}, true},
		{"custom mode with hours", func(c *config.Config) {
			c.Snapshot.Mode = snapshot.Custom
			c.Snapshot.CustomHours = 6
		}, false},
		{"no remotes", func(c *config.Config) { c.Remotes = nil }, true},
		{"remote missing host", func(c *config.Config) {
			h := c.Remotes["main"]
			h.Host = ""
			c.Remotes["main"] = h
		}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestSelectRemotes(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Remotes["offsite"] = cfg.Remotes["main"]

	byName, err := cfg.SelectRemotes([]string{"offsite"})
	if err != nil || len(byName) != 1 {
		t.Fatalf("SelectRemotes(offsite) = %v, %v", byName, err)
	}

	if _, err := cfg.SelectRemotes([]string{"missing"}); err == nil {
		t.Error("unknown remote name must error")
	}

	deduped, err := cfg.SelectRemotes([]string{"offsite", "offsite", "main"})
	if err != nil {
		t.Fatalf("SelectRemotes(offsite, offsite, main): %v", err)
	}
	if len(deduped) != 2 {
		t.Errorf("repeated name selected %d remotes, want 2", len(deduped))
	}

	defaults, err := cfg.SelectRemotes(nil)
	if err != nil {
		t.Fatalf("SelectRemotes(nil): %v", err)
	}
	if len(defaults) != 2 {
		t.Errorf("default selection = %d remotes, want 2", len(defaults))
	}

	for name, host := range cfg.Remotes {
		host.Default = false
		cfg.Remotes[name] = host
	}
	if _, err := cfg.SelectRemotes(nil); err == nil {
		t.Error("no default remotes must error")
	}
}

func TestGenerateRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	if err := config.Generate(path, config.NewDefault()); err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if err := config.Generate(path, config.NewDefault()); err == nil {
		t.Error("second generate must refuse to overwrite")
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("generated config must load: %v", err)
	}
	if cfg.Remotes["main"].Host != "your.host.example" {
		t.Errorf("round-tripped remote host = %q", cfg.Remotes["main"].Host)
	}
}
