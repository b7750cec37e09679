package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadJSONOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, "aux_modules.json", `{
		"allowed_modules": ["auxiliary/scanner/http/http_version"],
		"msf_config": {"host": "192.0.2.1", "port": 55554, "username": "audit", "password": "pw", "ssl": true},
		"timeout": 120
	}`)

	cfg, err := Loader{ConfigPath: path}.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.MSF.Host != "192.0.2.1" || cfg.MSF.Port != 55554 || !cfg.MSF.SSL {
		t.Fatalf("msf_config not applied: %+v", cfg.MSF)
	}
	if cfg.Timeout != 120 {
		t.Fatalf("timeout not applied: %d", cfg.Timeout)
	}
	// Fields absent from the file keep their defaults.
	if cfg.AI.Provider != ProviderOpenAI {
		t.Fatalf("ai provider default lost: %q", cfg.AI.Provider)
	}
}

func TestLoadYAMLByExtension(t *testing.T) {
	path := writeConfig(t, "aux_modules.yaml", `
allowed_modules:
  - auxiliary/scanner/portscan/tcp
msf_config:
  host: 10.1.2.3
ai_config:
  enabled: true
  provider: anthropic
`)

	cfg, err := Loader{ConfigPath: path}.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(cfg.AllowedModules) != 1 || cfg.AllowedModules[0] != "auxiliary/scanner/portscan/tcp" {
		t.Fatalf("allowed modules not parsed: %v", cfg.AllowedModules)
	}
	if cfg.MSF.Host != "10.1.2.3" {
		t.Fatalf("host not parsed: %q", cfg.MSF.Host)
	}
	if !cfg.AI.Enabled || cfg.AI.Provider != ProviderAnthropic {
		t.Fatalf("ai_config not parsed: %+v", cfg.AI)
	}
	// Defaults survive the partial overlay.
	if cfg.MSF.Port != 55553 || cfg.Timeout != 300 {
		t.Fatalf("defaults lost: port=%d timeout=%d", cfg.MSF.Port, cfg.Timeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Loader{ConfigPath: filepath.Join(t.TempDir(), "absent.json")}.Load()
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := writeConfig(t, "broken.json", `{"allowed_modules": [`)
	if _, err := (Loader{ConfigPath: path}).Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateRejectsUnprefixedModules(t *testing.T) {
	cases := []struct {
		name    string
		modules []string
		wantErr bool
	}{
		{"valid single", []string{"auxiliary/scanner/http/http_version"}, false},
		{"valid multiple", []string{"auxiliary/scanner/http/http_version", "auxiliary/scanner/portscan/tcp"}, false},
		{"empty list", nil, false},
		{"exploit path", []string{"exploit/unix/webapp/example"}, true},
		{"bare name", []string{"scanner/http/http_version"}, true},
		{"prefix mid-string", []string{"modules/auxiliary/scanner/x"}, true},
		{"one bad among good", []string{"auxiliary/scanner/http/http_version", "post/linux/gather/enum_system"}, true},
		{"empty string", []string{""}, true},
		{"namespace without slash", []string{"auxiliary"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.AllowedModules = tc.modules
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("modules %v should be rejected", tc.modules)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("modules %v should be accepted: %v", tc.modules, err)
			}
		})
	}
}

func TestValidateFieldRanges(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.MSF.Port = 0 }},
		{"port too high", func(c *Config) { c.MSF.Port = 70000 }},
		{"unknown provider", func(c *Config) { c.AI.Provider = "llama" }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"negative timeout", func(c *Config) { c.Timeout = -5 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestIsAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedModules = []string{"auxiliary/scanner/http/http_version"}

	if !cfg.IsAllowed("auxiliary/scanner/http/http_version") {
		t.Fatal("listed module should be allowed")
	}
	if cfg.IsAllowed("auxiliary/scanner/portscan/tcp") {
		t.Fatal("unlisted module should not be allowed")
	}
}

func TestWriteSampleRoundTrips(t *testing.T) {
	for _, name := range []string{"sample.json", "sample.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			if err := WriteSample(path); err != nil {
				t.Fatalf("write sample: %v", err)
			}

			cfg, err := Loader{ConfigPath: path}.Load()
			if err != nil {
				t.Fatalf("sample must load back: %v", err)
			}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("sample must validate: %v", err)
			}
			if len(cfg.AllowedModules) == 0 {
				t.Fatal("sample should list at least one module")
			}
		})
	}
}
