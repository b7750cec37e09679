package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/msf-auditor/internal/config"
)

func TestDoctorAllChecksPass(t *testing.T) {
	host, port, _ := newRPCStub(t, func(call rpcCall) map[string]interface{} {
		switch call.Method {
		case "auth.login":
			return map[string]interface{}{"result": "success", "token": "tok-1"}
		case "core.version":
			return map[string]interface{}{"version": "6.4.1-dev", "ruby": "3.1.2", "api": "1.0"}
		case "auth.logout":
			return map[string]interface{}{"result": "success"}
		default:
			return stubError("Unexpected", "method "+call.Method)
		}
	})

	cfg := config.DefaultConfig()
	cfg.AllowedModules = []string{"auxiliary/scanner/http/http_version"}
	cfg.MSF.Host = host
	cfg.MSF.Port = port
	loader := writeCLIConfig(t, cfg)

	stdout, _, err := runCommand(t, newDoctorCmd(loader))
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}

	if !strings.Contains(stdout, "All checks passed") {
		t.Fatalf("missing success line:\n%s", stdout)
	}
	if !strings.Contains(stdout, "6.4.1-dev") {
		t.Fatalf("framework version not reported:\n%s", stdout)
	}
	// AI and history are unconfigured, so both probes are skipped.
	if strings.Count(stdout, "⊘") != 2 {
		t.Fatalf("expected two skipped checks:\n%s", stdout)
	}
}

func TestDoctorStopsOnInvalidConfiguration(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowedModules = []string{"exploit/unix/webapp/example"}
	loader := writeCLIConfig(t, cfg)

	stdout, _, err := runCommand(t, newDoctorCmd(loader))
	if err == nil {
		t.Fatal("doctor should fail on an invalid configuration")
	}
	if !strings.Contains(stdout, "✗") {
		t.Fatalf("failed check not shown:\n%s", stdout)
	}
	// A broken configuration skips the network probes entirely.
	if strings.Contains(stdout, "Metasploit RPC") {
		t.Fatalf("RPC probe should not run after a config failure:\n%s", stdout)
	}
}

func TestDoctorReportsUnreachableRPC(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowedModules = []string{"auxiliary/scanner/http/http_version"}
	cfg.MSF.Host = "127.0.0.1"
	cfg.MSF.Port = 1 // nothing listens here
	loader := writeCLIConfig(t, cfg)

	stdout, _, err := runCommand(t, newDoctorCmd(loader), "--timeout", "2")
	if err == nil {
		t.Fatal("doctor should fail when the daemon is unreachable")
	}
	if !strings.Contains(stdout, "Unreachable") {
		t.Fatalf("unreachable detail missing:\n%s", stdout)
	}
}

func TestDoctorFailsOnMissingConfigFile(t *testing.T) {
	loader := &config.Loader{ConfigPath: filepath.Join(t.TempDir(), "absent.json")}

	_, _, err := runCommand(t, newDoctorCmd(loader))
	if err == nil || !strings.Contains(err.Error(), "configuration") {
		t.Fatalf("expected configuration load error, got %v", err)
	}
}
