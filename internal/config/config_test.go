package config

import (
	"os"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() should validate: %v", err)
	}
}

func TestValidateCatchesFailTimeoutViolation(t *testing.T) {
	c := Default()
	c.FailTimeout = Seconds(3 * float64(c.HeartbeatInt))
	if err := c.Validate(); err == nil {
		t.Fatal("expected FAIL_TIMEOUT constraint violation")
	}
}

func TestValidateCatchesHelloTimeoutViolation(t *testing.T) {
	c := Default()
	c.HelloTimeout = c.MonitorStartupGrace
	if err := c.Validate(); err == nil {
		t.Fatal("expected HELLO_TIMEOUT constraint violation")
	}
}

func TestValidateCatchesBullyTimeoutViolation(t *testing.T) {
	c := Default()
	c.BullyTimeout = c.ElectionStartDelay
	if err := c.Validate(); err == nil {
		t.Fatal("expected BULLY_TIMEOUT constraint violation")
	}
}

func TestValidateCatchesConsensusIntervalViolation(t *testing.T) {
	c := Default()
	c.ConsensusInterval = c.ConsensusResponseTimeout
	if err := c.Validate(); err == nil {
		t.Fatal("expected CONSENSUS_INTERVAL constraint violation")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	contents := "heartbeat_int: 0.5\nfail_timeout: 1\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected FAIL_TIMEOUT validation error (1 is not > 3*0.5)")
	}
}
