// Package config loads and validates the node's timing parameters
// from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the node's timing parameters, in seconds on disk but
// exposed as time.Duration for call sites.
type Config struct {
	HeartbeatInt             Seconds `yaml:"heartbeat_int"`
	FailTimeout              Seconds `yaml:"fail_timeout"`
	HelloTimeout             Seconds `yaml:"hello_timeout"`
	BullyTimeout             Seconds `yaml:"bully_timeout"`
	ElectionStartDelay       Seconds `yaml:"election_start_delay"`
	LeaderDeathDelay         Seconds `yaml:"leader_death_delay"`
	BullyPollInterval        Seconds `yaml:"bully_poll_interval"`
	LeaderStartupDelay       Seconds `yaml:"leader_startup_delay"`
	MonitorInterval          Seconds `yaml:"monitor_interval"`
	MonitorStartupGrace      Seconds `yaml:"monitor_startup_grace"`
	ConsensusInterval        Seconds `yaml:"consensus_interval"`
	ConsensusResponseTimeout Seconds `yaml:"consensus_response_timeout"`
	ValueProcessDelay        Seconds `yaml:"value_process_delay"`
	StartConsensusDelay      Seconds `yaml:"start_consensus_delay"`
	RoundStart               int64   `yaml:"round_start"`

	// Timing for the leader's round reconciliation handshake
	// (ROUND_QUERY/ROUND_RESPONSE) run right after a handover.
	LeaderQueryDelay  Seconds `yaml:"leader_query_delay"`
	RoundQueryTimeout Seconds `yaml:"round_query_timeout"`

	MainLoopInterval   Seconds `yaml:"main_loop_interval"`
	NetworkLogInterval Seconds `yaml:"network_log_interval"`
	NetworkRetryDelay  Seconds `yaml:"network_retry_delay"`
	LeaderSearchInterval Seconds `yaml:"leader_search_interval"`
	StatusLogInterval Seconds `yaml:"status_log_interval"`
}

// Seconds is a duration stored on disk as a fractional number of
// seconds.
type Seconds float64

// Duration converts the on-disk value to a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(float64(s) * float64(time.Second))
}

// Default returns the "demo" profile: conservative timings meant for
// local testing, named so it sits alongside the slow/normal/fast
// presets the speed-configuration tool also offers.
func Default() Config {
	return Config{
		HeartbeatInt:             0.3,
		FailTimeout:              4,
		HelloTimeout:             2,
		BullyTimeout:             3,
		ElectionStartDelay:       0.3,
		LeaderDeathDelay:         0.1,
		BullyPollInterval:        0.1,
		LeaderStartupDelay:       2,
		MonitorInterval:          0.3,
		MonitorStartupGrace:      5,
		ConsensusInterval:        8,
		ConsensusResponseTimeout: 3,
		ValueProcessDelay:        1.0,
		StartConsensusDelay:      1.5,
		RoundStart:               0,
		LeaderQueryDelay:         2,
		RoundQueryTimeout:        4,
		MainLoopInterval:         1,
		NetworkLogInterval:       5,
		NetworkRetryDelay:        1,
		LeaderSearchInterval:     5,
		StatusLogInterval:        30,
	}
}

// Load reads and validates a YAML config file, falling back to
// Default() for any key the file omits.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the timing parameters' required inter-relationships,
// returning the first violated constraint.
func (c Config) Validate() error {
	if !(c.FailTimeout > 3*c.HeartbeatInt) {
		return fmt.Errorf("config: FAIL_TIMEOUT (%v) must be > 3*HEARTBEAT_INT (%v)", c.FailTimeout, 3*c.HeartbeatInt)
	}
	if !(c.HelloTimeout < c.MonitorStartupGrace) {
		return fmt.Errorf("config: HELLO_TIMEOUT (%v) must be < MONITOR_STARTUP_GRACE (%v)", c.HelloTimeout, c.MonitorStartupGrace)
	}
	if !(c.BullyTimeout > c.ElectionStartDelay) {
		return fmt.Errorf("config: BULLY_TIMEOUT (%v) must be > ELECTION_START_DELAY (%v)", c.BullyTimeout, c.ElectionStartDelay)
	}
	if !(c.MonitorStartupGrace > c.HelloTimeout) {
		return fmt.Errorf("config: MONITOR_STARTUP_GRACE (%v) must be > HELLO_TIMEOUT (%v)", c.MonitorStartupGrace, c.HelloTimeout)
	}
	if !(c.ConsensusInterval > c.ConsensusResponseTimeout) {
		return fmt.Errorf("config: CONSENSUS_INTERVAL (%v) must be > CONSENSUS_RESPONSE_TIMEOUT (%v)", c.ConsensusInterval, c.ConsensusResponseTimeout)
	}
	if !(c.ConsensusResponseTimeout > c.ValueProcessDelay) {
		return fmt.Errorf("config: CONSENSUS_RESPONSE_TIMEOUT (%v) must be > VALUE_PROCESS_DELAY (%v)", c.ConsensusResponseTimeout, c.ValueProcessDelay)
	}
	return nil
}
