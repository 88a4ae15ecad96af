// Package config loads the service configuration with viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"modgov/governance"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	LevelDB    LevelDBConfig    `mapstructure:"leveldb"`
	Governance GovernanceConfig `mapstructure:"governance"`
	Rewards    RewardsConfig    `mapstructure:"rewards"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Workers    WorkersConfig    `mapstructure:"workers"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	AppLogFile string `mapstructure:"app_log_file"`
	Level      string `mapstructure:"level"`
}

// LevelDBConfig points at the database directory. Memory keeps everything
// in process and is meant for local runs.
type LevelDBConfig struct {
	Path   string `mapstructure:"path"`
	Memory bool   `mapstructure:"memory"`
}

// GovernanceConfig holds the tunable part of the rules. The report
// threshold and the voting window are fixed and not configurable.
type GovernanceConfig struct {
	ReportCooldown time.Duration `mapstructure:"report_cooldown"`
}

type RewardsConfig struct {
	Vote          int64 `mapstructure:"vote"`
	Report        int64 `mapstructure:"report"`
	ReportPenalty int64 `mapstructure:"report_penalty"`
}

// OracleConfig selects where balances and account ages come from:
// "memory" or "redis".
type OracleConfig struct {
	Driver        string        `mapstructure:"driver"`
	RedisURL      string        `mapstructure:"redis_url"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	MinAccountAge time.Duration `mapstructure:"min_account_age"`
	MinStake      uint64        `mapstructure:"min_stake"`
	MinReputation int64         `mapstructure:"min_reputation"`
}

type WorkersConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	RelayInterval time.Duration `mapstructure:"relay_interval"`
	Concurrency   int           `mapstructure:"concurrency"`
}

const envPrefix = "MODGOV"

func setDefaults(v *viper.Viper) {
	d := governance.DefaultParams()

	v.SetDefault("server.port", 8080)
	v.SetDefault("log.app_log_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("leveldb.path", "data/leveldb")
	v.SetDefault("leveldb.memory", false)

	v.SetDefault("governance.report_cooldown", d.ReportCooldown)

	v.SetDefault("rewards.vote", d.VoteReward)
	v.SetDefault("rewards.report", d.ReportReward)
	v.SetDefault("rewards.report_penalty", d.ReportPenalty)

	v.SetDefault("oracle.driver", "memory")
	v.SetDefault("oracle.redis_url", "redis://localhost:6379/0")
	v.SetDefault("oracle.lock_ttl", 48*time.Hour)
	v.SetDefault("oracle.min_account_age", 0)
	v.SetDefault("oracle.min_stake", 0)
	v.SetDefault("oracle.min_reputation", -25)

	v.SetDefault("workers.sweep_interval", time.Minute)
	v.SetDefault("workers.relay_interval", 30*time.Second)
	v.SetDefault("workers.concurrency", 4)
}

// Load reads the yaml file at path, applies MODGOV_* environment overrides
// (MODGOV_SERVER_PORT, MODGOV_ORACLE_DRIVER, ...) and validates the result.
// An empty path uses defaults and the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	case !c.LevelDB.Memory && c.LevelDB.Path == "":
		return fmt.Errorf("config: leveldb.path is required")
	case c.Governance.ReportCooldown < 0:
		return fmt.Errorf("config: governance.report_cooldown must not be negative")
	case c.Workers.SweepInterval <= 0 || c.Workers.RelayInterval <= 0:
		return fmt.Errorf("config: worker intervals must be positive")
	}
	switch c.Oracle.Driver {
	case "memory":
	case "redis":
		if c.Oracle.RedisURL == "" {
			return fmt.Errorf("config: oracle.redis_url is required for the redis driver")
		}
	default:
		return fmt.Errorf("config: unknown oracle.driver %q", c.Oracle.Driver)
	}
	return nil
}

// Params converts the governance and rewards sections for governance.New.
func (c *Config) Params() governance.Params {
	return governance.Params{
		ReportThreshold: governance.DefaultReportThreshold,
		VotingWindow:    governance.DefaultVotingWindow,
		ReportCooldown:  c.Governance.ReportCooldown,
		VoteReward:      c.Rewards.Vote,
		ReportReward:    c.Rewards.Report,
		ReportPenalty:   c.Rewards.ReportPenalty,
	}
}
