package experiment

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samuelfneumann/rlv/agent/nonlinear/continuous/rlv"
	"github.com/samuelfneumann/rlv/agent/nonlinear/continuous/sac"
	env "github.com/samuelfneumann/rlv/environment"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables which override
// configuration values, e.g. RLV_SAC_BATCH_SIZE=64
const EnvPrefix = "RLV"

// AgentType names the agent an experiment runs
type AgentType string

const (
	RLVAgent AgentType = "rlv"
	SACAgent AgentType = "sac"
)

// Run describes how an experiment is run
type Run struct {
	Agent AgentType `mapstructure:"agent" yaml:"agent"`
	Seed  uint64    `mapstructure:"seed" yaml:"seed"`

	// Total number of environment steps
	Steps int `mapstructure:"steps" yaml:"steps"`

	// Dataset is the path of the dataset which fills the action-free
	// buffer of an RLV agent
	Dataset string `mapstructure:"dataset" yaml:"dataset,omitempty"`

	// Outputs are written to OutputDir
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`

	// The return of the last episode is logged once every LogInterval
	// episodes. If 0, returns are never logged.
	LogInterval int `mapstructure:"log_interval" yaml:"log_interval"`

	// The inverse model is checkpointed once every CheckpointInterval
	// environment steps. If 0, only the final inverse model is saved.
	CheckpointInterval int `mapstructure:"checkpoint_interval" yaml:"checkpoint_interval"`
}

// Config represents a configuration of an experiment
type Config struct {
	Environment env.Config `mapstructure:"environment" yaml:"environment"`
	SAC         sac.Config `mapstructure:"sac" yaml:"sac"`
	RLV         rlv.Config `mapstructure:"rlv" yaml:"rlv"`
	Run         Run        `mapstructure:"run" yaml:"run"`
}

// DefaultConfig returns the default configuration of an experiment
func DefaultConfig() Config {
	return Config{
		Environment: env.Config{
			Name:          "acrobot-continuous",
			Discount:      0.99,
			EpisodeCutoff: 1000,
		},
		SAC: sac.DefaultConfig(),
		RLV: rlv.DefaultConfig(),
		Run: Run{
			Agent:       RLVAgent,
			Steps:       100_000,
			OutputDir:   "out",
			LogInterval: 10,
		},
	}
}

// Validate checks a Config to ensure it is a valid configuration of
// an experiment
func (c Config) Validate() error {
	if c.Environment.Name == "" {
		return fmt.Errorf("validate: environment name must be set")
	}
	if c.Run.Agent != RLVAgent && c.Run.Agent != SACAgent {
		return fmt.Errorf("validate: unknown agent %q", c.Run.Agent)
	}
	if c.Run.Steps <= 0 {
		return fmt.Errorf("validate: steps must be positive")
	}
	if c.Run.LogInterval < 0 || c.Run.CheckpointInterval < 0 {
		return fmt.Errorf("validate: intervals must be non-negative")
	}
	if err := c.SAC.Validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if c.Run.Agent == RLVAgent {
		if err := c.RLV.Validate(); err != nil {
			return fmt.Errorf("validate: %v", err)
		}
	}
	return nil
}

// Load reads the configuration file at path, which may be YAML or
// JSON. Values missing from the file take their defaults, and any
// value can be overridden by an environment variable named with
// EnvPrefix and the value's key, e.g. RLV_RUN_SEED. If the RLV profile
// is not set, the environment name is used.
func Load(path string) (Config, error) {
	v := viper.New()
	if err := setDefaults(v, DefaultConfig()); err != nil {
		return Config{}, fmt.Errorf("load: %v", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("load: could not read config: %v", err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("load: could not decode config: %v", err)
	}
	if c.RLV.Profile == "" {
		c.RLV.Profile = c.Environment.Name
	}

	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("load: %v", err)
	}
	return c, nil
}

// setDefaults registers every value of c as a default of v under the
// key of its yaml tag
func setDefaults(v *viper.Viper, c Config) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("could not encode defaults: %v", err)
	}

	var defaults map[string]interface{}
	if err := yaml.Unmarshal(raw, &defaults); err != nil {
		return fmt.Errorf("could not decode defaults: %v", err)
	}

	for section, values := range defaults {
		fields, ok := values.(map[string]interface{})
		if !ok {
			v.SetDefault(section, values)
			continue
		}
		for key, value := range fields {
			v.SetDefault(section+"."+key, value)
		}
	}

	// Keys omitted from the YAML when empty
	v.SetDefault("rlv.profile", c.RLV.Profile)
	v.SetDefault("run.dataset", c.Run.Dataset)
	return nil
}

// Write writes c to w as YAML
func (c Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("write: %v", err)
	}
	return enc.Close()
}

// WriteFile writes c to the file at path as YAML
func (c Config) WriteFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writeFile: could not create file: %v", err)
	}
	defer file.Close()

	return c.Write(file)
}
