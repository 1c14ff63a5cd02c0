// meta/meta.go
package meta

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"uct/toyworld"

	"gopkg.in/yaml.v3"
)

const (
	EvaluationImmediate = "immediate"
	EvaluationRollout   = "rollout"

	BackupBellman    = "bellman"
	BackupMonteCarlo = "montecarlo"
)

// Config is everything an experiment needs, loaded with priority
// env > file > defaults.
type Config struct {
	Search     SearchConfig     `yaml:"search" json:"search"`
	World      WorldConfig      `yaml:"world" json:"world"`
	Experiment ExperimentConfig `yaml:"experiment" json:"experiment"`
	Log        LogConfig        `yaml:"log" json:"log"`
}

type SearchConfig struct {
	Iterations  int     `yaml:"iterations" json:"iterations"`
	Exploration float64 `yaml:"exploration" json:"exploration"`
	Gamma       float64 `yaml:"gamma" json:"gamma"`
	Evaluation  string  `yaml:"evaluation" json:"evaluation"`
	// Cutoff limits rollouts to this many steps, 0 runs them to a terminal state.
	Cutoff int    `yaml:"cutoff" json:"cutoff"`
	Backup string `yaml:"backup" json:"backup"`
	Seed   uint64 `yaml:"seed" json:"seed"`
}

// WorldConfig describes the toy world. The agent starts with PriorCount
// pseudo-counts per outcome, spread uniformly or, with TrueBelief, along the
// true transition probabilities.
type WorldConfig struct {
	Width          int               `yaml:"width" json:"width"`
	Height         int               `yaml:"height" json:"height"`
	Start          toyworld.Position `yaml:"start" json:"start"`
	GoalDistance   int               `yaml:"goal_distance" json:"goal_distance"`
	ManualDistance int               `yaml:"manual_distance" json:"manual_distance"`
	Intrinsic      bool              `yaml:"intrinsic" json:"intrinsic"`
	Noise          float64           `yaml:"noise" json:"noise"`
	TrueBelief     bool              `yaml:"true_belief" json:"true_belief"`
	PriorCount     float64           `yaml:"prior_count" json:"prior_count"`
}

type ExperimentConfig struct {
	Name      string `yaml:"name" json:"name"`
	Runs      int    `yaml:"runs" json:"runs"`
	Steps     int    `yaml:"steps" json:"steps"`
	Parallel  int    `yaml:"parallel" json:"parallel"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`
}

type LogConfig struct {
	Level    string `yaml:"level" json:"level"`
	Progress bool   `yaml:"progress" json:"progress"`
}

func Default() Config {
	return Config{
		Search: SearchConfig{
			Iterations:  500,
			Exploration: 10,
			Gamma:       0.6,
			Evaluation:  EvaluationImmediate,
			Cutoff:      10,
			Backup:      BackupBellman,
			Seed:        1,
		},
		World: WorldConfig{
			Width:          100,
			Height:         100,
			Start:          toyworld.Position{X: 50, Y: 50},
			GoalDistance:   6,
			ManualDistance: 3,
			Intrinsic:      false,
			Noise:          0.2,
			TrueBelief:     false,
			PriorCount:     10,
		},
		Experiment: ExperimentConfig{
			Name:      "toyworld",
			Runs:      10,
			Steps:     100,
			Parallel:  1,
			OutputDir: "experiments",
		},
		Log: LogConfig{
			Level:    "info",
			Progress: true,
		},
	}
}

// Load reads path on top of the defaults, then applies UCT_* environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return config, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := loadFromEnv(&config); err != nil {
		return config, fmt.Errorf("invalid environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// loadFromEnv applies the UCT_* variables that are set. Malformed values are
// reported together.
func loadFromEnv(config *Config) error {
	return errors.Join(
		envInt("UCT_ITERATIONS", &config.Search.Iterations),
		envFloat("UCT_EXPLORATION", &config.Search.Exploration),
		envFloat("UCT_GAMMA", &config.Search.Gamma),
		envString("UCT_EVALUATION", &config.Search.Evaluation),
		envString("UCT_BACKUP", &config.Search.Backup),
		envUint("UCT_SEED", &config.Search.Seed),
		envInt("UCT_RUNS", &config.Experiment.Runs),
		envInt("UCT_STEPS", &config.Experiment.Steps),
		envString("UCT_OUTPUT_DIR", &config.Experiment.OutputDir),
		envString("UCT_LOG_LEVEL", &config.Log.Level),
	)
}

func envString(name string, target *string) error {
	if v := os.Getenv(name); v != "" {
		*target = v
	}
	return nil
}

func envInt(name string, target *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s=%q is not an integer", name, v)
	}
	*target = i
	return nil
}

func envUint(name string, target *uint64) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	u, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s=%q is not an unsigned integer", name, v)
	}
	*target = u
	return nil
}

func envFloat(name string, target *float64) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s=%q is not a number", name, v)
	}
	*target = f
	return nil
}

func (c Config) Validate() error {
	if c.Search.Iterations < 1 {
		return fmt.Errorf("search.iterations must be >= 1")
	}
	if c.Search.Exploration < 0 {
		return fmt.Errorf("search.exploration must be >= 0")
	}
	if c.Search.Gamma < 0 || c.Search.Gamma > 1 {
		return fmt.Errorf("search.gamma must be in [0, 1]")
	}
	switch c.Search.Evaluation {
	case EvaluationImmediate, EvaluationRollout:
	default:
		return fmt.Errorf("search.evaluation must be %q or %q, got %q", EvaluationImmediate, EvaluationRollout, c.Search.Evaluation)
	}
	if c.Search.Cutoff < 0 {
		return fmt.Errorf("search.cutoff must be >= 0")
	}
	switch c.Search.Backup {
	case BackupBellman, BackupMonteCarlo:
	default:
		return fmt.Errorf("search.backup must be %q or %q, got %q", BackupBellman, BackupMonteCarlo, c.Search.Backup)
	}
	if c.World.Width < 1 || c.World.Height < 1 {
		return fmt.Errorf("world.width and world.height must be >= 1")
	}
	if c.World.Noise < 0 || c.World.Noise > 1 {
		return fmt.Errorf("world.noise must be in [0, 1]")
	}
	if c.World.GoalDistance < 0 || c.World.ManualDistance < 0 {
		return fmt.Errorf("world distances must be >= 0")
	}
	start := c.World.Start
	if start.X < 0 || start.X >= c.World.Width || start.Y < 0 || start.Y >= c.World.Height {
		return fmt.Errorf("world.start %v must lie on the %dx%d grid", start, c.World.Width, c.World.Height)
	}
	// Goal and manual are drawn below and left of the start, up to the full
	// distance along either axis.
	reach := max(c.World.GoalDistance, c.World.ManualDistance)
	if start.X < reach || start.Y < reach {
		return fmt.Errorf("world.start %v must be at least %d cells from the left and bottom edges for goal_distance and manual_distance", start, reach)
	}
	if c.World.PriorCount <= 0 {
		return fmt.Errorf("world.prior_count must be > 0")
	}
	if c.Experiment.Runs < 1 {
		return fmt.Errorf("experiment.runs must be >= 1")
	}
	if c.Experiment.Steps < 1 {
		return fmt.Errorf("experiment.steps must be >= 1")
	}
	if c.Experiment.Parallel < 1 {
		return fmt.Errorf("experiment.parallel must be >= 1")
	}
	if c.Experiment.Name == "" {
		return fmt.Errorf("experiment.name must not be empty")
	}
	return nil
}
