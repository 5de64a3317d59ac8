package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix         = "PITWALL"
	defaultConfigPath = "config/config.yaml"
)

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME}).
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional fields.
// A missing file is not an error; defaults and environment variables apply.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.MergeConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pitwall")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "pitwall")
	v.SetDefault("database.user", "pitwall")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_connections", 2)

	v.SetDefault("tracking.driver", "sqlite")
	v.SetDefault("tracking.dsn", "file:pitwall-runs.db")
	v.SetDefault("tracking.artifact_root", "artifacts")

	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.cache_ttl_seconds", 300)
	v.SetDefault("storage.http_timeout_seconds", 60)
	v.SetDefault("storage.max_retries", 3)
	v.SetDefault("storage.rate_limit", 5.0)

	v.SetDefault("normalization.partition_key", "year")
	v.SetDefault("normalization.missing_policy", "skip")
	v.SetDefault("normalization.workers", 0)

	v.SetDefault("constructor.experiment", "constructor-championship")
	v.SetDefault("constructor.normalize_columns", []string{
		"avg_fastestspeed", "avg_fastestlap", "race_count", "engineproblem", "avgpoints_c",
		"unique_drivers", "position", "lag1_avg", "lag2_avg", "lag1_pst", "lag2_pst",
	})
	v.SetDefault("constructor.fill_columns", []string{"race_count", "lag1_avg"})
	v.SetDefault("constructor.input_columns", []string{"race_count", "lag1_avg"})
	v.SetDefault("constructor.label", "champion")
	v.SetDefault("constructor.output_table", "constructor_champion_predictions")
	v.SetDefault("constructor.output_columns", constructorOutputColumns())
	v.SetDefault("constructor.num_folds", 5)
	v.SetDefault("constructor.seed", 42)
	v.SetDefault("constructor.reg_params", []float64{0})
	v.SetDefault("constructor.elastic_net_params", []float64{0})
	v.SetDefault("constructor.max_iter", 100)

	v.SetDefault("driver.experiment", "driver-race-points")
	v.SetDefault("driver.label", "driverRacePoints")
	v.SetDefault("driver.year_column", "raceYear")
	v.SetDefault("driver.drop_columns", []string{
		"_c0", "totPitstopDur", "avgPitstopDur", "countPitstops", "firstPitstopLap", "raceDate",
		"constSeasonPoints", "resultId", "positionOrder", "finishPosition", "drivSecPosCat",
		"raceLaps", "driverSeasonPoints", "drivSecPos", "drivSecPosRM3", "drivSecPosRM1",
	})
	v.SetDefault("driver.sentinel_columns", []string{
		"finishPosition", "finishPositionRM1", "finishPositionRM2", "finishPositionRM3",
	})
	v.SetDefault("driver.sentinel_value", 999)
	v.SetDefault("driver.sentinel_replacement", 20)
	v.SetDefault("driver.train_max_year", 2010)
	v.SetDefault("driver.test_min_year", 2011)
	v.SetDefault("driver.test_max_year", 2017)
	v.SetDefault("driver.n_estimators", 1000)
	v.SetDefault("driver.max_depth", 5)
	v.SetDefault("driver.random_state", 20)
	v.SetDefault("driver.output_table", "driver_race_points_predictions")
	v.SetDefault("driver.second_place_low", 15)
	v.SetDefault("driver.second_place_high", 19)
	v.SetDefault("driver.second_place_points", 18)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.job_timeout_minutes", 60)
}

// constructorOutputColumns lists the published constructor table columns.
// Grand prix participation flags exist for gp_1..gp_64 and a few later rounds.
func constructorOutputColumns() []string {
	cols := []string{
		"year", "constructorId", "avg_fastestspeed", "avg_fastestlap", "race_count",
		"engineproblem", "avgpoints_c", "participation",
	}
	for i := 1; i <= 64; i++ {
		cols = append(cols, fmt.Sprintf("gp_%d", i))
	}
	cols = append(cols, "gp_68", "gp_69", "gp_70", "gp_71", "gp_73")
	return append(cols,
		"unique_drivers", "position", "lag1_avg", "lag2_avg",
		"lag1_ptc", "lag2_ptc", "lag1_pst", "lag2_pst",
	)
}
