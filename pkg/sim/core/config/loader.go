package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/spaceforge/forgesim/pkg/sim/support/util/exception"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/logger"

	"go.uber.org/fx"
)

// Package config provides utilities for loading and managing application configuration
// from various sources, including YAML files and environment variables.

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig // EmbeddedConfig contains the raw bytes of the configuration file.
	EnvFilePath    string         `name:"envFilePath" optional:"true"` // EnvFilePath is the path to the .env file, if any.
}

// loadConfig loads configuration from a file and environment variables.
// This function is intended to be called only once during application startup.
//
// Parameters:
//
//	envFilePath: The path to the .env file.
//	embeddedConfig: The embedded configuration bytes.
//
// Returns:
//
//	A pointer to the loaded Config and an error if loading fails.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	// 1. Defaults come from NewConfig().

	// 2. Load configuration from embedded YAML into a temporary Config struct
	// so YAML values are parsed into their proper types.
	var yamlConfig Config
	if err := yaml.Unmarshal(embeddedConfig, &yamlConfig); err != nil {
		return nil, exception.NewFatalError(moduleName, "failed to unmarshal embedded config", err)
	}

	// 3. Merge YAML configuration into the default configuration. Boolean
	// toggles are re-read with pointer fields so an explicit "enabled: false"
	// can override a true default.
	mergeConfig(cfg, &yamlConfig)
	applyBoolToggles(cfg, embeddedConfig)

	// 4. Override with environment variables (FORGESIM_RUN_TICKS and so on).
	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewFatalError(moduleName, "failed to load config from environment variables", err)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It initializes the application configuration by loading defaults,
// merging from embedded YAML, and overriding with environment variables.
// It also sets the global logger level.
//
// Parameters:
//
//	params: ConfigParams containing dependencies like embedded config and env file path.
//
// Returns:
//
//	A pointer to the initialized Config and an error if configuration loading fails.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.ForgeSim.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.ForgeSim.System.Logging.Level)

	return cfg, nil
}

// LoadConfig loads configuration from configuration files and environment variables.
// This function is expected to be called only once during application startup.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig)
}

// mergeConfig performs a deep merge from sourceConfig into destConfig.
// Values in sourceConfig overwrite corresponding values in destConfig
// if they are not zero/empty values for their type.
func mergeConfig(destConfig, sourceConfig *Config) {
	mergeForgeSimConfig(&destConfig.ForgeSim, &sourceConfig.ForgeSim)
}

// mergeForgeSimConfig merges source into dest, one section at a time.
func mergeForgeSimConfig(dest, source *ForgeSimConfig) {
	if source.Run.Ticks != 0 {
		dest.Run.Ticks = source.Run.Ticks
	}
	if source.Run.DtSeconds != 0 {
		dest.Run.DtSeconds = source.Run.DtSeconds
	}
	if source.Run.RunID != "" {
		dest.Run.RunID = source.Run.RunID
	}

	mergePowerConfig(&dest.Power, &source.Power)
	mergeThermalLoadConfig(&dest.Thermal.Effusion, &source.Thermal.Effusion)
	mergeThermalLoadConfig(&dest.Thermal.Substrate, &source.Thermal.Substrate)

	if source.Orbit.AltitudeM != 0 {
		dest.Orbit.AltitudeM = source.Orbit.AltitudeM
	}
	if source.Orbit.InclinationDeg != 0 {
		dest.Orbit.InclinationDeg = source.Orbit.InclinationDeg
	}
	if source.Orbit.SunThetaDeg != 0 {
		dest.Orbit.SunThetaDeg = source.Orbit.SunThetaDeg
	}

	mergeJobsConfig(&dest.Jobs, &source.Jobs)

	if source.Plume.InputDir != "" {
		dest.Plume.InputDir = source.Plume.InputDir
	}
	if source.Plume.DiagPath != "" {
		dest.Plume.DiagPath = source.Plume.DiagPath
	}
	if source.Plume.CoupleEveryTicks != 0 {
		dest.Plume.CoupleEveryTicks = source.Plume.CoupleEveryTicks
	}
	if source.Plume.BlockSteps != 0 {
		dest.Plume.BlockSteps = source.Plume.BlockSteps
	}
	if len(source.Plume.Params) > 0 {
		dest.Plume.Params = source.Plume.Params
	}

	if source.Growth.GridN != 0 {
		dest.Growth.GridN = source.Growth.GridN
	}
	if source.Growth.MonitorPowerW != 0 {
		dest.Growth.MonitorPowerW = source.Growth.MonitorPowerW
	}
	if source.Growth.OutputFormat != "" {
		dest.Growth.OutputFormat = source.Growth.OutputFormat
	}

	if source.Telemetry.OutputDir != "" {
		dest.Telemetry.OutputDir = source.Telemetry.OutputDir
	}

	if source.Metrics.ListenAddress != "" {
		dest.Metrics.ListenAddress = source.Metrics.ListenAddress
	}

	if source.Tracing.OTLPEndpoint != "" {
		dest.Tracing.OTLPEndpoint = source.Tracing.OTLPEndpoint
	}

	if source.RunLog.Type != "" {
		dest.RunLog.Type = source.RunLog.Type
	}
	if source.RunLog.Database != "" {
		dest.RunLog.Database = source.RunLog.Database
	}
	if source.RunLog.DSN != "" {
		dest.RunLog.DSN = source.RunLog.DSN
	}

	if source.System.Timezone != "" {
		dest.System.Timezone = source.System.Timezone
	}
	if source.System.Logging.Level != "" {
		dest.System.Logging.Level = source.System.Logging.Level
	}
}

// rawToggles shadows the boolean keys of the config tree with pointer fields.
// Unmarshalling into Config loses the difference between an absent key and an
// explicit false; the pointers keep it.
type rawToggles struct {
	ForgeSim struct {
		Metrics struct {
			Enabled *bool `yaml:"enabled"`
		} `yaml:"metrics"`
		Tracing struct {
			Enabled *bool `yaml:"enabled"`
		} `yaml:"tracing"`
		RunLog struct {
			Enabled *bool `yaml:"enabled"`
		} `yaml:"runlog"`
	} `yaml:"forgesim"`
}

// applyBoolToggles overrides the enabled flags with values present in the YAML.
func applyBoolToggles(cfg *Config, embeddedConfig EmbeddedConfig) {
	var raw rawToggles
	if err := yaml.Unmarshal(embeddedConfig, &raw); err != nil {
		return
	}
	if raw.ForgeSim.Metrics.Enabled != nil {
		cfg.ForgeSim.Metrics.Enabled = *raw.ForgeSim.Metrics.Enabled
	}
	if raw.ForgeSim.Tracing.Enabled != nil {
		cfg.ForgeSim.Tracing.Enabled = *raw.ForgeSim.Tracing.Enabled
	}
	if raw.ForgeSim.RunLog.Enabled != nil {
		cfg.ForgeSim.RunLog.Enabled = *raw.ForgeSim.RunLog.Enabled
	}
}

// mergePowerConfig merges source into dest.
func mergePowerConfig(dest, source *PowerConfig) {
	if source.Battery.CapacityWh != 0 {
		dest.Battery.CapacityWh = source.Battery.CapacityWh
	}
	if source.Battery.MaxChargeRateW != 0 {
		dest.Battery.MaxChargeRateW = source.Battery.MaxChargeRateW
	}
	if source.Battery.MaxDischargeRateW != 0 {
		dest.Battery.MaxDischargeRateW = source.Battery.MaxDischargeRateW
	}
	if source.Solar.Efficiency != 0 {
		dest.Solar.Efficiency = source.Solar.Efficiency
	}
	if source.Solar.BaseInputW != 0 {
		dest.Solar.BaseInputW = source.Solar.BaseInputW
	}
	if source.BaselineLoadW != 0 {
		dest.BaselineLoadW = source.BaselineLoadW
	}
	if source.HeaterBank.MaxDrawW != 0 {
		dest.HeaterBank.MaxDrawW = source.HeaterBank.MaxDrawW
	}
	if source.HeaterBank.PrioritySubstrate {
		dest.HeaterBank.PrioritySubstrate = true
	}
}

// mergeThermalLoadConfig merges source into dest.
func mergeThermalLoadConfig(dest, source *ThermalLoadConfig) {
	if source.CapacitanceJPerK != 0 {
		dest.CapacitanceJPerK = source.CapacitanceJPerK
	}
	if source.LossWPerK != 0 {
		dest.LossWPerK = source.LossWPerK
	}
	if source.AmbientK != 0 {
		dest.AmbientK = source.AmbientK
	}
}

// mergeJobsConfig merges source into dest.
func mergeJobsConfig(dest, source *JobsConfig) {
	if source.TablePath != "" {
		dest.TablePath = source.TablePath
	}
	if source.WarmupMaxTicks != 0 {
		dest.WarmupMaxTicks = source.WarmupMaxTicks
	}
	if source.WarmupTargetFraction != 0 {
		dest.WarmupTargetFraction = source.WarmupTargetFraction
	}
	if source.TrivialAmbientK != 0 {
		dest.TrivialAmbientK = source.TrivialAmbientK
	}
	if source.FluxFractionThreshold != 0 {
		dest.FluxFractionThreshold = source.FluxFractionThreshold
	}
	if source.TempToleranceFraction != 0 {
		dest.TempToleranceFraction = source.TempToleranceFraction
	}
	if source.UnderfluxLimitTicks != 0 {
		dest.UnderfluxLimitTicks = source.UnderfluxLimitTicks
	}
	if source.TempMissLimitTicks != 0 {
		dest.TempMissLimitTicks = source.TempMissLimitTicks
	}
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// It uses the "yaml" tag to determine the environment variable name.
//
// Parameters:
//
//	val: The reflect.Value of the struct to populate.
//	prefix: The prefix for environment variable names (e.g., "FORGESIM_RUN_").
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}

		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField converts an environment variable string to the field's type and assigns it.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("field cannot be set")
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			field.Set(reflect.ValueOf(strings.Split(value, ",")))
		}
	default:
		return fmt.Errorf("unsupported field kind: %s", field.Kind())
	}
	return nil
}
