package config

// Package config provides structures and utilities for managing simulation configuration.

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
// This is used when loading configuration from an embedded source (e.g., a compiled binary).
type EmbeddedConfig []byte

// RunConfig holds run-level settings: tick cadence, run length and identity.
type RunConfig struct {
	// Ticks is the number of engine ticks to execute.
	Ticks int `yaml:"ticks"`
	// DtSeconds is the duration of one tick in seconds.
	DtSeconds float64 `yaml:"dt_seconds"`
	// RunID identifies the run in artifact paths. Generated when empty.
	RunID string `yaml:"run_id"`
}

// BatteryConfig holds the energy store parameters.
type BatteryConfig struct {
	CapacityWh        float64 `yaml:"capacity_wh"`          // CapacityWh is the battery capacity in watt-hours.
	MaxChargeRateW    float64 `yaml:"max_charge_rate_w"`    // MaxChargeRateW limits charging speed in watts.
	MaxDischargeRateW float64 `yaml:"max_discharge_rate_w"` // MaxDischargeRateW limits discharge output in watts.
}

// SolarConfig holds the solar array parameters.
type SolarConfig struct {
	Efficiency float64 `yaml:"efficiency"`   // Efficiency is the DC electrical conversion efficiency (0..1).
	BaseInputW float64 `yaml:"base_input_w"` // BaseInputW is raw incident solar power at full sun in watts.
}

// HeaterBankConfig holds the multi-consumer heater allocator parameters.
type HeaterBankConfig struct {
	// MaxDrawW is the bank's total draw ceiling in watts; competing demands are
	// proportionally scaled down to it.
	MaxDrawW float64 `yaml:"max_draw_w"`
	// PrioritySubstrate selects which consumer draws from the bus first.
	// The first draw has first claim on bus availability; the later one absorbs
	// the shortfall and falls back to the battery.
	PrioritySubstrate bool `yaml:"priority_substrate"`
}

// ThermalLoadConfig holds the first-order thermal response constants of one load.
type ThermalLoadConfig struct {
	CapacitanceJPerK float64 `yaml:"capacitance_j_per_k"` // CapacitanceJPerK is the lumped heat capacity C.
	LossWPerK        float64 `yaml:"loss_w_per_k"`        // LossWPerK is the linear loss coefficient h.
	AmbientK         float64 `yaml:"ambient_k"`           // AmbientK is the environment temperature Tenv.
}

// PowerConfig groups the electrical subsystem settings.
type PowerConfig struct {
	Battery BatteryConfig `yaml:"battery"`
	Solar   SolarConfig   `yaml:"solar"`
	// BaselineLoadW is the always-on housekeeping draw requested before any
	// other consumer each tick.
	BaselineLoadW float64          `yaml:"baseline_load_w"`
	HeaterBank    HeaterBankConfig `yaml:"heater_bank"`
}

// ThermalConfig groups the thermal load settings.
type ThermalConfig struct {
	Effusion  ThermalLoadConfig `yaml:"effusion"`
	Substrate ThermalLoadConfig `yaml:"substrate"`
}

// OrbitConfig holds the circular-orbit illumination model settings.
type OrbitConfig struct {
	AltitudeM      float64 `yaml:"altitude_m"`      // AltitudeM is orbit altitude above mean Earth radius in meters.
	InclinationDeg float64 `yaml:"inclination_deg"` // InclinationDeg is orbit inclination in degrees.
	SunThetaDeg    float64 `yaml:"sun_theta_deg"`   // SunThetaDeg is the Sun direction angle in the reference plane.
}

// JobsConfig holds the job schedule source and health-gate parameters.
type JobsConfig struct {
	// TablePath is the whitespace-delimited job table file.
	TablePath string `yaml:"table_path"`
	// WarmupMaxTicks is the safety clamp on the estimated warm-up window.
	WarmupMaxTicks int `yaml:"warmup_max_ticks"`
	// WarmupTargetFraction is the fraction of target temperature the warm-up
	// estimate aims for on the exponential charging curve.
	WarmupTargetFraction float64 `yaml:"warmup_target_fraction"`
	// TrivialAmbientK gates arming: targets at or below this temperature never arm.
	TrivialAmbientK float64 `yaml:"trivial_ambient_k"`
	// FluxFractionThreshold is the delivered/demanded power ratio below which
	// a tick counts toward the under-flux streak.
	FluxFractionThreshold float64 `yaml:"flux_fraction_threshold"`
	// TempToleranceFraction is the achieved/target temperature ratio below
	// which a tick counts toward the temperature-miss streak.
	TempToleranceFraction float64 `yaml:"temp_tolerance_fraction"`
	// UnderfluxLimitTicks is the consecutive-tick limit for the under-flux gate.
	UnderfluxLimitTicks int `yaml:"underflux_limit_ticks"`
	// TempMissLimitTicks is the consecutive-tick limit for the temperature-miss gate.
	TempMissLimitTicks int `yaml:"temp_miss_limit_ticks"`
}

// PlumeConfig holds settings for the external plume-solver file bridge.
type PlumeConfig struct {
	// InputDir is the directory holding the parameter file consumed by the solver.
	InputDir string `yaml:"input_dir"`
	// DiagPath is the two-column time series the solver writes back.
	DiagPath string `yaml:"diag_path"`
	// CoupleEveryTicks advances the solver every N engine ticks.
	CoupleEveryTicks int `yaml:"couple_every_ticks"`
	// BlockSteps is the number of solver steps per advance.
	BlockSteps int `yaml:"block_steps"`
	// Params overrides the initial parameter deck. Keys are solver variable
	// names; values are parsed leniently (strings, numbers).
	Params map[string]string `yaml:"params"`
}

// GrowthConfig holds the dose monitor settings.
type GrowthConfig struct {
	GridN         int     `yaml:"grid_n"`          // GridN is the wafer dose grid edge length in cells.
	MonitorPowerW float64 `yaml:"monitor_power_w"` // MonitorPowerW is the fixed instrument draw while the beam is on.
	// OutputFormat selects the shutdown artifact: "csv" or "parquet".
	OutputFormat string `yaml:"output_format"`
}

// TelemetryConfig holds the diagnostic sink settings.
type TelemetryConfig struct {
	// OutputDir is the base directory for per-component CSV files.
	// The SF_LOG_DIR environment variable overrides it.
	OutputDir string `yaml:"output_dir"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// ListenAddress exposes /metrics when non-empty (e.g., ":9091").
	ListenAddress string `yaml:"listen_address"`
}

// TracingConfig holds OpenTelemetry trace export settings.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g., "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// RunLogConfig holds settings for the terminal job-record repository.
type RunLogConfig struct {
	Enabled bool `yaml:"enabled"`
	// Type selects the database driver: "sqlite", "postgres" or "mysql".
	Type string `yaml:"type"`
	// Database is the database name, or the file path for sqlite.
	Database string `yaml:"database"`
	// DSN overrides the generated connection string when non-empty.
	DSN string `yaml:"dsn"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// ForgeSimConfig holds all configuration under the "forgesim" top-level key.
type ForgeSimConfig struct {
	Run       RunConfig       `yaml:"run"`
	Power     PowerConfig     `yaml:"power"`
	Thermal   ThermalConfig   `yaml:"thermal"`
	Orbit     OrbitConfig     `yaml:"orbit"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Plume     PlumeConfig     `yaml:"plume"`
	Growth    GrowthConfig    `yaml:"growth"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	RunLog    RunLogConfig    `yaml:"runlog"`
	System    SystemConfig    `yaml:"system"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	// ForgeSim contains the top-level configuration for the simulation runtime.
	ForgeSim ForgeSimConfig `yaml:"forgesim"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new instance of Config with default values.
// The defaults reproduce the reference vehicle: a 1 kWh battery starting at
// 50%, a ~1.7 kW (at full sun) array, a 4 kW heater bank ceiling and a
// 94-minute orbit.
func NewConfig() *Config {
	return &Config{
		ForgeSim: ForgeSimConfig{
			Run: RunConfig{
				Ticks:     500,
				DtSeconds: 60.0,
			},
			Power: PowerConfig{
				Battery: BatteryConfig{
					CapacityWh:        1000.0,
					MaxChargeRateW:    200.0,
					MaxDischargeRateW: 2000.0,
				},
				Solar: SolarConfig{
					Efficiency: 0.30,
					BaseInputW: 5667.0,
				},
				BaselineLoadW: 50.0,
				HeaterBank: HeaterBankConfig{
					MaxDrawW:          4000.0,
					PrioritySubstrate: false,
				},
			},
			Thermal: ThermalConfig{
				Effusion: ThermalLoadConfig{
					CapacitanceJPerK: 1000.0,
					LossWPerK:        1.5,
					AmbientK:         300.0,
				},
				Substrate: ThermalLoadConfig{
					CapacitanceJPerK: 2000.0,
					LossWPerK:        2.0,
					AmbientK:         300.0,
				},
			},
			Orbit: OrbitConfig{
				AltitudeM:      400e3,
				InclinationDeg: 51.6,
				SunThetaDeg:    0.0,
			},
			Jobs: JobsConfig{
				TablePath:             "input/jobs.txt",
				WarmupMaxTicks:        240,
				WarmupTargetFraction:  0.9,
				TrivialAmbientK:       310.0,
				FluxFractionThreshold: 0.99,
				TempToleranceFraction: 0.95,
				UnderfluxLimitTicks:   5,
				TempMissLimitTicks:    5,
			},
			Plume: PlumeConfig{
				InputDir:         "input",
				DiagPath:         "input/data/tmp/wake_diag.csv",
				CoupleEveryTicks: 10,
				BlockSteps:       200,
			},
			Growth: GrowthConfig{
				GridN:         32,
				MonitorPowerW: 5.0,
				OutputFormat:  "csv",
			},
			Telemetry: TelemetryConfig{
				OutputDir: "data/raw",
			},
			Metrics: MetricsConfig{
				Enabled: true,
			},
			RunLog: RunLogConfig{
				Enabled:  true,
				Type:     "sqlite",
				Database: "data/forgesim_runlog.db",
			},
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
		},
	}
}
