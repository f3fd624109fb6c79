package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Network  NetworkConfig  `mapstructure:"network"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Synth    SynthConfig    `mapstructure:"synth"`
	Spectral SpectralConfig `mapstructure:"spectral"`
	DMX      DMXConfig      `mapstructure:"dmx"`
	MIDI     MIDIConfig     `mapstructure:"midi"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Web      WebConfig      `mapstructure:"web"`
}

// ServerConfig holds instance identification
type ServerConfig struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

// NetworkConfig holds the UDP ingest configuration
type NetworkConfig struct {
	IP   string `mapstructure:"ip"`
	Port int    `mapstructure:"port"`
}

// AudioConfig holds the audio output configuration
type AudioConfig struct {
	SampleRate   int     `mapstructure:"sample_rate"`
	BufferSize   int     `mapstructure:"buffer_size"` // frames per slot/callback
	Device       int     `mapstructure:"device"`      // -1 = default output device
	MasterVolume float64 `mapstructure:"master_volume"`
}

// SynthConfig holds additive (IFFT) engine configuration
type SynthConfig struct {
	Mode              string  `mapstructure:"mode"`     // "ifft" or "fft"
	Waveform          string  `mapstructure:"waveform"` // "sin", "saw", "square"
	WaveformOrder     int     `mapstructure:"waveform_order"`
	StartFrequency    float64 `mapstructure:"start_frequency"`
	CommasPerSemitone int     `mapstructure:"commas_per_semitone"`
	ColorInverted     bool    `mapstructure:"color_inverted"`
	RelativeMode      bool    `mapstructure:"relative_mode"`
	NonLinearMapping  bool    `mapstructure:"non_linear_mapping"`
	Gamma             float64 `mapstructure:"gamma"`
	VolumeIncrement   int     `mapstructure:"volume_increment"`
	VolumeDecrement   int     `mapstructure:"volume_decrement"`
	ContrastMin       float64 `mapstructure:"contrast_min"`
	ContrastStride    int     `mapstructure:"contrast_stride"`
	ContrastPower     float64 `mapstructure:"contrast_power"`
}

// SpectralConfig holds polyphonic (FFT) engine configuration
type SpectralConfig struct {
	WindowSize     int     `mapstructure:"window_size"` // moving-average line history depth
	MasterVolume   float64 `mapstructure:"master_volume"`
	VolumeAttack   float64 `mapstructure:"volume_attack"`
	VolumeDecay    float64 `mapstructure:"volume_decay"`
	VolumeSustain  float64 `mapstructure:"volume_sustain"`
	VolumeRelease  float64 `mapstructure:"volume_release"`
	FilterAttack   float64 `mapstructure:"filter_attack"`
	FilterDecay    float64 `mapstructure:"filter_decay"`
	FilterSustain  float64 `mapstructure:"filter_sustain"`
	FilterRelease  float64 `mapstructure:"filter_release"`
	FilterCutoff   float64 `mapstructure:"filter_cutoff"`    // base cutoff Hz
	FilterEnvDepth float64 `mapstructure:"filter_env_depth"` // Hz, may be negative
	LFORate        float64 `mapstructure:"lfo_rate"`
	LFODepth       float64 `mapstructure:"lfo_depth"` // semitones
}

// DMXConfig holds the DMX engine configuration
type DMXConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Port        string  `mapstructure:"port"`
	Silent      bool    `mapstructure:"silent"`
	SpotOffsets []int   `mapstructure:"spot_offsets"` // channel offset per spot, 3 bytes each
	RedFactor   float64 `mapstructure:"red_factor"`
	GreenFactor float64 `mapstructure:"green_factor"`
	BlueFactor  float64 `mapstructure:"blue_factor"`
	Gamma       float64 `mapstructure:"gamma"`
	Smoothing   float64 `mapstructure:"smoothing"`
}

// MIDIConfig holds the control surface configuration
type MIDIConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	DeviceNames []string `mapstructure:"device_names"` // name substrings to auto-connect
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig holds Prometheus metrics configuration
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// WebConfig holds the monitor endpoint configuration
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	// Viper keeps global state; start clean so repeated loads (tests,
	// --validate) cannot inherit a previous file's values.
	viper.Reset()
	setDefaults()

	viper.SetConfigFile(configFile)
	viper.SetEnvPrefix("CISYNTH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover everything.
		if _, statErr := os.Stat(configFile); statErr == nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.name", "cisynth")
	viper.SetDefault("server.description", "CIS line-scan sonification engine")

	viper.SetDefault("network.ip", "0.0.0.0")
	viper.SetDefault("network.port", 55151)

	viper.SetDefault("audio.sample_rate", 48000)
	viper.SetDefault("audio.buffer_size", defaultBufferSize())
	viper.SetDefault("audio.device", -1)
	viper.SetDefault("audio.master_volume", 1.0)

	viper.SetDefault("synth.mode", "ifft")
	viper.SetDefault("synth.waveform", "sin")
	viper.SetDefault("synth.waveform_order", 1)
	viper.SetDefault("synth.start_frequency", 65.41)
	viper.SetDefault("synth.commas_per_semitone", 36)
	viper.SetDefault("synth.color_inverted", true)
	viper.SetDefault("synth.relative_mode", false)
	viper.SetDefault("synth.non_linear_mapping", true)
	viper.SetDefault("synth.gamma", 1.8)
	viper.SetDefault("synth.volume_increment", 1)
	viper.SetDefault("synth.volume_decrement", 1)
	viper.SetDefault("synth.contrast_min", 0.0)
	viper.SetDefault("synth.contrast_stride", 4)
	viper.SetDefault("synth.contrast_power", 1.5)

	viper.SetDefault("spectral.window_size", 1)
	viper.SetDefault("spectral.master_volume", 0.10)
	viper.SetDefault("spectral.volume_attack", 0.01)
	viper.SetDefault("spectral.volume_decay", 0.1)
	viper.SetDefault("spectral.volume_sustain", 0.8)
	viper.SetDefault("spectral.volume_release", 0.2)
	viper.SetDefault("spectral.filter_attack", 0.02)
	viper.SetDefault("spectral.filter_decay", 0.2)
	viper.SetDefault("spectral.filter_sustain", 0.1)
	viper.SetDefault("spectral.filter_release", 0.3)
	viper.SetDefault("spectral.filter_cutoff", 8000.0)
	viper.SetDefault("spectral.filter_env_depth", -7800.0)
	viper.SetDefault("spectral.lfo_rate", 5.0)
	viper.SetDefault("spectral.lfo_depth", 0.25)

	viper.SetDefault("dmx.enabled", true)
	viper.SetDefault("dmx.port", defaultDMXPort())
	viper.SetDefault("dmx.silent", false)
	viper.SetDefault("dmx.spot_offsets", defaultSpotOffsets())
	viper.SetDefault("dmx.red_factor", 1.0)
	viper.SetDefault("dmx.green_factor", 1.5)
	viper.SetDefault("dmx.blue_factor", 1.0)
	viper.SetDefault("dmx.gamma", 1.2)
	viper.SetDefault("dmx.smoothing", 0.80)

	viper.SetDefault("midi.enabled", true)
	viper.SetDefault("midi.device_names", []string{
		"Launchkey Mini", "MIDIIN2 (Launchkey Mini)", "Launchkey Mini MK3",
		"Launchkey Mini MIDI Port",
	})

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.prometheus.enabled", false)
	viper.SetDefault("metrics.prometheus.port", 9095)
	viper.SetDefault("metrics.prometheus.path", "/metrics")

	viper.SetDefault("web.enabled", false)
	viper.SetDefault("web.host", "127.0.0.1")
	viper.SetDefault("web.port", 8095)
}

func defaultSpotOffsets() []int {
	offsets := make([]int, 18)
	for i := range offsets {
		offsets[i] = 10 * (i + 1)
	}
	return offsets
}
