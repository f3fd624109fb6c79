package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for values the engine cannot run with.
func (cfg *Config) Validate() error {
	if cfg.Network.Port <= 0 || cfg.Network.Port > 65535 {
		return fmt.Errorf("network.port must be between 1 and 65535")
	}

	if cfg.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive")
	}
	if cfg.Audio.BufferSize <= 0 || cfg.Audio.BufferSize&(cfg.Audio.BufferSize-1) != 0 {
		return fmt.Errorf("audio.buffer_size must be a positive power of two")
	}
	if cfg.Audio.MasterVolume < 0 || cfg.Audio.MasterVolume > 1 {
		return fmt.Errorf("audio.master_volume must be in [0, 1]")
	}

	mode := strings.ToLower(cfg.Synth.Mode)
	if mode != "ifft" && mode != "fft" {
		return fmt.Errorf("synth.mode must be \"ifft\" or \"fft\"")
	}
	switch strings.ToLower(cfg.Synth.Waveform) {
	case "sin", "saw", "square":
	default:
		return fmt.Errorf("synth.waveform must be sin, saw or square")
	}
	if cfg.Synth.WaveformOrder < 1 {
		return fmt.Errorf("synth.waveform_order must be at least 1")
	}
	if cfg.Synth.StartFrequency <= 0 {
		return fmt.Errorf("synth.start_frequency must be positive")
	}
	if cfg.Synth.CommasPerSemitone <= 0 {
		return fmt.Errorf("synth.commas_per_semitone must be positive")
	}
	if cfg.Synth.ContrastStride <= 0 {
		return fmt.Errorf("synth.contrast_stride must be positive")
	}
	if cfg.Synth.ContrastMin < 0 || cfg.Synth.ContrastMin > 1 {
		return fmt.Errorf("synth.contrast_min must be in [0, 1]")
	}

	if cfg.Spectral.WindowSize < 1 || cfg.Spectral.WindowSize > 64 {
		return fmt.Errorf("spectral.window_size must be between 1 and 64")
	}
	if cfg.Spectral.VolumeSustain < 0 || cfg.Spectral.VolumeSustain > 1 {
		return fmt.Errorf("spectral.volume_sustain must be in [0, 1]")
	}
	if cfg.Spectral.FilterSustain < 0 || cfg.Spectral.FilterSustain > 1 {
		return fmt.Errorf("spectral.filter_sustain must be in [0, 1]")
	}

	if cfg.DMX.Enabled {
		if cfg.DMX.Port == "" {
			return fmt.Errorf("dmx.port is required when dmx is enabled")
		}
		if len(cfg.DMX.SpotOffsets) == 0 {
			return fmt.Errorf("dmx.spot_offsets must list at least one spot")
		}
		for i, off := range cfg.DMX.SpotOffsets {
			// Each spot occupies 3 slots; slot 0 is the start code.
			if off < 1 || off+2 > 512 {
				return fmt.Errorf("dmx.spot_offsets[%d]: offset %d leaves no room for an RGB triple", i, off)
			}
		}
		if cfg.DMX.Smoothing < 0 || cfg.DMX.Smoothing >= 1 {
			return fmt.Errorf("dmx.smoothing must be in [0, 1)")
		}
		if cfg.DMX.Gamma <= 0 {
			return fmt.Errorf("dmx.gamma must be positive")
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		if cfg.Metrics.Prometheus.Port <= 0 || cfg.Metrics.Prometheus.Port > 65535 {
			return fmt.Errorf("metrics.prometheus.port must be between 1 and 65535")
		}
	}

	if cfg.Web.Enabled {
		if cfg.Web.Port <= 0 || cfg.Web.Port > 65535 {
			return fmt.Errorf("web.port must be between 1 and 65535")
		}
	}

	return nil
}
