package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/agalue/rearfeed/internal/engineerr"
)

// tomlEQ mirrors the [left_channel.eq] / [right_channel.eq] tables
// names.
type tomlEQ struct {
	LowGain  float64 `toml:"low_gain"`
	MidGain  float64 `toml:"mid_gain"`
	HighGain float64 `toml:"high_gain"`
}

// tomlChannel mirrors one [left_channel]/[right_channel] table.
type tomlChannel struct {
	Source  string  `toml:"source"`
	Volume  float64 `toml:"volume"`
	Muted   bool    `toml:"muted"`
	DelayMs float64 `toml:"delay_ms"`
	EQ      tomlEQ  `toml:"eq"`
}

// tomlFile mirrors the top-level config.toml schema from
type tomlFile struct {
	SourceDevice string      `toml:"source_device"`
	TargetDevice string      `toml:"target_device"`
	Volume       float64     `toml:"volume"`
	Balance      float64     `toml:"balance"`
	Enabled      bool        `toml:"enabled"`
	SwapChannels bool        `toml:"swap_channels"`
	UpmixAmount  float64     `toml:"upmix_amount"`
	Left         tomlChannel `toml:"left_channel"`
	Right        tomlChannel `toml:"right_channel"`
}

func toTomlChannel(c ChannelConfig) tomlChannel {
	return tomlChannel{
		Source:  c.Source.String(),
		Volume:  c.Volume,
		Muted:   c.Muted,
		DelayMs: c.DelayMs,
		EQ: tomlEQ{
			LowGain:  c.EQ.Low.GainDB,
			MidGain:  c.EQ.Mid.GainDB,
			HighGain: c.EQ.High.GainDB,
		},
	}
}

// fromTomlChannel merges a parsed table onto a default channel config,
// so fields absent from the file keep their defaults instead of
// zeroing out. meta/section let it distinguish "key absent" from "key
// present with its zero value" (e.g. an explicit volume = 0.0).
func fromTomlChannel(t tomlChannel, def ChannelConfig, meta toml.MetaData, section string) (ChannelConfig, error) {
	out := def
	if meta.IsDefined(section, "source") {
		src, err := ParseChannelSource(t.Source)
		if err != nil {
			return out, err
		}
		out.Source = src
	}
	if meta.IsDefined(section, "volume") {
		out.Volume = t.Volume
	}
	if meta.IsDefined(section, "muted") {
		out.Muted = t.Muted
	}
	if meta.IsDefined(section, "delay_ms") {
		out.DelayMs = t.DelayMs
	}
	if meta.IsDefined(section, "eq", "low_gain") {
		out.EQ.Low.GainDB = t.EQ.LowGain
	}
	if meta.IsDefined(section, "eq", "mid_gain") {
		out.EQ.Mid.GainDB = t.EQ.MidGain
	}
	if meta.IsDefined(section, "eq", "high_gain") {
		out.EQ.High.GainDB = t.EQ.HighGain
	}
	return out, nil
}

// Load reads and parses path, a TOML file matching tomlFile's schema.
// Missing keys take the built-in defaults; unknown keys are ignored
// (the caller may inspect the returned warnings).
func Load(path string) (*Config, []string, error) {
	cfg := Default()

	var tf tomlFile
	tf.SourceDevice = cfg.SourceDevice
	tf.TargetDevice = cfg.TargetDevice
	tf.Volume = cfg.Global.Volume
	tf.Balance = cfg.Global.Balance
	tf.Enabled = cfg.Global.Enabled
	tf.SwapChannels = cfg.Global.SwapChannels
	tf.UpmixAmount = cfg.Global.UpmixAmount

	meta, err := toml.DecodeFile(path, &tf)
	if err != nil {
		return nil, nil, fmt.Errorf("parse config %s: %w: %v", path, engineerr.ErrConfigParse, err)
	}

	cfg.SourceDevice = tf.SourceDevice
	cfg.TargetDevice = tf.TargetDevice
	cfg.Global = GlobalConfig{
		Volume:       tf.Volume,
		Balance:      tf.Balance,
		Enabled:      tf.Enabled,
		SwapChannels: tf.SwapChannels,
		UpmixAmount:  tf.UpmixAmount,
	}

	cfg.Left, err = fromTomlChannel(tf.Left, DefaultLeftChannel(), meta, "left_channel")
	if err != nil {
		return nil, nil, fmt.Errorf("parse left_channel: %w", err)
	}
	cfg.Right, err = fromTomlChannel(tf.Right, DefaultRightChannel(), meta, "right_channel")
	if err != nil {
		return nil, nil, fmt.Errorf("parse right_channel: %w", err)
	}

	cfg.Clamp()

	var warnings []string
	for _, key := range meta.Undecoded() {
		warnings = append(warnings, fmt.Sprintf("unknown config key ignored: %s", key.String()))
	}

	return cfg, warnings, nil
}

// Save writes cfg to path atomically: encode to path+".tmp", fsync,
// then rename over path
func Save(path string, cfg *Config) error {
	tf := tomlFile{
		SourceDevice: cfg.SourceDevice,
		TargetDevice: cfg.TargetDevice,
		Volume:       cfg.Global.Volume,
		Balance:      cfg.Global.Balance,
		Enabled:      cfg.Global.Enabled,
		SwapChannels: cfg.Global.SwapChannels,
		UpmixAmount:  cfg.Global.UpmixAmount,
		Left:         toTomlChannel(cfg.Left),
		Right:        toTomlChannel(cfg.Right),
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}

	if err := toml.NewEncoder(f).Encode(tf); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode config: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp config: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename config into place: %w", err)
	}
	return nil
}

// DefaultPath returns the config.toml path next to the given
// executable path ("next to the executable").
func DefaultPath(executablePath string) string {
	return filepath.Join(filepath.Dir(executablePath), "config.toml")
}
