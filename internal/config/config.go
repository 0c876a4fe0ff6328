// Package config provides the data model, validation, and TOML
// persistence for rearfeed's routing configuration.
package config

import "fmt"

// ChannelSource selects which input channel (or blend) feeds one output
// side. This is a closed sum-type-over-enum: the audio callback
// resolves it to a precomputed source index at configuration time
// rather than matching per sample.
type ChannelSource int

const (
	SourceRL ChannelSource = iota
	SourceRR
	SourceFL
	SourceFR
	SourceFC
	SourceLFE
	SourceSL
	SourceSR
	SourceMix // Mix(FL+FR)
	SourceSilence
)

var sourceNames = map[ChannelSource]string{
	SourceRL:      "RL",
	SourceRR:      "RR",
	SourceFL:      "FL",
	SourceFR:      "FR",
	SourceFC:      "FC",
	SourceLFE:     "LFE",
	SourceSL:      "SL",
	SourceSR:      "SR",
	SourceMix:     "Mix",
	SourceSilence: "Silence",
}

func (s ChannelSource) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return "Unknown"
}

// ParseChannelSource converts a config/string representation to a
// ChannelSource.
func ParseChannelSource(s string) (ChannelSource, error) {
	for k, v := range sourceNames {
		if v == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("invalid channel source: %q", s)
}

// EQBand holds one biquad band's user-facing parameters.
type EQBand struct {
	FrequencyHz float64
	GainDB      float64 // clamped to [-12, 12]
	Q           float64
}

// EQ holds the three-band chain: low shelf, mid peak, high shelf.
type EQ struct {
	Low  EQBand
	Mid  EQBand
	High EQBand
}

// DefaultEQ returns the default band layout: flat gain, shelf/peak/shelf.
func DefaultEQ() EQ {
	return EQ{
		Low:  EQBand{FrequencyHz: 200, GainDB: 0, Q: 0.707},
		Mid:  EQBand{FrequencyHz: 1000, GainDB: 0, Q: 1.0},
		High: EQBand{FrequencyHz: 6000, GainDB: 0, Q: 0.707},
	}
}

// ChannelConfig holds one output side's (left or right) settings.
type ChannelConfig struct {
	Source  ChannelSource
	Volume  float64 // [0.0, 2.0]
	Muted   bool
	EQ      EQ
	DelayMs float64 // [0, 200]
}

// DefaultLeftChannel returns the left-side default: source RL.
func DefaultLeftChannel() ChannelConfig {
	return ChannelConfig{Source: SourceRL, Volume: 1.0, EQ: DefaultEQ()}
}

// DefaultRightChannel returns the right-side default: source RR.
func DefaultRightChannel() ChannelConfig {
	return ChannelConfig{Source: SourceRR, Volume: 1.0, EQ: DefaultEQ()}
}

// GlobalConfig holds the master routing settings.
type GlobalConfig struct {
	Volume       float64 // [0.0, 2.0]
	Balance      float64 // [-1.0, 1.0]
	SwapChannels bool
	Enabled      bool
	UpmixAmount  float64 // [0.0, 1.0]
}

// DefaultGlobal returns the default global settings.
func DefaultGlobal() GlobalConfig {
	return GlobalConfig{Volume: 1.0, Balance: 0, SwapChannels: false, Enabled: false, UpmixAmount: 0}
}

// Config is the full persisted routing configuration, the in-memory
// mirror of config.toml.
type Config struct {
	SourceDevice string
	TargetDevice string
	Global       GlobalConfig
	Left         ChannelConfig
	Right        ChannelConfig
}

// Default returns a fresh configuration with every field at its
// documented default.
func Default() *Config {
	return &Config{
		Global: DefaultGlobal(),
		Left:   DefaultLeftChannel(),
		Right:  DefaultRightChannel(),
	}
}

// Clamp enforces every numeric field's valid range, in place.
func (c *Config) Clamp() {
	c.Global.Volume = clamp(c.Global.Volume, 0, 2)
	c.Global.Balance = clamp(c.Global.Balance, -1, 1)
	c.Global.UpmixAmount = clamp(c.Global.UpmixAmount, 0, 1)

	for _, ch := range []*ChannelConfig{&c.Left, &c.Right} {
		ch.Volume = clamp(ch.Volume, 0, 2)
		ch.DelayMs = clamp(ch.DelayMs, 0, 200)
		ch.EQ.Low.GainDB = clamp(ch.EQ.Low.GainDB, -12, 12)
		ch.EQ.Mid.GainDB = clamp(ch.EQ.Mid.GainDB, -12, 12)
		ch.EQ.High.GainDB = clamp(ch.EQ.High.GainDB, -12, 12)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Equal reports structural equality, used by the config round-trip
// test.
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}
	return *c == *other
}
