// Package config loads the tournament configuration file: the engine
// roster with per-engine options, and the match settings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Option is one engine option. Order matters: options are replayed to the
// engine in file order.
type Option struct {
	Name  string
	Value string
}

// Options is an ordered option list.
type Options []Option

// UnmarshalYAML decodes a YAML mapping without losing key order, which a Go
// map would.
func (o *Options) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("config: options must be a mapping, got %s", node.Tag)
	}
	out := make(Options, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		out = append(out, Option{
			Name:  node.Content[i].Value,
			Value: node.Content[i+1].Value,
		})
	}
	*o = out
	return nil
}

// Search selects how an engine's search is limited.
type Search struct {
	UseClock   *bool `yaml:"use_clock"` // nil means true
	Depth      int   `yaml:"depth"`
	MoveTimeMs int   `yaml:"movetime_ms"`
}

// TimeManagement reports whether remaining clocks are forwarded to the
// engine. Defaults to true when unset.
func (s Search) TimeManagement() bool {
	return s.UseClock == nil || *s.UseClock
}

// Player describes one engine entry in the tournament.
type Player struct {
	Name           string  `yaml:"name"`
	Command        string  `yaml:"command"`
	Options        Options `yaml:"options"`
	MidgameOptions Options `yaml:"midgame_options"`
	Search         Search  `yaml:"search"`
}

// Config is the tournament configuration file.
type Config struct {
	TimeMs        int      `yaml:"time_ms"`
	MidgamePly    int      `yaml:"midgame_ply"`
	ForfeitOnFlag bool     `yaml:"forfeit_on_flag"`
	Players       []Player `yaml:"players"`
}

// Load reads and validates a configuration file.
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return cfg, nil
}

// Parse decodes and validates configuration bytes.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Players) < 2 {
		return fmt.Errorf("config: need at least two players, have %d", len(c.Players))
	}
	seen := make(map[string]struct{})
	for _, p := range c.Players {
		if p.Name == "" {
			return fmt.Errorf("config: player with empty name")
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("config: duplicate player %q", p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Command == "" {
			return fmt.Errorf("config: player %q: empty command", p.Name)
		}
	}
	return nil
}
