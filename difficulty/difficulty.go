// Package difficulty defines the named strength presets the engine plays at.
package difficulty

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

type Level string

const (
	Easy   Level = "easy"
	Medium Level = "medium"
	Hard   Level = "hard"
)

var ErrUnknownLevel = errors.New("unknown difficulty level")

func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case Easy, Medium, Hard:
		return l, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// Profile is how hard the engine tries for one level.
type Profile struct {
	Name        Level `yaml:"-"`
	SearchDepth int   `yaml:"depth"`
	MoveTimeMs  int   `yaml:"movetime_ms"`
	SkillLevel  int   `yaml:"skill"`
	// EarlyStopThreshold is a centipawn score; once a search at depth 4 or
	// more sees an evaluation beyond it, the engine is told to stop. Zero
	// means never stop early.
	EarlyStopThreshold int `yaml:"early_stop_cp,omitempty"`
}

func (p Profile) HasEarlyStop() bool {
	return p.EarlyStopThreshold > 0
}

func (p Profile) Validate() error {
	switch {
	case p.SearchDepth <= 0:
		return fmt.Errorf("%s: search depth must be positive, got %d", p.Name, p.SearchDepth)
	case p.MoveTimeMs <= 0:
		return fmt.Errorf("%s: move time must be positive, got %d", p.Name, p.MoveTimeMs)
	case p.SkillLevel < 0 || p.SkillLevel > 20:
		return fmt.Errorf("%s: skill level must be within 0..20, got %d", p.Name, p.SkillLevel)
	case p.EarlyStopThreshold < 0:
		return fmt.Errorf("%s: early stop threshold must not be negative", p.Name)
	}
	return nil
}

// Presets maps each level to its profile.
type Presets map[Level]Profile

func DefaultPresets() Presets {
	return Presets{
		Easy:   {Name: Easy, SearchDepth: 5, MoveTimeMs: 200, SkillLevel: 3, EarlyStopThreshold: 50},
		Medium: {Name: Medium, SearchDepth: 8, MoveTimeMs: 500, SkillLevel: 10, EarlyStopThreshold: 150},
		Hard:   {Name: Hard, SearchDepth: 12, MoveTimeMs: 1000, SkillLevel: 20},
	}
}

func (p Presets) Get(l Level) (Profile, error) {
	prof, ok := p[l]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownLevel, l)
	}
	return prof, nil
}

// Levels returns the configured levels, weakest first.
func (p Presets) Levels() []Level {
	levels := lo.Keys(p)
	sort.Slice(levels, func(i, j int) bool {
		a, b := p[levels[i]], p[levels[j]]
		if a.SkillLevel != b.SkillLevel {
			return a.SkillLevel < b.SkillLevel
		}
		return a.SearchDepth < b.SearchDepth
	})
	return levels
}

func (p Presets) String() string {
	return strings.Join(lo.Map(p.Levels(), func(l Level, _ int) string {
		prof := p[l]
		es := "off"
		if prof.HasEarlyStop() {
			es = fmt.Sprintf("%dcp", prof.EarlyStopThreshold)
		}
		return fmt.Sprintf("%-7s depth %-3d %5dms  skill %-2d early-stop %s",
			l, prof.SearchDepth, prof.MoveTimeMs, prof.SkillLevel, es)
	}), "\n")
}

// LoadPresets reads a yaml file of level overrides on top of the defaults.
// Fields left out keep their default value; early_stop_cp: 0 turns the
// early stop off. For example:
//
//	easy:
//	  depth: 3
//	  movetime_ms: 100
//	  skill: 0
//	  early_stop_cp: 30
//
// An empty path returns the defaults.
func LoadPresets(path string) (Presets, error) {
	presets := DefaultPresets()
	if path == "" {
		return presets, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	overrides := map[string]yaml.Node{}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parsing presets %s: %w", path, err)
	}
	for name, node := range overrides {
		l, err := ParseLevel(name)
		if err != nil {
			return nil, err
		}
		prof := presets[l]
		if err := node.Decode(&prof); err != nil {
			return nil, fmt.Errorf("parsing presets %s: %s: %w", path, name, err)
		}
		prof.Name = l
		if err := prof.Validate(); err != nil {
			return nil, err
		}
		presets[l] = prof
	}
	return presets, nil
}
