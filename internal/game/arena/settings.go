package arena

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings holds the arena tuning content: where players spawn, what they
// carry, and the bounds respawn placement samples from. Settings are
// immutable after loading.
type Settings struct {
	// SpawnPosition is where a joining player appears.
	SpawnPosition Vector3
	// StartingHealth is the health assigned on join. Must be in (0, MaxHealth].
	StartingHealth int
	// StartingWeapon is the weapon tag assigned on join.
	StartingWeapon string
	// Weapons is the set of recognised weapon tags. StartingWeapon must be
	// a member.
	Weapons []string
	// Respawn bounds: eliminated players reappear at a uniform point with
	// X in [MinX, MaxX], Z in [MinZ, MaxZ], Y = Height.
	RespawnMinX, RespawnMaxX float64
	RespawnMinZ, RespawnMaxZ float64
	RespawnHeight            float64
}

// yamlArenaFile is the top-level YAML structure for arena content files.
type yamlArenaFile struct {
	Arena yamlArena `yaml:"arena"`
}

type yamlArena struct {
	Spawn   yamlSpawn   `yaml:"spawn"`
	Respawn yamlRespawn `yaml:"respawn"`
	Loadout yamlLoadout `yaml:"loadout"`
}

type yamlSpawn struct {
	Position yamlVector `yaml:"position"`
}

type yamlVector struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

type yamlRespawn struct {
	MinX   float64 `yaml:"min_x"`
	MaxX   float64 `yaml:"max_x"`
	MinZ   float64 `yaml:"min_z"`
	MaxZ   float64 `yaml:"max_z"`
	Height float64 `yaml:"height"`
}

type yamlLoadout struct {
	StartingWeapon string   `yaml:"starting_weapon"`
	StartingHealth int      `yaml:"starting_health"`
	Weapons        []string `yaml:"weapons"`
}

// DefaultSettings returns the built-in arena tuning: spawn at (0, 2, 0),
// health 100, weapon "rifle", respawn bounds [-10, 10] at height 2.
func DefaultSettings() *Settings {
	return &Settings{
		SpawnPosition:  Vector3{X: 0, Y: 2, Z: 0},
		StartingHealth: MaxHealth,
		StartingWeapon: "rifle",
		Weapons:        []string{"rifle"},
		RespawnMinX:    -10,
		RespawnMaxX:    10,
		RespawnMinZ:    -10,
		RespawnMaxZ:    10,
		RespawnHeight:  2,
	}
}

// LoadSettingsFromFile reads and validates an arena content YAML file.
//
// Precondition: path must point to a valid YAML arena file.
// Postcondition: Returns validated Settings or a non-nil error.
func LoadSettingsFromFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading arena file %s: %w", path, err)
	}

	var file yamlArenaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing arena file %s: %w", path, err)
	}

	s := &Settings{
		SpawnPosition:  Vector3(file.Arena.Spawn.Position),
		StartingHealth: file.Arena.Loadout.StartingHealth,
		StartingWeapon: file.Arena.Loadout.StartingWeapon,
		Weapons:        file.Arena.Loadout.Weapons,
		RespawnMinX:    file.Arena.Respawn.MinX,
		RespawnMaxX:    file.Arena.Respawn.MaxX,
		RespawnMinZ:    file.Arena.Respawn.MinZ,
		RespawnMaxZ:    file.Arena.Respawn.MaxZ,
		RespawnHeight:  file.Arena.Respawn.Height,
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("arena file %s: %w", path, err)
	}
	return s, nil
}

// validate checks all Settings invariants, collecting every violation.
func (s *Settings) validate() error {
	var errs []string

	if s.StartingHealth < 1 || s.StartingHealth > MaxHealth {
		errs = append(errs, fmt.Sprintf("loadout.starting_health must be 1-%d, got %d", MaxHealth, s.StartingHealth))
	}
	if s.StartingWeapon == "" {
		errs = append(errs, "loadout.starting_weapon must not be empty")
	}
	if len(s.Weapons) == 0 {
		errs = append(errs, "loadout.weapons must not be empty")
	} else {
		known := false
		for _, w := range s.Weapons {
			if w == s.StartingWeapon {
				known = true
				break
			}
		}
		if !known {
			errs = append(errs, fmt.Sprintf("loadout.starting_weapon %q is not in loadout.weapons", s.StartingWeapon))
		}
	}
	if s.RespawnMinX > s.RespawnMaxX {
		errs = append(errs, fmt.Sprintf("respawn.min_x %v must not exceed respawn.max_x %v", s.RespawnMinX, s.RespawnMaxX))
	}
	if s.RespawnMinZ > s.RespawnMaxZ {
		errs = append(errs, fmt.Sprintf("respawn.min_z %v must not exceed respawn.max_z %v", s.RespawnMinZ, s.RespawnMaxZ))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid arena settings: %s", strings.Join(errs, "; "))
	}
	return nil
}
