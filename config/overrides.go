package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// ApplyOverrides layers the section of a TOML file matching cfg.Name over the
// table values. Keys absent from the file keep their table value.
//
//	[prod.ecs]
//	max_capacity = 20
//
//	[staging.security]
//	enable_waf = false
func ApplyOverrides(cfg *EnvironmentConfig, path string) error {
	if path == "" {
		return nil
	}

	var sections map[string]toml.Primitive
	md, err := toml.DecodeFile(path, &sections)
	if err != nil {
		return fmt.Errorf("decode overrides %s: %w", path, err)
	}

	for name := range sections {
		if _, ok := environments[Environment(name)]; !ok {
			return fmt.Errorf("overrides %s: %w: %s", path, ErrUnknownEnvironment, name)
		}
	}

	section, ok := sections[string(cfg.Name)]
	if !ok {
		return nil
	}

	// cfg is only replaced once the overridden copy validates.
	next := *cfg
	if err := md.PrimitiveDecode(section, &next); err != nil {
		return fmt.Errorf("decode overrides for %s: %w", cfg.Name, err)
	}
	next.Name = cfg.Name

	for _, key := range md.Undecoded() {
		if len(key) > 0 && key[0] == string(cfg.Name) {
			return fmt.Errorf("overrides %s: unknown key %s", path, key.String())
		}
	}

	if err := next.Validate(); err != nil {
		return err
	}
	*cfg = next
	return nil
}
