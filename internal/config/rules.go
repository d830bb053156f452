package config

import (
	"fmt"

	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/spf13/viper"
)

type rulesFile struct {
	Rules []domain.ReorderRule `mapstructure:"rules"`
}

// LoadRules reads reorder rules from a YAML, JSON or TOML file with a
// top-level "rules" list. Duplicates are kept in file order so the caller's
// registration applies last-write-wins.
func LoadRules(path string) ([]domain.ReorderRule, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}

	var f rulesFile
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("decode rules file %s: %w", path, err)
	}
	return f.Rules, nil
}
