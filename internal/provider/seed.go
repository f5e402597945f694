package provider

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"eventboard/internal/core"
)

type seedRecord struct {
	ID       int    `yaml:"id"`
	Name     string `yaml:"name"`
	Ancestry string `yaml:"ancestry"`
}

// FileSeed reads a YAML list of {id, name, ancestry} entries.
func FileSeed(path string) Seeder {
	return func(ctx context.Context) ([]core.Record, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}
		return parseSeed(data)
	}
}

func parseSeed(data []byte) ([]core.Record, error) {
	var entries []seedRecord
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	out := make([]core.Record, len(entries))
	for i, e := range entries {
		out[i] = core.Record{ID: e.ID, Name: e.Name, Ancestry: e.Ancestry}
	}
	return out, nil
}
