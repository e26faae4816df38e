package store

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"

	"github.com/umputun/livedash/pkg/domain"
)

// Seed is a fixture of records per collection
type Seed struct {
	Collections map[string][]domain.Record `yaml:"collections"`
}

// LoadSeed imports records from a YAML fixture file and returns the number of records written
func (s *Store) LoadSeed(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from cli flag
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}
	return s.ImportSeed(ctx, seed)
}

// ImportSeed writes all records of the seed, one transaction per collection
func (s *Store) ImportSeed(ctx context.Context, seed Seed) (int, error) {
	names := make([]string, 0, len(seed.Collections))
	for name := range seed.Collections {
		names = append(names, name)
	}
	sort.Strings(names)

	count := 0
	for _, name := range names {
		recs := seed.Collections[name]
		if len(recs) == 0 {
			continue
		}
		if err := s.PutRecords(ctx, name, recs); err != nil {
			return count, fmt.Errorf("import %s: %w", name, err)
		}
		count += len(recs)
	}
	lgr.Printf("[INFO] imported %d records into %d collections", count, len(names))
	return count, nil
}
