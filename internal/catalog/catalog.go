// Package catalog holds the known inventory of power plants and their
// generator-unit codes, and detects labels in fetched data that the
// inventory does not know yet.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/gridwatch/psefetch/internal/models"
)

// Catalog maps a power-plant name to the set of resource codes known to
// belong to it. It is a read-only baseline for novelty detection; the
// detector never mutates it.
type Catalog map[string]map[string]struct{}

// New builds a catalog from a plain plant-to-codes mapping.
func New(plants map[string][]string) Catalog {
	c := make(Catalog, len(plants))
	for plant, codes := range plants {
		set := make(map[string]struct{}, len(codes))
		for _, code := range codes {
			set[code] = struct{}{}
		}
		c[plant] = set
	}
	return c
}

// LoadFile reads a catalog from a YAML file mapping plant names to lists
// of resource codes.
func LoadFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var plants map[string][]string
	if err := yaml.Unmarshal(data, &plants); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	return New(plants), nil
}

// HasPlant reports whether the plant is known.
func (c Catalog) HasPlant(plant string) bool {
	_, ok := c[plant]
	return ok
}

// HasCode reports whether the code is known under the plant.
func (c Catalog) HasCode(plant, code string) bool {
	codes, ok := c[plant]
	if !ok {
		return false
	}
	_, ok = codes[code]
	return ok
}

// Report lists the labels observed in a fetch that the catalog does not
// know. Slices are sorted so the report is reproducible regardless of
// input order.
type Report struct {
	// NewPlants are plant names absent from the catalog entirely. Their
	// resource codes are not additionally listed in NewCodes.
	NewPlants []string
	// NewCodes maps each known plant to the codes observed under it that
	// the catalog lacks. Plants with no new codes are omitted.
	NewCodes map[string][]string
}

// Empty reports whether nothing novel was observed.
func (r Report) Empty() bool {
	return len(r.NewPlants) == 0 && len(r.NewCodes) == 0
}

// Detect compares the (plant, code) pairs observed in records against
// the known catalog. Records missing either label are skipped rather
// than reported as a novel empty string, and duplicate pairs are
// collapsed before comparison. The result does not depend on the order
// of records or on catalog iteration order.
func Detect(records []models.Record, known Catalog) Report {
	observed := make(map[string]map[string]struct{})
	for _, rec := range records {
		if rec.PowerPlant == "" || rec.ResourceCode == "" {
			continue
		}
		codes, ok := observed[rec.PowerPlant]
		if !ok {
			codes = make(map[string]struct{})
			observed[rec.PowerPlant] = codes
		}
		codes[rec.ResourceCode] = struct{}{}
	}

	report := Report{NewCodes: make(map[string][]string)}
	for plant, codes := range observed {
		if !known.HasPlant(plant) {
			report.NewPlants = append(report.NewPlants, plant)
			continue
		}
		var novel []string
		for code := range codes {
			if !known.HasCode(plant, code) {
				novel = append(novel, code)
			}
		}
		if len(novel) > 0 {
			sort.Strings(novel)
			report.NewCodes[plant] = novel
		}
	}
	sort.Strings(report.NewPlants)

	if len(report.NewCodes) == 0 {
		report.NewCodes = nil
	}
	return report
}
