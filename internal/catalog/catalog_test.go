package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwatch/psefetch/internal/models"
)

func obs(plant, code string) models.Record {
	return models.Record{
		DtimeUTC:     models.Timestamp{Time: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		PowerPlant:   plant,
		ResourceCode: code,
	}
}

func knownCatalog() Catalog {
	return New(map[string][]string{
		"Kozienice": {"KOZ11S02", "KOZ11S06"},
		"Belchatow": {"BEL 2-02"},
	})
}

func TestDetectEmptyInput(t *testing.T) {
	report := Detect(nil, knownCatalog())
	assert.True(t, report.Empty())
	assert.Empty(t, report.NewPlants)
	assert.Empty(t, report.NewCodes)
}

func TestDetectNothingNovel(t *testing.T) {
	records := []models.Record{
		obs("Kozienice", "KOZ11S02"),
		obs("Belchatow", "BEL 2-02"),
	}
	assert.True(t, Detect(records, knownCatalog()).Empty())
}

func TestDetectNewPlantNotDoubleReported(t *testing.T) {
	records := []models.Record{
		obs("Kozienice", "KOZ99S99"), // new code under a known plant
		obs("Opole", "OPL 1-01"),     // entirely new plant
		obs("Opole", "OPL 1-02"),
	}

	report := Detect(records, knownCatalog())

	assert.Equal(t, []string{"Opole"}, report.NewPlants)
	require.Len(t, report.NewCodes, 1)
	assert.Equal(t, []string{"KOZ99S99"}, report.NewCodes["Kozienice"])
	// The new plant's codes must not additionally appear as new codes.
	_, listed := report.NewCodes["Opole"]
	assert.False(t, listed)
}

func TestDetectDeduplicatesPairs(t *testing.T) {
	records := []models.Record{
		obs("Kozienice", "KOZ99S99"),
		obs("Kozienice", "KOZ99S99"),
		obs("Kozienice", "KOZ99S99"),
	}

	report := Detect(records, knownCatalog())
	assert.Equal(t, []string{"KOZ99S99"}, report.NewCodes["Kozienice"])
}

func TestDetectSkipsRecordsMissingLabels(t *testing.T) {
	records := []models.Record{
		obs("", "KOZ99S99"),
		obs("Kozienice", ""),
		obs("", ""),
	}

	report := Detect(records, knownCatalog())
	assert.True(t, report.Empty(), "missing labels must not become novel empty strings")
}

func TestDetectOrderIndependent(t *testing.T) {
	forward := []models.Record{
		obs("Opole", "OPL 1-02"),
		obs("Opole", "OPL 1-01"),
		obs("Zeran", "ZRN_4-01"),
		obs("Kozienice", "KOZ99S99"),
	}
	reversed := []models.Record{forward[3], forward[2], forward[1], forward[0]}

	a := Detect(forward, knownCatalog())
	b := Detect(reversed, knownCatalog())

	assert.Equal(t, a, b)
	assert.Equal(t, []string{"Opole", "Zeran"}, a.NewPlants)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
Kozienice:
  - KOZ11S02
  - KOZ11S06
Belchatow:
  - "BEL 2-02"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cat, err := LoadFile(path)
	require.NoError(t, err)

	assert.True(t, cat.HasPlant("Kozienice"))
	assert.True(t, cat.HasCode("Kozienice", "KOZ11S06"))
	assert.True(t, cat.HasCode("Belchatow", "BEL 2-02"))
	assert.False(t, cat.HasPlant("Opole"))
	assert.False(t, cat.HasCode("Kozienice", "BEL 2-02"))
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
