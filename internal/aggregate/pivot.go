package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/gridwatch/psefetch/internal/models"
)

// PlantTable is the per-plant export layout: one row per (date, hour)
// that has data, one column per resource code, cells holding the hourly
// mean generation. Cells with no contributing readings are nil.
type PlantTable struct {
	Plant   string
	Columns []string
	Rows    []PlantRow
}

// PlantRow is one date/hour row of a PlantTable. Cells is aligned with
// the table's Columns.
type PlantRow struct {
	Date  string
	Hour  string
	Cells []*float64
}

type rowKey struct {
	date string
	hour string
}

// PivotByPlant reshapes hourly aggregates into one table per power
// plant, using the mean generation as the cell value. Tables are sorted
// by plant name, columns by resource code, rows by date then hour, so
// the export is reproducible. Aggregates without a plant name are
// skipped.
func PivotByPlant(aggs []models.HourlyAggregate) []PlantTable {
	type plantData struct {
		columns map[string]struct{}
		cells   map[rowKey]map[string]*float64
	}

	plants := make(map[string]*plantData)
	for _, agg := range aggs {
		if agg.PowerPlant == "" {
			continue
		}
		pd, ok := plants[agg.PowerPlant]
		if !ok {
			pd = &plantData{
				columns: make(map[string]struct{}),
				cells:   make(map[rowKey]map[string]*float64),
			}
			plants[agg.PowerPlant] = pd
		}
		pd.columns[agg.ResourceCode] = struct{}{}

		key := rowKey{
			date: agg.Hour.UTC().Format("2006-01-02"),
			hour: hourLabel(agg.Hour.UTC()),
		}
		row, ok := pd.cells[key]
		if !ok {
			row = make(map[string]*float64)
			pd.cells[key] = row
		}
		row[agg.ResourceCode] = agg.GenerationMW
	}

	tables := make([]PlantTable, 0, len(plants))
	for plant, pd := range plants {
		columns := make([]string, 0, len(pd.columns))
		for code := range pd.columns {
			columns = append(columns, code)
		}
		sort.Strings(columns)

		keys := make([]rowKey, 0, len(pd.cells))
		for key := range pd.cells {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].date != keys[j].date {
				return keys[i].date < keys[j].date
			}
			return keys[i].hour < keys[j].hour
		})

		rows := make([]PlantRow, 0, len(keys))
		for _, key := range keys {
			cells := make([]*float64, len(columns))
			for i, code := range columns {
				cells[i] = pd.cells[key][code]
			}
			rows = append(rows, PlantRow{Date: key.date, Hour: key.hour, Cells: cells})
		}

		tables = append(tables, PlantTable{Plant: plant, Columns: columns, Rows: rows})
	}

	sort.Slice(tables, func(i, j int) bool { return tables[i].Plant < tables[j].Plant })
	return tables
}

// hourLabel formats an hour as the "HH:00 - HH:00" range label used in
// the exported tables.
func hourLabel(hour time.Time) string {
	h := hour.Hour()
	return fmt.Sprintf("%02d:00 - %02d:00", h, (h+1)%24)
}
