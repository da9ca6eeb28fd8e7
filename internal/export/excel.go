// Package export writes aggregated fetch output to an Excel workbook,
// one sheet per power plant.
package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/gridwatch/psefetch/internal/aggregate"
)

// sheetNameReplacer strips the characters Excel forbids in sheet names.
var sheetNameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "[", "_", "]", "_",
)

// WriteWorkbook writes one sheet per plant table to path. Each sheet has
// a date column, an hour column, and one column per resource code; cells
// without a value stay empty rather than holding zero.
func WriteWorkbook(path string, tables []aggregate.PlantTable) error {
	if len(tables) == 0 {
		return fmt.Errorf("nothing to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	used := make(map[string]int)
	for _, table := range tables {
		name := sheetName(table.Plant, used)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %q: %w", name, err)
		}
		if err := writeSheet(f, name, table); err != nil {
			return err
		}
	}

	// Drop the default sheet excelize creates.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, table aggregate.PlantTable) error {
	headers := append([]string{"date", "hour"}, table.Columns...)
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
	}

	for i, row := range table.Rows {
		rowNum := i + 2
		if err := setCell(f, sheet, 1, rowNum, row.Date); err != nil {
			return err
		}
		if err := setCell(f, sheet, 2, rowNum, row.Hour); err != nil {
			return err
		}
		for j, value := range row.Cells {
			if value == nil {
				continue
			}
			if err := setCell(f, sheet, j+3, rowNum, *value); err != nil {
				return err
			}
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

// sheetName sanitizes a plant name to Excel's 31-character limit and
// forbidden-character rules, disambiguating collisions with a numeric
// suffix. Truncation counts runes so multi-byte plant names stay valid.
func sheetName(plant string, used map[string]int) string {
	name := truncateRunes(sheetNameReplacer.Replace(plant), 31)
	n := used[name]
	used[name] = n + 1
	if n > 0 {
		suffix := fmt.Sprintf("_%d", n+1)
		name = truncateRunes(name, 31-len(suffix)) + suffix
	}
	return name
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
