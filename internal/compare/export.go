package compare

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	sheetComparison = "Comparison"
	sheetSummary    = "Summary"
)

// ExportXLSX writes a workbook with one row per country and a value and
// rank column per metric, plus a Summary sheet.
func (c *Comparator) ExportXLSX(w io.Writer, records []Record) error {
	metrics := c.Metrics()
	results := c.Compare(records)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetComparison); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := []any{"Country", "Code"}
	for _, m := range metrics {
		header = append(header, m.Name, m.Name+" rank")
	}
	if err := f.SetSheetRow(sheetComparison, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetComparison, "A1", last, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, r := range records {
		row := []any{r.Country, r.Code}
		for _, m := range metrics {
			s := results[r.Code][m.ID]
			row = append(row, s.Value, s.Rank)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetComparison, cell, &row); err != nil {
			return fmt.Errorf("write row %s: %w", r.Code, err)
		}
	}
	if err := f.SetColWidth(sheetComparison, "A", "A", 24); err != nil {
		return err
	}

	if _, err := f.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}
	for i, line := range strings.Split(c.Summary(records), "\n") {
		if err := f.SetCellValue(sheetSummary, fmt.Sprintf("A%d", i+1), line); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
