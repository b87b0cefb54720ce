package export

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/evalix/core/sheet"
)

var headers = []interface{}{"#", "Student ID", "Document", "Name", "Subject", "N1", "N2", "N3", "N4", "Average", "Status"}

const (
	statusPassed = "PASSED"
	statusFailed = "FAILED"
)

// SheetName returns the worksheet name used for s, e.g. "2025-P1".
func SheetName(s sheet.Sheet) string {
	return fmt.Sprintf("%d-P%d", s.Year, s.Period)
}

// WriteXLSX writes s as a single-worksheet workbook: a header line, then one line per row in display order.
func WriteXLSX(w io.Writer, s sheet.Sheet) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	name := SheetName(s)
	if err := f.SetSheetName("Sheet1", name); err != nil {
		return errors.Wrap(err, "naming worksheet")
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	if err = f.SetSheetRow(name, "A1", &headers); err != nil {
		return errors.Wrap(err, "writing header")
	}
	if err = f.SetCellStyle(name, "A1", "K1", bold); err != nil {
		return errors.Wrap(err, "styling header")
	}

	for i, r := range s.Rows {
		status := statusFailed
		if r.Passed() {
			status = statusPassed
		}
		line := []interface{}{
			i + 1, r.StudentID, r.DocumentNumber, r.Name, r.Subject,
			float64(r.N1), float64(r.N2), float64(r.N3), float64(r.N4), float64(r.Average), status,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err = f.SetSheetRow(name, cell, &line); err != nil {
			return errors.Wrapf(err, "writing row %d", i+1)
		}
	}

	if _, err = f.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}
