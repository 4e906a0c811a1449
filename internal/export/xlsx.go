package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"agromix/pkg/domain"
)

// SheetName is the worksheet holding the tank plan.
const SheetName = "Tank plan"

// XLSX renders the tank plan as a spreadsheet with numeric cells.
func XLSX(calc domain.SavedCalculation) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	p := buildPlan(calc)

	row := 1
	if calc.Title != "" {
		if err := f.SetCellValue(SheetName, "A1", calc.Title); err != nil {
			return nil, err
		}
		row = 3
	}
	header := make([]any, len(p.header))
	for i, h := range p.header {
		header[i] = h
	}
	if err := setRow(f, row, header); err != nil {
		return nil, err
	}
	for _, tank := range p.tanks {
		row++
		cells := make([]any, len(tank))
		cells[0] = int(tank[0])
		for i := 1; i < len(tank); i++ {
			cells[i] = tank[i]
		}
		if err := setRow(f, row, cells); err != nil {
			return nil, err
		}
	}
	row++
	totals := []any{"Total"}
	for _, v := range p.totals {
		totals = append(totals, v)
	}
	if err := setRow(f, row, totals); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(SheetName, cell, &values)
}
