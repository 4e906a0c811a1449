package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"agromix/pkg/domain"
)

// PDF renders the tank plan as a one-table A4 document.
func PDF(w io.Writer, calc domain.SavedCalculation) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	title := calc.Title
	if title == "" {
		title = "Tank plan"
	}
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(190, 10, title)
	pdf.Ln(12)

	in := calc.Input
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(190, 6, fmt.Sprintf("Area: %s ha   Rate: %s L/ha   Tank capacity: %s L",
		formatNumber(in.AreaHa), formatNumber(in.RateLPerHa), formatNumber(in.TankCapacityL)))
	pdf.Ln(10)

	p := buildPlan(calc)
	rows := p.stringRows()
	width := 190.0 / float64(len(p.header))

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	for i, h := range rows[0] {
		pdf.CellFormat(width, 8, h, "1", lineBreak(i, len(rows[0])), "C", true, 0, "")
	}
	pdf.SetFont("Arial", "", 10)
	for _, row := range rows[1 : len(rows)-1] {
		for i, v := range row {
			pdf.CellFormat(width, 8, v, "1", lineBreak(i, len(row)), "R", false, 0, "")
		}
	}
	pdf.SetFont("Arial", "B", 10)
	last := rows[len(rows)-1]
	for i, v := range last {
		pdf.CellFormat(width, 8, v, "1", lineBreak(i, len(last)), "R", true, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

func lineBreak(i, n int) int {
	if i == n-1 {
		return 1
	}
	return 0
}
