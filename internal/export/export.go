// Package export renders a saved calculation's tank plan as CSV, XLSX or PDF.
package export

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"agromix/internal/mixing"
	"agromix/pkg/domain"
)

// Format names a supported export format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts a case-insensitive format name; empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv; charset=utf-8"
	}
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Filename derives a download name from the calculation title.
func Filename(calc domain.SavedCalculation, f Format) string {
	base := strings.Trim(unsafeName.ReplaceAllString(calc.Title, "-"), "-")
	if base == "" {
		base = "tank-plan"
	}
	return base + "." + string(f)
}

// Write renders calc in format f.
func Write(w io.Writer, calc domain.SavedCalculation, f Format) error {
	switch f {
	case FormatCSV:
		return CSV(w, calc)
	case FormatPDF:
		return PDF(w, calc)
	case FormatXLSX:
		data, err := XLSX(calc)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

// plan is the tabular view shared by every renderer: one row per tank and a
// totals row, product columns in input order.
type plan struct {
	header []string
	tanks  [][]float64 // tank number, volume, product quantities
	totals []float64   // total volume, product totals
}

func buildPlan(calc domain.SavedCalculation) plan {
	res := calc.Result
	p := plan{header: []string{"Tank", "Volume (L)"}}
	for _, t := range res.ProductTotals {
		p.header = append(p.header, fmt.Sprintf("%s (%s)", t.ProductName, t.Unit))
	}
	for _, load := range res.ProductsPerTank {
		row := []float64{float64(load.TankNumber), mixing.Round(load.Volume, 2)}
		for _, q := range load.Products {
			row = append(row, mixing.Round(q.Quantity, 2))
		}
		p.tanks = append(p.tanks, row)
	}
	p.totals = []float64{mixing.Round(res.TotalVolumeL, 2)}
	for _, t := range res.ProductTotals {
		p.totals = append(p.totals, mixing.Round(t.TotalQuantity, 2))
	}
	return p
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (p plan) stringRows() [][]string {
	rows := make([][]string, 0, len(p.tanks)+2)
	rows = append(rows, p.header)
	for _, tank := range p.tanks {
		row := make([]string, len(tank))
		for i, v := range tank {
			row[i] = formatNumber(v)
		}
		rows = append(rows, row)
	}
	total := []string{"Total"}
	for _, v := range p.totals {
		total = append(total, formatNumber(v))
	}
	return append(rows, total)
}
