// Command mixcalc prints the tank-by-tank plan for a spray job without
// touching any storage.
//
//	mixcalc -area 12.5 -rate 10 -tank 100 -product "Herbicide X:per_area:2:L"
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"agromix/internal/export"
	"agromix/internal/mixing"
	"agromix/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

// productList collects repeated -product flags.
type productList []domain.Product

func (p *productList) String() string { return fmt.Sprint(len(*p)) }

// Set parses "name:mode:dose:unit"; mode and unit default to per_area and L.
func (p *productList) Set(value string) error {
	parts := strings.Split(value, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return fmt.Errorf("product %q: want name:mode:dose[:unit]", value)
	}
	mode := domain.DoseMode(parts[1])
	if mode == "" {
		mode = domain.DosePerArea
	}
	if !mode.Valid() {
		return fmt.Errorf("product %q: unknown mode %q", value, parts[1])
	}
	dose, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return fmt.Errorf("product %q: dose: %w", value, err)
	}
	unit := domain.UnitLiter
	if len(parts) == 4 && parts[3] != "" {
		unit = domain.Unit(parts[3])
	}
	if !unit.Valid() {
		return fmt.Errorf("product %q: unknown unit %q", value, unit)
	}
	*p = append(*p, domain.Product{Name: parts[0], Mode: mode, Dose: dose, Unit: unit})
	return nil
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mixcalc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var products productList
	area := fs.Float64("area", 0, "field area in hectares")
	rate := fs.Float64("rate", 0, "application rate in L/ha")
	tank := fs.Float64("tank", 0, "tank capacity in litres")
	title := fs.String("title", "", "title used by csv/xlsx/pdf output")
	format := fs.String("format", "text", "output format: text, json, csv, xlsx or pdf")
	out := fs.String("out", "", "write output to this file instead of stdout")
	fs.Var(&products, "product", "product as name:mode:dose[:unit], repeatable")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	input := domain.CalculationInput{AreaHa: *area, RateLPerHa: *rate, TankCapacityL: *tank, Products: products}
	result, err := mixing.Compute(input)
	if err != nil {
		var verr *mixing.ValidationErrors
		if errors.As(err, &verr) {
			for _, msg := range verr.Messages {
				fmt.Fprintln(stderr, msg)
			}
			return 1
		}
		fmt.Fprintln(stderr, err)
		return 1
	}

	w := stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		defer f.Close()
		w = f
	}

	calc := domain.SavedCalculation{Title: *title, Input: input, Result: result}
	switch *format {
	case "text":
		err = writeText(w, result)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(result)
	default:
		var f export.Format
		f, err = export.ParseFormat(*format)
		if err == nil {
			err = export.Write(w, calc, f)
		}
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func writeText(w io.Writer, result domain.CalculationResult) error {
	fmt.Fprintf(w, "Total volume: %g L in %d tank(s)\n\n", mixing.Round(result.TotalVolumeL, 2), result.TankCount)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "Tank\tVolume (L)")
	for _, t := range result.ProductTotals {
		fmt.Fprintf(tw, "\t%s (%s)", t.ProductName, t.Unit)
	}
	fmt.Fprintln(tw)
	for _, load := range result.ProductsPerTank {
		fmt.Fprintf(tw, "%d\t%g", load.TankNumber, mixing.Round(load.Volume, 2))
		for _, q := range load.Products {
			fmt.Fprintf(tw, "\t%g", mixing.Round(q.Quantity, 2))
		}
		fmt.Fprintln(tw)
	}
	fmt.Fprintf(tw, "Total\t%g", mixing.Round(result.TotalVolumeL, 2))
	for _, t := range result.ProductTotals {
		fmt.Fprintf(tw, "\t%g", mixing.Round(t.TotalQuantity, 2))
	}
	fmt.Fprintln(tw)
	return tw.Flush()
}
