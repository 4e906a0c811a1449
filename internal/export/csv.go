package export

import (
	"encoding/csv"
	"io"

	"agromix/pkg/domain"
)

// CSV writes the tank plan as comma-separated values.
func CSV(w io.Writer, calc domain.SavedCalculation) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(buildPlan(calc).stringRows()); err != nil {
		return err
	}
	return cw.Error()
}
