package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/san-kum/phylogam/internal/gam"
	"github.com/san-kum/phylogam/internal/sim"
)

// NA marks a missing value in CSV files.
const NA = "NA"

var (
	observationHeader = []string{"species", "weight", "time", "time_factor", "truth", "y"}
	predictionHeader  = []string{"model", "species", "weight", "time", "time_factor", "truth", "y", "mean", "se", "lower", "upper"}
)

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return NA
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func parseFloat(s string) (float64, error) {
	if s == NA || s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func rowFields(r sim.Row) []string {
	return []string{
		r.Species,
		formatFloat(r.Weight),
		strconv.Itoa(r.Time),
		r.TimeFactor,
		formatFloat(r.Truth),
		formatFloat(r.Y),
	}
}

// WriteObservationsCSV writes the observation table, one row per
// (species, time), with NA for missing responses.
func WriteObservationsCSV(w io.Writer, data *sim.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(observationHeader); err != nil {
		return err
	}
	for _, r := range data.Rows {
		if err := cw.Write(rowFields(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WritePredictionsCSV(w io.Writer, preds []*gam.Prediction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(predictionHeader); err != nil {
		return err
	}
	for _, p := range preds {
		for _, r := range p.Rows {
			rec := append([]string{p.Model}, rowFields(r.Row)...)
			rec = append(rec, formatFloat(r.Mean), formatFloat(r.SE), formatFloat(r.Lower), formatFloat(r.Upper))
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func readRecords(r io.Reader, header []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: missing header", ErrCorrupt)
	}
	for i, h := range header {
		if records[0][i] != h {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrCorrupt, i+1, records[0][i], h)
		}
	}
	return records[1:], nil
}

func parseRow(rec []string) (sim.Row, error) {
	var (
		r   sim.Row
		err error
	)
	r.Species = rec[0]
	if r.Weight, err = parseFloat(rec[1]); err != nil {
		return r, err
	}
	if r.Time, err = strconv.Atoi(rec[2]); err != nil {
		return r, err
	}
	r.TimeFactor = rec[3]
	if r.Truth, err = parseFloat(rec[4]); err != nil {
		return r, err
	}
	if r.Y, err = parseFloat(rec[5]); err != nil {
		return r, err
	}
	return r, nil
}

// ReadObservationsCSV rebuilds a dataset, taking species and time levels
// in order of first appearance.
func ReadObservationsCSV(r io.Reader) (*sim.Dataset, error) {
	records, err := readRecords(r, observationHeader)
	if err != nil {
		return nil, err
	}

	d := &sim.Dataset{}
	seenSp := make(map[string]bool)
	seenLvl := make(map[string]bool)
	for i, rec := range records {
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorrupt, i+2, err)
		}
		if !seenSp[row.Species] {
			seenSp[row.Species] = true
			d.Species = append(d.Species, row.Species)
		}
		if !seenLvl[row.TimeFactor] {
			seenLvl[row.TimeFactor] = true
			d.TimeLevels = append(d.TimeLevels, row.TimeFactor)
		}
		d.Rows = append(d.Rows, row)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// ReadPredictionsCSV returns one prediction per model, in file order.
func ReadPredictionsCSV(r io.Reader) ([]*gam.Prediction, error) {
	records, err := readRecords(r, predictionHeader)
	if err != nil {
		return nil, err
	}

	var out []*gam.Prediction
	byModel := make(map[string]*gam.Prediction)
	for i, rec := range records {
		row, err := parseRow(rec[1:7])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorrupt, i+2, err)
		}
		pr := gam.PredictedRow{Row: row}
		for j, dst := range []*float64{&pr.Mean, &pr.SE, &pr.Lower, &pr.Upper} {
			if *dst, err = parseFloat(rec[7+j]); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrCorrupt, i+2, err)
			}
		}

		p, ok := byModel[rec[0]]
		if !ok {
			p = &gam.Prediction{Model: rec[0]}
			byModel[rec[0]] = p
			out = append(out, p)
		}
		p.Rows = append(p.Rows, pr)
	}
	return out, nil
}
