package storage

import (
	"io"
	"os"

	"github.com/san-kum/phylogam/internal/gam"
)

type ExportRow struct {
	Species    string `json:"species"`
	Weight     Float  `json:"weight"`
	Time       int    `json:"time"`
	TimeFactor string `json:"time_factor"`
	Truth      Float  `json:"truth"`
	Y          Float  `json:"y"`
}

type ExportPrediction struct {
	ExportRow
	Mean  Float `json:"mean"`
	SE    Float `json:"se"`
	Lower Float `json:"lower"`
	Upper Float `json:"upper"`
}

// ExportData is the full JSON dump of a run. Missing values are null.
type ExportData struct {
	Metadata     *RunMetadata                  `json:"metadata"`
	Tree         string                        `json:"tree"`
	Observations []ExportRow                   `json:"observations"`
	Predictions  map[string][]ExportPrediction `json:"predictions"`
}

// Export assembles the JSON dump of a saved run.
func (s *Store) Export(runID string) (*ExportData, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	data, err := s.LoadObservations(runID)
	if err != nil {
		return nil, err
	}
	preds, err := s.LoadPredictions(runID)
	if err != nil {
		return nil, err
	}
	tree, err := s.LoadTree(runID)
	if err != nil {
		return nil, err
	}

	out := &ExportData{
		Metadata:     meta,
		Tree:         tree.Newick(),
		Observations: make([]ExportRow, len(data.Rows)),
		Predictions:  make(map[string][]ExportPrediction, len(preds)),
	}
	for i, r := range data.Rows {
		out.Observations[i] = ExportRow{r.Species, Float(r.Weight), r.Time, r.TimeFactor, Float(r.Truth), Float(r.Y)}
	}
	for _, p := range preds {
		out.Predictions[p.Model] = exportPredictions(p)
	}
	return out, nil
}

func exportPredictions(p *gam.Prediction) []ExportPrediction {
	rows := make([]ExportPrediction, len(p.Rows))
	for i, r := range p.Rows {
		rows[i] = ExportPrediction{
			ExportRow: ExportRow{r.Species, Float(r.Weight), r.Time, r.TimeFactor, Float(r.Truth), Float(r.Y)},
			Mean:      Float(r.Mean),
			SE:        Float(r.SE),
			Lower:     Float(r.Lower),
			Upper:     Float(r.Upper),
		}
	}
	return rows
}

func (s *Store) ExportJSON(w io.Writer, runID string) error {
	data, err := s.Export(runID)
	if err != nil {
		return err
	}
	return writeJSON(w, data)
}

func (s *Store) ExportJSONFile(path, runID string) error {
	return writeFile(path, func(w io.Writer) error {
		return s.ExportJSON(w, runID)
	})
}

// ExportCSV writes the predictions of a run, or its observations when
// observationsOnly is set.
func (s *Store) ExportCSV(w io.Writer, runID string, observationsOnly bool) error {
	name := PredictionsFile
	if observationsOnly {
		name = ObservationsFile
	}
	f, err := os.Open(s.Path(runID, name))
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
