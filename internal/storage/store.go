package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/san-kum/phylogam/internal/config"
	"github.com/san-kum/phylogam/internal/experiment"
	"github.com/san-kum/phylogam/internal/gam"
	"github.com/san-kum/phylogam/internal/phylo"
	"github.com/san-kum/phylogam/internal/sim"
)

// Files in a run directory.
const (
	MetadataFile     = "metadata.json"
	ObservationsFile = "observations.csv"
	PredictionsFile  = "predictions.csv"
	TreeFile         = "tree.nwk"
	FigureFile       = "figure.svg"
)

var (
	// ErrNoRuns indicates an empty store.
	ErrNoRuns = errors.New("storage: no runs saved")

	// ErrCorrupt indicates a run file that cannot be parsed.
	ErrCorrupt = errors.New("storage: corrupt run file")
)

// Float is a float64 that encodes NaN as JSON null.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(f))
}

func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

type ScoreRecord struct {
	Model    string `json:"model"`
	Subset   string `json:"subset"`
	Rows     int    `json:"rows"`
	CRPS     Float  `json:"crps"`
	RMSE     Float  `json:"rmse"`
	Coverage Float  `json:"coverage"`
	Width    Float  `json:"width"`
}

type FitSummary struct {
	Penalties   []string           `json:"penalties"`
	LogLambdas  []float64          `json:"log_lambdas"`
	Scale       float64            `json:"scale"`
	REML        float64            `json:"reml"`
	EDF         float64            `json:"edf"`
	TermEDF     map[string]float64 `json:"term_edf"`
	NumObs      int                `json:"num_obs"`
	Evaluations int                `json:"evaluations"`
	Status      string             `json:"status"`
}

type RunMetadata struct {
	ID        string                `json:"id"`
	Timestamp time.Time             `json:"timestamp"`
	Seed      int64                 `json:"seed"`
	Species   []string              `json:"species"`
	Times     int                   `json:"times"`
	Withheld  []string              `json:"withheld"`
	Models    []string              `json:"models"`
	Winner    string                `json:"winner"`
	ElapsedMS int64                 `json:"elapsed_ms"`
	Config    *config.Config        `json:"config"`
	Fits      map[string]FitSummary `json:"fits"`
	Scores    []ScoreRecord         `json:"scores"`
}

// Score returns the recorded score of model on subset.
func (m *RunMetadata) Score(model, subset string) (ScoreRecord, bool) {
	for _, s := range m.Scores {
		if s.Model == model && s.Subset == subset {
			return s, true
		}
	}
	return ScoreRecord{}, false
}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Path returns the path of a file inside a run directory.
func (s *Store) Path(runID, file string) string {
	return filepath.Join(s.baseDir, runID, file)
}

func newMetadata(id string, res *experiment.Result) RunMetadata {
	meta := RunMetadata{
		ID:        id,
		Timestamp: time.Now(),
		Seed:      res.Config.Seed,
		Species:   res.Sim.Data.Species,
		Times:     res.Sim.Data.NumTimes(),
		Models:    res.Models,
		Winner:    res.Winner(experiment.SubsetWithheld),
		ElapsedMS: res.Elapsed.Milliseconds(),
		Config:    res.Config,
		Fits:      make(map[string]FitSummary, len(res.Fits)),
	}
	for _, sp := range res.Sim.Withheld {
		meta.Withheld = append(meta.Withheld, res.Sim.Data.Species[sp])
	}
	for name, f := range res.Fits {
		meta.Fits[name] = FitSummary{
			Penalties:   f.Penalties,
			LogLambdas:  f.LogLambdas,
			Scale:       f.Scale,
			REML:        f.REML,
			EDF:         f.EDF,
			TermEDF:     f.TermEDF,
			NumObs:      f.NumObs,
			Evaluations: f.Evaluations,
			Status:      f.Status,
		}
	}
	for _, sc := range res.Scores {
		meta.Scores = append(meta.Scores, ScoreRecord{
			Model:    sc.Model,
			Subset:   sc.Subset,
			Rows:     sc.Rows,
			CRPS:     Float(sc.CRPS),
			RMSE:     Float(sc.RMSE),
			Coverage: Float(sc.Coverage),
			Width:    Float(sc.Width),
		})
	}
	return meta
}

// mkRunDir creates a fresh run directory, suffixing the id on collision.
func (s *Store) mkRunDir(base string) (string, error) {
	id := base
	for i := 2; ; i++ {
		err := os.Mkdir(filepath.Join(s.baseDir, id), 0755)
		if err == nil {
			return id, nil
		}
		if !os.IsExist(err) {
			return "", err
		}
		id = fmt.Sprintf("%s_%d", base, i)
	}
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Save writes every artifact of res except the figure and returns the
// new run id.
func (s *Store) Save(res *experiment.Result) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}
	runID, err := s.mkRunDir(fmt.Sprintf("run_s%d_%s", res.Config.Seed, time.Now().Format("20060102_150405")))
	if err != nil {
		return "", err
	}

	meta := newMetadata(runID, res)
	if err := writeFile(s.Path(runID, MetadataFile), func(w io.Writer) error {
		return writeJSON(w, meta)
	}); err != nil {
		return "", err
	}

	if err := writeFile(s.Path(runID, ObservationsFile), func(w io.Writer) error {
		return WriteObservationsCSV(w, res.Sim.Data)
	}); err != nil {
		return "", err
	}

	preds := make([]*gam.Prediction, 0, len(res.Models))
	for _, m := range res.Models {
		preds = append(preds, res.Predictions[m])
	}
	if err := writeFile(s.Path(runID, PredictionsFile), func(w io.Writer) error {
		return WritePredictionsCSV(w, preds)
	}); err != nil {
		return "", err
	}

	if err := os.WriteFile(s.Path(runID, TreeFile), []byte(res.Sim.Tree.Newick()+"\n"), 0644); err != nil {
		return "", err
	}

	return runID, nil
}

func (s *Store) SaveFigure(runID string, svg string) error {
	return os.WriteFile(s.Path(runID, FigureFile), []byte(svg), 0644)
}

// List returns saved runs, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

// Latest returns the id of the most recent run.
func (s *Store) Latest() (string, error) {
	runs, err := s.List()
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", ErrNoRuns
	}
	return runs[len(runs)-1].ID, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(s.Path(runID, MetadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, MetadataFile, err)
	}
	return &meta, nil
}

func (s *Store) LoadObservations(runID string) (*sim.Dataset, error) {
	f, err := os.Open(s.Path(runID, ObservationsFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadObservationsCSV(f)
}

func (s *Store) LoadPredictions(runID string) ([]*gam.Prediction, error) {
	f, err := os.Open(s.Path(runID, PredictionsFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadPredictionsCSV(f)
}

func (s *Store) LoadTree(runID string) (*phylo.Tree, error) {
	return phylo.LoadNewick(s.Path(runID, TreeFile))
}
