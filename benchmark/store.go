package benchmark

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Store is the append-only record of a run.
//
// Results are stored by value and accessors return copies, so nothing recorded can change.
type Store struct {
	runID     string
	createdAt time.Time

	mu      sync.RWMutex
	results []Result
	quant   []QuantResult
}

// NewStore creates an empty store for a run.
func NewStore(runID string) *Store {
	return &Store{runID: runID, createdAt: time.Now().UTC()}
}

// RunID returns the identifier stamped on every record.
func (s *Store) RunID() string {
	return s.runID
}

// AppendResult records a full-precision measurement.
func (s *Store) AppendResult(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

// AppendQuantResult records a quantized measurement.
func (s *Store) AppendQuantResult(r QuantResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quant = append(s.quant, r)
}

// Results returns the full-precision measurements in insertion order.
func (s *Store) Results() []Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Result(nil), s.results...)
}

// QuantResults returns the quantized measurements in insertion order.
func (s *Store) QuantResults() []QuantResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]QuantResult(nil), s.quant...)
}

// document is the JSON layout of a saved run.
type document struct {
	RunID        string        `json:"run_id"`
	CreatedAt    time.Time     `json:"created_at"`
	Results      []Result      `json:"results"`
	QuantResults []QuantResult `json:"quant_results"`
}

// SavedFiles lists the files written by Save.
type SavedFiles struct {
	JSON     string
	SweepCSV string
	QuantCSV string
}

// Save writes results_<run-id>.json plus sweep_<run-id>.csv and quant_<run-id>.csv into dir.
//
// Arguments:
//   - dir: The output directory; it is created if missing.
//
// Returns:
//   - SavedFiles: The written paths.
//   - error: An error if a file cannot be written.
func (s *Store) Save(dir string) (SavedFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return SavedFiles{}, errors.Wrap(err, "failed to create output directory")
	}

	doc := document{
		RunID:        s.runID,
		CreatedAt:    s.createdAt,
		Results:      s.Results(),
		QuantResults: s.QuantResults(),
	}
	files := SavedFiles{
		JSON:     filepath.Join(dir, fmt.Sprintf("results_%s.json", s.runID)),
		SweepCSV: filepath.Join(dir, fmt.Sprintf("sweep_%s.csv", s.runID)),
		QuantCSV: filepath.Join(dir, fmt.Sprintf("quant_%s.csv", s.runID)),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return SavedFiles{}, errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(files.JSON, data, 0o644); err != nil {
		return SavedFiles{}, errors.Wrap(err, "failed to write results file")
	}

	sweep := [][]string{{"model", "runtime", "precision", "batch_size", "accuracy_pct", "duration_ms", "samples", "correct"}}
	for _, r := range doc.Results {
		sweep = append(sweep, []string{
			r.Model,
			string(r.Runtime),
			string(r.Precision),
			strconv.Itoa(r.BatchSize),
			strconv.FormatFloat(r.Accuracy, 'f', 2, 64),
			milliseconds(r.Duration),
			strconv.Itoa(r.Samples),
			strconv.Itoa(r.Correct),
		})
	}
	if err := writeCSV(files.SweepCSV, sweep); err != nil {
		return SavedFiles{}, err
	}

	quant := [][]string{{"model", "kind", "batch_size", "accuracy_pct", "duration_ms", "samples", "correct", "applied", "calibrated"}}
	for _, r := range doc.QuantResults {
		quant = append(quant, []string{
			r.Model,
			string(r.Kind),
			strconv.Itoa(r.BatchSize),
			strconv.FormatFloat(r.Accuracy, 'f', 2, 64),
			milliseconds(r.Duration),
			strconv.Itoa(r.Samples),
			strconv.Itoa(r.Correct),
			strconv.FormatBool(r.Applied),
			strconv.FormatBool(r.Calibrated),
		})
	}
	if err := writeCSV(files.QuantCSV, quant); err != nil {
		return SavedFiles{}, err
	}

	slog.Info("results saved", "json", files.JSON, "sweep_csv", files.SweepCSV, "quant_csv", files.QuantCSV)
	return files, nil
}

// Load reads a results file written by Save.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	return &Store{
		runID:     doc.RunID,
		createdAt: doc.CreatedAt,
		results:   doc.Results,
		quant:     doc.QuantResults,
	}, nil
}

func milliseconds(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Nanoseconds())/1e6, 'f', 3, 64)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
