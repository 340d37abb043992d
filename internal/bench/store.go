// Package bench implements the Benchmarking Store: an append-only,
// per-epic ledger of evaluator invocations (phase, evaluator, provider,
// duration, outcome) plus an aggregate report computed on demand. When
// NewStore is given a Prometheus registerer, each record is also observed
// in a duration histogram and an outcome counter registered there; no HTTP
// route in this repository serves them.
package bench

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/bmad-assist/bmad-assist-go/internal/bmaderr"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
)

// Record is one evaluator invocation.
type Record struct {
	Timestamp time.Time     `yaml:"timestamp"`
	Phase     string        `yaml:"phase"`
	Evaluator string        `yaml:"evaluator"`
	Provider  string        `yaml:"provider"`
	Duration  time.Duration `yaml:"duration_ns"`
	Success   bool          `yaml:"success"`
}

// Ledger is the on-disk form of a single epic's benchmark file: a flat,
// append-only list of records.
type Ledger struct {
	Epic    string   `yaml:"epic"`
	Records []Record `yaml:"records"`
}

// EvaluatorStats aggregates one evaluator's records: success rate and
// duration percentiles.
type EvaluatorStats struct {
	Evaluator   string
	Count       int
	SuccessRate float64
	MeanMS      float64
	MedianMS    float64
	P95MS       float64
}

// Report aggregates a Ledger's records by evaluator.
type Report struct {
	Epic       string
	Evaluators []EvaluatorStats
}

// Store persists and aggregates benchmarking records per epic.
type Store struct {
	Paths   *paths.Paths
	Logger  *log.Logger
	metrics *metrics
}

// NewStore creates a Store. reg may be nil to skip Prometheus registration
// (e.g. in tests, or processes without a /metrics endpoint).
func NewStore(p *paths.Paths, logger *log.Logger, reg prometheus.Registerer) *Store {
	s := &Store{Paths: p, Logger: logger}
	if reg != nil {
		s.metrics = newMetrics(reg)
	}
	return s
}

// Record appends rec to the epic's ledger. A write failure is wrapped in
// bmaderr.StorageError and returned; callers should log it and continue,
// per the taxonomy's non-fatal classification for benchmarking I/O.
func (s *Store) Record(epic paths.EpicID, rec Record) error {
	path := s.Paths.BenchmarkFile(epic)
	ledger, err := loadLedger(path, epic.String())
	if err != nil {
		return &bmaderr.StorageError{Op: "load ledger for append", Err: err}
	}
	ledger.Records = append(ledger.Records, rec)

	if err := saveLedger(path, ledger); err != nil {
		return &bmaderr.StorageError{Op: "save ledger", Err: err}
	}

	if s.metrics != nil {
		s.metrics.observe(rec)
	}
	return nil
}

// Aggregate computes a Report from the epic's on-disk ledger.
func (s *Store) Aggregate(epic paths.EpicID) (*Report, error) {
	path := s.Paths.BenchmarkFile(epic)
	ledger, err := loadLedger(path, epic.String())
	if err != nil {
		return nil, &bmaderr.StorageError{Op: "load ledger for aggregation", Err: err}
	}
	return aggregate(ledger), nil
}

func loadLedger(path, epic string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Ledger{Epic: epic}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading benchmark ledger %q: %w", path, err)
	}
	var ledger Ledger
	if err := yaml.Unmarshal(data, &ledger); err != nil {
		return nil, fmt.Errorf("parsing benchmark ledger %q: %w", path, err)
	}
	return &ledger, nil
}

func saveLedger(path string, ledger *Ledger) error {
	data, err := yaml.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("marshaling benchmark ledger: %w", err)
	}
	return writeAtomic(path, data)
}

func aggregate(ledger *Ledger) *Report {
	byEvaluator := map[string][]Record{}
	var order []string
	for _, rec := range ledger.Records {
		if _, ok := byEvaluator[rec.Evaluator]; !ok {
			order = append(order, rec.Evaluator)
		}
		byEvaluator[rec.Evaluator] = append(byEvaluator[rec.Evaluator], rec)
	}
	sort.Strings(order)

	report := &Report{Epic: ledger.Epic}
	for _, name := range order {
		recs := byEvaluator[name]
		report.Evaluators = append(report.Evaluators, statsFor(name, recs))
	}
	return report
}

func statsFor(name string, recs []Record) EvaluatorStats {
	durations := make([]float64, len(recs))
	var successes int
	for i, r := range recs {
		durations[i] = float64(r.Duration.Milliseconds())
		if r.Success {
			successes++
		}
	}
	sort.Float64s(durations)

	return EvaluatorStats{
		Evaluator:   name,
		Count:       len(recs),
		SuccessRate: float64(successes) / float64(len(recs)),
		MeanMS:      mean(durations),
		MedianMS:    percentile(durations, 0.50),
		P95MS:       percentile(durations, 0.95),
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// percentile assumes xs is sorted ascending.
func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	idx := int(p * float64(len(xs)-1))
	return xs[idx]
}
