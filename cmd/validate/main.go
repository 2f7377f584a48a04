// Command validate performs integrity checks over the artifacts of a
// pipeline run: the run manifest, the integrated dataset, and the model
// report. It verifies row-count monotonicity, coordinate and severity
// domains, join consistency, and report schema constraints.
//
// Usage:
//
//	go run ./cmd/validate -out data -max-distance 100
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/roadquality/accident-severity-etl/internal/artifact"
	"github.com/roadquality/accident-severity-etl/internal/domain"
	"github.com/roadquality/accident-severity-etl/internal/interpret"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	outDir := flag.String("out", "data", "artifact directory of the run to validate")
	maxDistance := flag.Float64("max-distance", 100, "join distance threshold the run used, in meters")
	minMatchRate := flag.Float64("min-match-rate", 0, "minimum acceptable join match rate")
	flag.Parse()

	if code := run(*outDir, *maxDistance, *minMatchRate); code != 0 {
		os.Exit(code)
	}
}

func run(outDir string, maxDistance, minMatchRate float64) int {
	fmt.Println("=== Accident Pipeline Artifact Validation ===")
	fmt.Println()

	store := &artifact.Store{BaseDir: outDir}

	manifest, err := store.ReadManifest()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load manifest: %v\n", err)
		return 1
	}

	records, err := store.ReadIntegratedCSV()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load integrated dataset: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateManifest(manifest, minMatchRate),
		validateDataset(records, maxDistance),
		validateConsistency(manifest, records),
		validateReport(store.Path(artifact.ReportJSONFile)),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Run %s: %d integrated records, match rate %.3f\n",
		manifest.RunID, len(records), manifest.MatchRate)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Manifest ──
// Stage row counts must never grow, and the stages must appear in pipeline
// order.

var stageOrder = []string{"ingest", "join", "clean", "features"}

func validateManifest(m *artifact.Manifest, minMatchRate float64) *phase {
	p := &phase{name: "Phase 1: Manifest (row monotonicity)"}

	if m.RunID == "" {
		p.errorf("manifest has no run_id")
	}
	if m.CreatedAt.IsZero() {
		p.errorf("manifest has no created_at timestamp")
	}
	if len(m.Stages) == 0 {
		p.errorf("manifest lists no stages")
		return p
	}

	for _, s := range m.Stages {
		if s.Out > s.In {
			p.errorf("stage %s emitted %d rows from %d inputs", s.Stage, s.Out, s.In)
		}
		if s.In < 0 || s.Out < 0 {
			p.errorf("stage %s has negative counts (%d/%d)", s.Stage, s.In, s.Out)
		}
	}

	// Stages must follow pipeline order; a skip-train run simply ends early.
	pos := 0
	for _, s := range m.Stages {
		found := false
		for ; pos < len(stageOrder); pos++ {
			if stageOrder[pos] == s.Stage {
				found = true
				pos++
				break
			}
		}
		if !found {
			p.errorf("stage %q out of order or unknown", s.Stage)
		}
	}

	// The join must not drop rows: it is a left join.
	for _, s := range m.Stages {
		if s.Stage == "join" && s.Out != s.In {
			p.errorf("join stage dropped rows: %d in, %d out", s.In, s.Out)
		}
	}

	if m.MatchRate < 0 || m.MatchRate > 1 {
		p.errorf("match rate %g outside [0,1]", m.MatchRate)
	}
	if m.MatchRate < minMatchRate {
		p.errorf("match rate %.3f below required %.3f", m.MatchRate, minMatchRate)
	}
	return p
}

// ── Phase 2: Dataset ──
// Every integrated record must satisfy the domain invariants the pipeline
// promises.

func validateDataset(records []domain.IntegratedAccident, maxDistance float64) *phase {
	p := &phase{name: "Phase 2: Dataset (domain invariants)"}

	if len(records) == 0 {
		p.errorf("integrated dataset is empty")
		return p
	}

	seen := make(map[string]bool, len(records))
	for i := range records {
		r := &records[i]
		pf := func(format string, args ...any) {
			p.errorf("record %d (ID %s): "+format, append([]any{i, r.ID}, args...)...)
		}

		if r.ID == "" {
			pf("missing ID")
		} else if seen[r.ID] {
			pf("duplicate ID")
		} else {
			seen[r.ID] = true
		}

		if r.Severity < 1 || r.Severity > 4 {
			pf("severity %d outside 1-4", r.Severity)
		}
		if r.Severe != (r.Severity > 2) {
			pf("severe flag %v inconsistent with severity %d", r.Severe, r.Severity)
		}
		if !domain.ValidCoordinate(r.Geo.Lat, r.Geo.Lon) {
			pf("coordinates (%g, %g) outside contiguous US", r.Geo.Lat, r.Geo.Lon)
		}

		if r.Road.Matched {
			if r.Road.SegmentID == "" {
				pf("matched but no segment ID")
			}
			if r.Road.DistanceMeters < 0 || r.Road.DistanceMeters > maxDistance {
				pf("matched at %.1fm, threshold %.1fm", r.Road.DistanceMeters, maxDistance)
			}
		} else {
			if r.Road.Surface != domain.SurfaceUnknown {
				pf("unmatched but surface %q", r.Road.Surface)
			}
			if r.Road.SegmentID != "" {
				pf("unmatched but segment ID %q", r.Road.SegmentID)
			}
		}
	}
	return p
}

// ── Phase 3: Consistency ──
// The manifest and the dataset must describe the same run.

func validateConsistency(m *artifact.Manifest, records []domain.IntegratedAccident) *phase {
	p := &phase{name: "Phase 3: Consistency (manifest vs dataset)"}

	for _, s := range m.Stages {
		if s.Stage == "clean" && s.Out != len(records) {
			p.errorf("clean stage reports %d rows, dataset has %d", s.Out, len(records))
		}
	}

	matched := 0
	for i := range records {
		if records[i].Road.Matched {
			matched++
		}
	}
	actualRate := float64(matched) / float64(len(records))
	// Cleaning removes rows after the join, so the rates drift a little.
	if diff := actualRate - m.MatchRate; diff > 0.1 || diff < -0.1 {
		p.errorf("dataset match rate %.3f far from manifest %.3f", actualRate, m.MatchRate)
	}
	return p
}

// ── Phase 4: Report ──
// The model report must exist for trained runs and satisfy its schema. A
// missing report is fine: skip-train runs do not produce one.

func validateReport(path string) *phase {
	p := &phase{name: "Phase 4: Report (schema)"}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		fmt.Println("  Note: no report found, assuming a skip-train run")
		return p
	}
	if err != nil {
		p.errorf("read report: %v", err)
		return p
	}

	var report interpret.Report
	if err := json.Unmarshal(data, &report); err != nil {
		p.errorf("parse report: %v", err)
		return p
	}

	if report.RunID == "" {
		p.errorf("report has no run_id")
	}
	checkEvaluation(p, "decision_tree", report.TreeEval.Accuracy, len(report.TreeEval.Confusion))
	checkEvaluation(p, "random_forest", report.ForestEval.Accuracy, len(report.ForestEval.Confusion))

	if len(report.ImpurityImportance) == 0 {
		p.errorf("no impurity importance ranking")
	}
	checkRanking(p, "impurity", report.ImpurityImportance)
	checkRanking(p, "permutation", report.PermutationImportance)

	for i, acc := range report.CrossVal.FoldAccuracies {
		if acc < 0 || acc > 1 {
			p.errorf("cross-val fold %d accuracy %g outside [0,1]", i, acc)
		}
	}
	return p
}

func checkEvaluation(p *phase, name string, accuracy float64, confusionRows int) {
	if accuracy < 0 || accuracy > 1 {
		p.errorf("%s accuracy %g outside [0,1]", name, accuracy)
	}
	if confusionRows == 0 {
		p.errorf("%s has no confusion matrix", name)
	}
}

func checkRanking(p *phase, name string, ranking []interpret.FeatureImportance) {
	for i, fi := range ranking {
		if fi.Name == "" {
			p.errorf("%s importance entry %d has no feature name", name, i)
		}
		if i > 0 && fi.Score > ranking[i-1].Score {
			p.errorf("%s importance not sorted at entry %d", name, i)
		}
	}
}
