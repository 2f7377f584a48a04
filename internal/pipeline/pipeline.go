// Package pipeline orchestrates the full run: ingest, spatial join, clean,
// feature engineering, model training, and the interpretability report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/roadquality/accident-severity-etl/internal/artifact"
	"github.com/roadquality/accident-severity-etl/internal/clean"
	"github.com/roadquality/accident-severity-etl/internal/config"
	"github.com/roadquality/accident-severity-etl/internal/domain"
	"github.com/roadquality/accident-severity-etl/internal/features"
	"github.com/roadquality/accident-severity-etl/internal/geo"
	"github.com/roadquality/accident-severity-etl/internal/ingest"
	"github.com/roadquality/accident-severity-etl/internal/interpret"
	"github.com/roadquality/accident-severity-etl/internal/join"
	"github.com/roadquality/accident-severity-etl/internal/model"
	"github.com/roadquality/accident-severity-etl/internal/observability"
)

// Sink receives the integrated dataset, typically a Kafka producer.
type Sink interface {
	PublishBatch(ctx context.Context, records []domain.IntegratedAccident) error
}

// Options selects which parts of the run execute.
type Options struct {
	Filter ingest.AccidentFilter
	// SkipJoin leaves every record with unknown road attributes.
	SkipJoin bool
	// SkipTrain stops after the integrated dataset is written.
	SkipTrain bool
}

// Runner executes the pipeline once from raw inputs to artifacts.
type Runner struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	sink    Sink
	ready   atomic.Bool
	stage   atomic.Value // string, last stage started
}

// New creates a Runner. sink may be nil when the Kafka sink is disabled.
func New(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, sink Sink) *Runner {
	return &Runner{cfg: cfg, logger: logger, metrics: metrics, sink: sink}
}

// CheckReadiness returns nil once the inputs are loaded and the road index
// is built.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("inputs not loaded yet")
	}
	return nil
}

// Stage names the pipeline stage currently executing, "idle" outside a run.
func (r *Runner) Stage() string {
	if s, ok := r.stage.Load().(string); ok {
		return s
	}
	return "idle"
}

// Run executes the pipeline. It returns on the first stage error or when
// the context is cancelled.
func (r *Runner) Run(ctx context.Context, opts Options) error {
	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)
	logger.Info("pipeline started",
		"accidents", r.cfg.AccidentsCSVPath,
		"roads", r.cfg.RoadsPath,
		"skip_join", opts.SkipJoin,
		"skip_train", opts.SkipTrain)

	r.metrics.PipelineRunning.Set(1)
	defer r.metrics.PipelineRunning.Set(0)
	defer r.stage.Store("idle")

	store, err := artifact.NewStore(r.cfg.OutputDir)
	if err != nil {
		return err
	}

	manifest := &artifact.Manifest{
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Seed:      r.cfg.RandomSeed,
	}

	integrated, joinStats, err := r.ingestAndJoin(ctx, opts, logger, manifest)
	if err != nil {
		return err
	}
	manifest.MatchRate = joinStats.MatchRate()

	if r.sink != nil {
		if err := r.publish(ctx, integrated, logger); err != nil {
			// The sink is an optional mirror of the dataset; a broker
			// outage must not lose the batch run.
			logger.Error("sink publish failed, continuing", "error", err)
		}
	}

	cleaned, cleanStats := clean.Clean(integrated, clean.Options{IQRFactor: r.cfg.OutlierIQRFactor}, logger)
	if err := addStage(manifest, "clean", cleanStats.Input, cleanStats.Output); err != nil {
		return err
	}
	r.metrics.RecordsDropped.WithLabelValues("clean", "duplicate").Add(float64(cleanStats.Duplicates))
	r.metrics.RecordsDropped.WithLabelValues("clean", "outlier").Add(float64(cleanStats.OutliersRemoved))

	if err := r.timeStage("write_dataset", func() error {
		return store.WriteIntegratedCSV(cleaned)
	}); err != nil {
		return err
	}
	r.metrics.RecordsWritten.Add(float64(len(cleaned)))

	if opts.SkipTrain {
		logger.Info("training skipped")
		return store.WriteManifest(manifest)
	}

	report, err := r.train(ctx, cleaned, store, logger, manifest)
	if err != nil {
		return err
	}
	report.RunID = runID

	if err := report.WriteJSON(store.Path(artifact.ReportJSONFile)); err != nil {
		return err
	}
	if err := report.WriteTextFile(store.Path(artifact.ReportTextFile)); err != nil {
		return err
	}
	if err := store.WriteJSON(artifact.HyperparamsStamp, r.cfg.Hyperparams); err != nil {
		return err
	}
	if err := store.WriteManifest(manifest); err != nil {
		return err
	}

	logger.Info("pipeline finished",
		"records", len(cleaned),
		"match_rate", manifest.MatchRate,
		"forest_accuracy", report.ForestEval.Accuracy)
	return nil
}

// ingestAndJoin loads both datasets, builds the road index, and runs the
// spatial join. With SkipJoin the roads are never read and every record
// keeps unknown road attributes.
func (r *Runner) ingestAndJoin(ctx context.Context, opts Options, logger *slog.Logger, manifest *artifact.Manifest) ([]domain.IntegratedAccident, join.Stats, error) {
	var accidents []domain.Accident
	var accidentStats ingest.AccidentStats
	err := r.timeStage("ingest_accidents", func() error {
		var err error
		accidents, accidentStats, err = ingest.LoadAccidents(r.cfg.AccidentsCSVPath, opts.Filter, logger)
		return err
	})
	if err != nil {
		return nil, join.Stats{}, err
	}
	if len(accidents) == 0 {
		return nil, join.Stats{}, errors.New("no accident records after ingest")
	}

	r.metrics.RecordsIngested.Add(float64(accidentStats.RowsRead))
	r.metrics.RecordsDropped.WithLabelValues("ingest", "missing_coordinates").Add(float64(accidentStats.DroppedMissingCoords))
	r.metrics.RecordsDropped.WithLabelValues("ingest", "out_of_range").Add(float64(accidentStats.DroppedOutOfRange))
	r.metrics.RecordsDropped.WithLabelValues("ingest", "bad_severity").Add(float64(accidentStats.DroppedBadSeverity))
	r.metrics.RecordsDropped.WithLabelValues("ingest", "bad_row").Add(float64(accidentStats.DroppedBadRow))
	if err := addStage(manifest, "ingest", accidentStats.RowsRead, len(accidents)); err != nil {
		return nil, join.Stats{}, err
	}

	if opts.SkipJoin {
		r.ready.Store(true)
		integrated := make([]domain.IntegratedAccident, len(accidents))
		for i, acc := range accidents {
			integrated[i] = domain.IntegratedAccident{Accident: acc, Road: domain.UnmatchedRoad()}
		}
		if err := addStage(manifest, "join", len(accidents), len(integrated)); err != nil {
			return nil, join.Stats{}, err
		}
		return integrated, join.Stats{Total: len(accidents)}, nil
	}

	var index *geo.Index
	err = r.timeStage("ingest_roads", func() error {
		segments, _, err := ingest.LoadRoads(r.cfg.RoadsPath, logger)
		if err != nil {
			return err
		}
		index, err = geo.NewIndex(segments)
		return err
	})
	if err != nil {
		return nil, join.Stats{}, err
	}
	r.ready.Store(true)

	var integrated []domain.IntegratedAccident
	var stats join.Stats
	err = r.timeStage("join", func() error {
		var err error
		integrated, stats, err = join.NearestRoad(ctx, accidents, index, join.Options{
			MaxDistanceMeters: r.cfg.MaxDistanceMeters,
			BatchSize:         r.cfg.JoinBatchSize,
		}, logger, r.metrics)
		return err
	})
	if err != nil {
		return nil, join.Stats{}, err
	}
	if err := addStage(manifest, "join", len(accidents), len(integrated)); err != nil {
		return nil, join.Stats{}, err
	}

	if stats.MatchRate() < r.cfg.MinMatchRate {
		logger.Warn("match rate below threshold",
			"match_rate", stats.MatchRate(),
			"threshold", r.cfg.MinMatchRate)
	}
	return integrated, stats, nil
}

func (r *Runner) publish(ctx context.Context, records []domain.IntegratedAccident, logger *slog.Logger) error {
	err := r.timeStage("publish", func() error {
		return r.sink.PublishBatch(ctx, records)
	})
	if err != nil {
		return err
	}
	r.metrics.RecordsPublished.Add(float64(len(records)))
	logger.Info("published integrated records", "count", len(records))
	return nil
}

// train fits both classifiers, cross-validates the forest, and assembles
// the interpretability report.
func (r *Runner) train(ctx context.Context, records []domain.IntegratedAccident, store *artifact.Store, logger *slog.Logger, manifest *artifact.Manifest) (*interpret.Report, error) {
	builder, err := features.NewBuilder(records)
	if err != nil {
		return nil, err
	}
	matrix := builder.Build(records)
	if err := addStage(manifest, "features", len(records), matrix.Rows()); err != nil {
		return nil, err
	}

	split, err := model.TrainValTestSplit(matrix.Rows(), r.cfg.TestSize, r.cfg.ValidationSize, r.cfg.RandomSeed)
	if err != nil {
		return nil, err
	}

	trainX, trainY := model.Gather(matrix.X, matrix.Y, split.Train)
	valX, valY := model.Gather(matrix.X, matrix.Y, split.Val)
	testX, testY := model.Gather(matrix.X, matrix.Y, split.Test)

	var scaler features.StandardScaler
	scaler.Fit(trainX)
	trainX = scaler.Transform(trainX)
	valX = scaler.Transform(valX)
	testX = scaler.Transform(testX)

	hp := r.cfg.Hyperparams

	var tree *model.Tree
	err = r.timeStage("train_tree", func() error {
		var err error
		tree, err = model.NewTree(model.TreeConfig{
			MaxDepth:            hp.Tree.MaxDepth,
			MinSamplesSplit:     hp.Tree.MinSamplesSplit,
			MinSamplesLeaf:      hp.Tree.MinSamplesLeaf,
			MinImpurityDecrease: hp.Tree.MinImpurityDecrease,
			Criterion:           hp.Tree.Criterion,
			Seed:                r.cfg.RandomSeed,
		})
		if err != nil {
			return err
		}
		if err := tree.Fit(trainX, trainY); err != nil {
			return err
		}
		tree.Prune(valX, valY)
		return nil
	})
	if err != nil {
		return nil, err
	}

	forestConfig := model.ForestConfig{
		NumTrees:        hp.Forest.NumTrees,
		MaxDepth:        hp.Forest.MaxDepth,
		MinSamplesSplit: hp.Forest.MinSamplesSplit,
		MinSamplesLeaf:  hp.Forest.MinSamplesLeaf,
		MaxFeatures:     hp.Forest.MaxFeatures,
		Bootstrap:       hp.Forest.Bootstrap,
		Criterion:       hp.Tree.Criterion,
		Seed:            r.cfg.RandomSeed,
	}

	var forest *model.Forest
	err = r.timeStage("train_forest", func() error {
		var err error
		forest, err = model.NewForest(forestConfig)
		if err != nil {
			return err
		}
		return forest.Fit(trainX, trainY)
	})
	if err != nil {
		return nil, err
	}

	treeEval, err := evaluate(tree, testX, testY)
	if err != nil {
		return nil, err
	}
	forestEval, err := evaluate(forest, testX, testY)
	if err != nil {
		return nil, err
	}
	logger.Info("models evaluated",
		"tree_accuracy", treeEval.Accuracy,
		"forest_accuracy", forestEval.Accuracy,
		"forest_macro_f1", forestEval.MacroF1)

	var crossVal interpret.CrossValidation
	err = r.timeStage("cross_validate", func() error {
		var err error
		crossVal, err = r.crossValidate(ctx, forestConfig, trainX, trainY)
		return err
	})
	if err != nil {
		return nil, err
	}

	impurity, err := interpret.ImpurityImportance(forest, matrix.Names)
	if err != nil {
		return nil, err
	}

	var permutation []interpret.FeatureImportance
	err = r.timeStage("permutation_importance", func() error {
		var err error
		permutation, err = interpret.PermutationImportance(forest, testX, testY, matrix.Names, interpret.PermutationOptions{
			Repeats:   hp.Permutation.Repeats,
			SampleCap: hp.Permutation.SampleCap,
			Seed:      r.cfg.RandomSeed,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := model.SaveTree(store.Path(artifact.TreeModelFile), tree); err != nil {
		return nil, err
	}
	if err := model.SaveForest(store.Path(artifact.ForestModelFile), forest); err != nil {
		return nil, err
	}

	return &interpret.Report{
		GeneratedAt:           time.Now().UTC(),
		TrainRows:             len(split.Train),
		ValRows:               len(split.Val),
		TestRows:              len(split.Test),
		Features:              matrix.Cols(),
		TreeEval:              treeEval,
		ForestEval:            forestEval,
		CrossVal:              crossVal,
		ImpurityImportance:    impurity,
		PermutationImportance: permutation,
	}, nil
}

// crossValidate runs k-fold validation of the forest on the training data.
func (r *Runner) crossValidate(ctx context.Context, cfg model.ForestConfig, x [][]float64, y []int) (interpret.CrossValidation, error) {
	folds, err := model.KFold(len(y), r.cfg.NumFolds, r.cfg.RandomSeed)
	if err != nil {
		return interpret.CrossValidation{}, err
	}

	accuracies := make([]float64, 0, len(folds))
	for k, holdout := range folds {
		if err := ctx.Err(); err != nil {
			return interpret.CrossValidation{}, err
		}

		inFold := make(map[int]bool, len(holdout))
		for _, i := range holdout {
			inFold[i] = true
		}
		trainIdx := make([]int, 0, len(y)-len(holdout))
		for i := range y {
			if !inFold[i] {
				trainIdx = append(trainIdx, i)
			}
		}

		trainX, trainY := model.Gather(x, y, trainIdx)
		testX, testY := model.Gather(x, y, holdout)

		foldCfg := cfg
		foldCfg.Seed = cfg.Seed + int64(k+1)
		forest, err := model.NewForest(foldCfg)
		if err != nil {
			return interpret.CrossValidation{}, err
		}
		if err := forest.Fit(trainX, trainY); err != nil {
			return interpret.CrossValidation{}, err
		}

		ev, err := evaluate(forest, testX, testY)
		if err != nil {
			return interpret.CrossValidation{}, err
		}
		accuracies = append(accuracies, ev.Accuracy)
	}

	mean, std := stat.MeanStdDev(accuracies, nil)
	return interpret.CrossValidation{FoldAccuracies: accuracies, Mean: mean, Std: std}, nil
}

type predictor interface {
	Predict(row []float64) int
}

func evaluate(p predictor, x [][]float64, y []int) (model.Evaluation, error) {
	preds := make([]int, len(x))
	for i := range x {
		preds[i] = p.Predict(x[i])
	}
	return model.Evaluate(y, preds)
}

// addStage appends a stage count to the manifest, rejecting any stage that
// emits more rows than it received.
func addStage(m *artifact.Manifest, stage string, in, out int) error {
	if out > in {
		return fmt.Errorf("stage %s emitted %d rows from %d inputs", stage, out, in)
	}
	m.Stages = append(m.Stages, artifact.StageCount{Stage: stage, In: in, Out: out})
	return nil
}

// timeStage runs fn and records its wall-clock duration.
func (r *Runner) timeStage(stage string, fn func() error) error {
	r.stage.Store(stage)
	start := time.Now()
	err := fn()
	r.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("stage %s: %w", stage, err)
	}
	return nil
}
