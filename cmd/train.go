package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"organicscan/classifier"
	"organicscan/dataset"
	"organicscan/db"
	"organicscan/training"
)

const maxLoggedIssues = 20

const (
	sourceGenerate = "generate"
	sourceCSV      = "csv"
	sourceDB       = "db"
)

var trainOpts struct {
	source    string
	data      string
	out       string
	modelType string
	noLog     bool
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the fruit and organic models and save their artifacts",
	Long: `Fits the fruit model on every sample and one organic model per fruit,
reports held-out accuracy, writes the artifacts to the model directory and
records the run in the training log.

Sources:
  generate  draw a fresh synthetic dataset from the training config (default)
  csv       read the file given by --data
  db        read the samples stored by "generate --db"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		samples, err := trainingSamples(ctx)
		if err != nil {
			return err
		}
		samples, err = cleanSamples(samples)
		if err != nil {
			return err
		}

		opts := cfg.Training.Options()
		if trainOpts.modelType != "" {
			opts.ModelType = trainOpts.modelType
		}
		models, report, err := training.Train(samples, opts)
		if err != nil {
			return err
		}

		dir := cfg.Models.Dir
		if trainOpts.out != "" {
			dir = trainOpts.out
		}
		if err := classifier.NewFileStore(dir).Save(models); err != nil {
			return err
		}
		logger.Info("models saved",
			zap.String("dir", dir),
			zap.String("model_type", report.ModelType),
			zap.Int("samples", report.Samples),
			zap.Float64("fruit_accuracy", report.Fruit.Accuracy),
			zap.Float64("min_organic_accuracy", report.MinOrganicAccuracy()),
			zap.Duration("duration", report.Duration),
		)

		if !trainOpts.noLog {
			runID, err := logRun(ctx, dir, report)
			if err != nil {
				return fmt.Errorf("record training run: %w", err)
			}
			logger.Info("training run recorded", zap.String("run_id", runID))
		}

		printReport(cmd, dir, report)
		return nil
	},
}

func init() {
	flags := trainCmd.Flags()
	flags.StringVar(&trainOpts.source, "source", sourceGenerate, "training data source: generate, csv or db")
	flags.StringVar(&trainOpts.data, "data", "", "CSV dataset for --source csv")
	flags.StringVar(&trainOpts.out, "out", "", "model directory (default from config)")
	flags.StringVar(&trainOpts.modelType, "model-type", "", "naive_bayes or decision_tree (default from config)")
	flags.BoolVar(&trainOpts.noLog, "no-log", false, "do not record the run in the training log")
	rootCmd.AddCommand(trainCmd)
}

func trainingSamples(ctx context.Context) ([]dataset.Sample, error) {
	switch trainOpts.source {
	case sourceGenerate:
		return dataset.Generate(cfg.Training.Dataset())
	case sourceCSV:
		if trainOpts.data == "" {
			return nil, fmt.Errorf("--data is required with --source %s", sourceCSV)
		}
		return readCSVFile(trainOpts.data)
	case sourceDB:
		store, err := db.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		samples, err := store.LoadSamples(ctx)
		if err != nil {
			return nil, err
		}
		if len(samples) == 0 {
			return nil, fmt.Errorf("no samples in %s; run generate --db first", cfg.Database.Path)
		}
		return samples, nil
	default:
		return nil, fmt.Errorf("unknown source %q", trainOpts.source)
	}
}

// cleanSamples drops or corrects samples the trainer should not see.
func cleanSamples(samples []dataset.Sample) ([]dataset.Sample, error) {
	cleaned, issues, stats := dataset.NewCleaner().Clean(samples)
	for i, issue := range issues {
		if i == maxLoggedIssues {
			logger.Warn("more samples rejected", zap.Int("count", len(issues)-i))
			break
		}
		logger.Warn("sample rejected",
			zap.String("rule", issue.Rule),
			zap.String("sample_id", issue.SampleID),
			zap.String("reason", issue.Message),
		)
	}
	logger.Info("samples cleaned",
		zap.Int("processed", stats.Processed),
		zap.Int("passed", stats.Passed),
		zap.Int("rejected", stats.Rejected),
		zap.Int("corrected", stats.Corrected),
	)
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("all %d samples were rejected", len(samples))
	}
	return cleaned, nil
}

func logRun(ctx context.Context, dir string, report *training.Report) (string, error) {
	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		return "", err
	}
	defer store.Close()

	organic := make(map[string]float64, len(report.Organic))
	for fruit, eval := range report.Organic {
		organic[fruit] = eval.Accuracy
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	entry := db.TrainingLog{
		RunID:           uuid.NewString(),
		ModelType:       report.ModelType,
		FruitAccuracy:   report.Fruit.Accuracy,
		OrganicAccuracy: organic,
		DataPoints:      report.Samples,
		ModelDir:        dir,
		TrainedAt:       time.Now(),
	}
	return entry.RunID, store.LogTraining(ctx, entry)
}

func printReport(cmd *cobra.Command, dir string, report *training.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "model type:      %s\n", report.ModelType)
	fmt.Fprintf(out, "samples:         %d\n", report.Samples)
	fmt.Fprintf(out, "fruit accuracy:  %.4f\n", report.Fruit.Accuracy)

	fruits := make([]string, 0, len(report.Organic))
	for fruit := range report.Organic {
		fruits = append(fruits, fruit)
	}
	sort.Strings(fruits)
	for _, fruit := range fruits {
		fmt.Fprintf(out, "organic %-7s  %.4f\n", fruit+":", report.Organic[fruit].Accuracy)
	}
	fmt.Fprintf(out, "saved to:        %s\n", dir)
}
