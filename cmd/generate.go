package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"organicscan/classifier"
	"organicscan/dataset"
	"organicscan/db"
)

var generateOpts struct {
	out     string
	toDB    bool
	replace bool
	samples int
	seed    int64
	noise   float64
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the synthetic spectral dataset",
	Long: `Draws readings around each fruit's reference signature and writes them
to a CSV file, the sample table of the database, or both.

Examples:
  organicscan generate --out data/spectral_data.csv
  organicscan generate --db --samples 500 --seed 7`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if generateOpts.out == "" && !generateOpts.toDB {
			return fmt.Errorf("nothing to do: set --out and/or --db")
		}

		data := cfg.Training.Dataset()
		flags := cmd.Flags()
		if flags.Changed("samples") {
			data.SamplesPerCategory = generateOpts.samples
		}
		if flags.Changed("seed") {
			data.Seed = generateOpts.seed
		}
		if flags.Changed("noise") {
			data.NoiseStdDev = generateOpts.noise
		}

		samples, err := dataset.Generate(data)
		if err != nil {
			return err
		}

		if generateOpts.out != "" {
			if err := writeCSVFile(generateOpts.out, samples); err != nil {
				return err
			}
			logger.Info("dataset written", zap.String("path", generateOpts.out), zap.Int("samples", len(samples)))
		}
		if generateOpts.toDB {
			store, err := db.Open(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer store.Close()
			if generateOpts.replace {
				if err := store.DeleteSamples(cmd.Context()); err != nil {
					return err
				}
			}
			if err := store.SaveSamples(cmd.Context(), samples); err != nil {
				return err
			}
			logger.Info("dataset stored", zap.String("database", cfg.Database.Path), zap.Int("samples", len(samples)))
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "generated %d samples\n", len(samples))
		counts := dataset.Counts(samples)
		for _, f := range classifier.Fruits() {
			fmt.Fprintf(out, "  %-7s non-organic=%d organic=%d\n", f, counts[f][0], counts[f][1])
		}
		return nil
	},
}

func init() {
	flags := generateCmd.Flags()
	flags.StringVar(&generateOpts.out, "out", "", "CSV file to write")
	flags.BoolVar(&generateOpts.toDB, "db", false, "store the samples in the database")
	flags.BoolVar(&generateOpts.replace, "replace", false, "with --db, delete previously stored samples first")
	flags.IntVar(&generateOpts.samples, "samples", 0, "samples per fruit and organic state (default from config)")
	flags.Int64Var(&generateOpts.seed, "seed", 0, "random seed (default from config)")
	flags.Float64Var(&generateOpts.noise, "noise", 0, "gaussian noise standard deviation (default from config)")
	rootCmd.AddCommand(generateCmd)
}

func writeCSVFile(path string, samples []dataset.Sample) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dataset.WriteCSV(file, samples); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

func readCSVFile(path string) ([]dataset.Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	samples, err := dataset.ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return samples, nil
}
