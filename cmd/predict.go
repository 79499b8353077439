package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"organicscan/classifier"
	"organicscan/spectral"
)

var predictCmd = &cobra.Command{
	Use:   "predict F1 F2 F3 F4 F5 F6 F7 F8",
	Short: "Classify a single reading and print the result as JSON",
	Long: `Loads the models from the model directory and classifies one reading.
Separate the values with -- when any of them is negative:

  organicscan predict -- 0.45 0.52 0.58 0.62 0.55 0.48 0.42 -0.01`,
	Args:  cobra.ExactArgs(spectral.ChannelCount),
	RunE: func(cmd *cobra.Command, args []string) error {
		values := make([]float64, len(args))
		for i, arg := range args {
			v, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return fmt.Errorf("value at index %d is not a number: %q", i, arg)
			}
			values[i] = v
		}
		validation, err := spectral.FromFloats(values)
		if err != nil {
			return err
		}

		clf := classifier.New(classifier.NewFileStore(cfg.Models.Dir), logger)
		result, err := clf.Predict(validation.Reading)
		if err != nil {
			return err
		}

		output := struct {
			Success  bool                        `json:"success"`
			Data     classifier.PredictionResult `json:"data"`
			Warnings []string                    `json:"warnings,omitempty"`
		}{Success: true, Data: result}
		for _, anomaly := range validation.Anomalies {
			output.Warnings = append(output.Warnings, anomaly.String())
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(output)
	},
}

func init() {
	rootCmd.AddCommand(predictCmd)
}
