package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"organicscan/classifier"
	"organicscan/classifier/classifiertest"
	"organicscan/db"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`models:
  dir: %s
  watch: false
database:
  path: %s
log:
  level: error
`, filepath.Join(dir, "models"), filepath.Join(dir, "organicscan.db"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGenerateTrainPredict(t *testing.T) {
	dir := t.TempDir()
	configFile := writeConfig(t, dir)
	csvPath := filepath.Join(dir, "data", "spectral_data.csv")

	out, err := execute(t, "generate", "--config", configFile, "--out", csvPath, "--db", "--replace")
	if err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "generated 1200 samples") {
		t.Fatalf("unexpected generate output:\n%s", out)
	}
	if _, err := os.Stat(csvPath); err != nil {
		t.Fatalf("csv not written: %v", err)
	}

	out, err = execute(t, "train", "--config", configFile, "--source", "csv", "--data", csvPath)
	if err != nil {
		t.Fatalf("train: %v\n%s", err, out)
	}
	if !strings.Contains(out, "fruit accuracy:") {
		t.Fatalf("unexpected train output:\n%s", out)
	}

	store, err := db.Open(filepath.Join(dir, "organicscan.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()
	if n, err := store.CountSamples(ctx); err != nil || n != 1200 {
		t.Fatalf("expected 1200 stored samples, got %d (%v)", n, err)
	}
	history, err := store.TrainingHistory(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].DataPoints != 1200 || len(history[0].OrganicAccuracy) != 3 {
		t.Fatalf("unexpected training history %+v", history)
	}

	sc := classifiertest.Scenarios()[1]
	args := []string{"predict", "--config", configFile, "--"}
	for _, v := range sc.Reading {
		args = append(args, strconv.FormatFloat(v, 'f', -1, 64))
	}
	out, err = execute(t, args...)
	if err != nil {
		t.Fatalf("predict: %v\n%s", err, out)
	}
	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Fruit string `json:"fruit"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("predict output is not JSON: %v\n%s", err, out)
	}
	if !result.Success || result.Data.Fruit != sc.Fruit.String() {
		t.Fatalf("expected %s, got %+v", sc.Fruit, result)
	}

	if _, err := execute(t, "predict", "--config", configFile, "0.1", "0.2"); err == nil {
		t.Fatal("expected an error for a short reading")
	}
	if _, err := execute(t, "predict", "--config", configFile, "--", "0.1", "0.2", "x", "0.4", "0.5", "0.6", "0.7", "0.8"); err == nil {
		t.Fatal("expected an error for a non-numeric value")
	}
}

func TestPredictWithoutModels(t *testing.T) {
	configFile := writeConfig(t, t.TempDir())
	_, err := execute(t, "predict", "--config", configFile, "0.1", "0.2", "0.3", "0.4", "0.5", "0.6", "0.7", "0.8")
	if !errors.Is(err, classifier.ErrModelUnavailable) {
		t.Fatalf("expected a model unavailable error, got %v", err)
	}
}
