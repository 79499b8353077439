package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"organicscan/ml"
)

const (
	FruitModelFile    = "fruit_model.json"
	LabelEncoderFile  = "label_encoder.json"
	OrganicModelsFile = "organic_models.json"
)

// ModelStore loads a complete model set. Implementations are called at most
// once at a time by a Classifier.
type ModelStore interface {
	Load() (*Models, error)
}

// FileStore keeps the three artifacts as JSON files in one directory.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.Dir, name)
}

// ArtifactNames lists the files a complete model set consists of.
func ArtifactNames() []string {
	return []string{FruitModelFile, LabelEncoderFile, OrganicModelsFile}
}

func (s *FileStore) Load() (*Models, error) {
	var fruitEnv ml.Envelope
	if err := s.readJSON(FruitModelFile, "fruit model", &fruitEnv); err != nil {
		return nil, err
	}
	var labels LabelDecoder
	if err := s.readJSON(LabelEncoderFile, "label encoder", &labels); err != nil {
		return nil, err
	}
	var organicEnvs map[Fruit]ml.Envelope
	if err := s.readJSON(OrganicModelsFile, "organic models", &organicEnvs); err != nil {
		return nil, err
	}

	fruitModel, err := ml.UnmarshalEnvelope(fruitEnv)
	if err != nil {
		return nil, fmt.Errorf("fruit model: %w", err)
	}
	models := &Models{Fruit: fruitModel, Labels: &labels}
	for fruit, env := range organicEnvs {
		model, err := ml.UnmarshalEnvelope(env)
		if err != nil {
			return nil, fmt.Errorf("organic model for %s: %w", fruit, err)
		}
		models.Organic[fruit] = model
	}
	if err := models.Validate(); err != nil {
		return nil, err
	}
	return models, nil
}

func (s *FileStore) readJSON(name, what string, v any) error {
	path := s.path(name)
	payload, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s not found at %s", what, path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", what, err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("parse %s at %s: %w", what, path, err)
	}
	return nil
}

// Save writes the artifacts, each through a temporary file and a rename so
// a concurrent Load never reads a half-written file. The fruit model is
// written last.
func (s *FileStore) Save(models *Models) error {
	if err := models.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	organic := make(map[Fruit]ml.Envelope, NumFruits)
	for _, f := range Fruits() {
		env, err := ml.MarshalEnvelope(models.Organic[f])
		if err != nil {
			return fmt.Errorf("organic model for %s: %w", f, err)
		}
		organic[f] = env
	}
	fruitEnv, err := ml.MarshalEnvelope(models.Fruit)
	if err != nil {
		return fmt.Errorf("fruit model: %w", err)
	}

	if err := s.writeJSON(OrganicModelsFile, organic); err != nil {
		return err
	}
	if err := s.writeJSON(LabelEncoderFile, models.Labels); err != nil {
		return err
	}
	return s.writeJSON(FruitModelFile, fruitEnv)
}

func (s *FileStore) writeJSON(name string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(s.Dir, "."+name+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path(name))
}
