package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Envelope is the persisted form of a model: its type tag plus the
// model-specific payload.
type Envelope struct {
	Type  string          `json:"type"`
	Model json.RawMessage `json:"model"`
}

func NewModel(modelType string, maxDepth int) (MLModel, error) {
	switch modelType {
	case ModelTypeNaiveBayes, "":
		return NewGaussianNB(), nil
	case ModelTypeDecisionTree:
		return NewDecisionTree(maxDepth), nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
}

func MarshalEnvelope(model MLModel) (Envelope, error) {
	if model == nil {
		return Envelope{}, errors.New("nil model")
	}
	payload, err := json.Marshal(model)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", model.Type(), err)
	}
	return Envelope{Type: model.Type(), Model: payload}, nil
}

func UnmarshalEnvelope(env Envelope) (MLModel, error) {
	if env.Type == "" {
		return nil, errors.New("model envelope has no type")
	}
	if len(env.Model) == 0 {
		return nil, fmt.Errorf("%s envelope has no payload", env.Type)
	}
	model, err := NewModel(env.Type, 0)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(env.Model, model); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return model, nil
}

// LoadModel reads a model file. An empty modelType accepts whatever type
// the file declares.
func LoadModel(modelType, path string) (MLModel, error) {
	env, err := readEnvelope(path)
	if err != nil {
		return nil, err
	}
	if modelType != "" && env.Type != modelType {
		return nil, fmt.Errorf("%s holds a %s model, expected %s", path, env.Type, modelType)
	}
	return UnmarshalEnvelope(env)
}

func SaveModel(path string, model MLModel) error {
	env, err := MarshalEnvelope(model)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func readEnvelope(path string) (Envelope, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return env, nil
}

func loadInto(path string, model MLModel) error {
	env, err := readEnvelope(path)
	if err != nil {
		return err
	}
	if env.Type != model.Type() {
		return fmt.Errorf("%s holds a %s model, expected %s", path, env.Type, model.Type())
	}
	return json.Unmarshal(env.Model, model)
}
