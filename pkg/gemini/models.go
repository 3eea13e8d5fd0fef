package gemini

import (
	"fmt"
	"strings"
)

// ModelType is an enum for the models offered for answering.
type ModelType string

const (
	// DefaultModel is the default model to use if none is specified
	DefaultModel ModelType = "gemini-2.5-flash"
	ProModel     ModelType = "gemini-2.5-pro"
)

// Models lists the selectable models, default first.
func Models() []ModelType {
	return []ModelType{DefaultModel, ProModel}
}

// ResolveModel validates name and returns the model id to send. An empty
// name resolves to DefaultModel.
func ResolveModel(name string) (string, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "models/")

	switch ModelType(name) {
	case "":
		return string(DefaultModel), nil
	case DefaultModel, ProModel:
		return name, nil
	default:
		return "", fmt.Errorf("invalid model type: %s", name)
	}
}
