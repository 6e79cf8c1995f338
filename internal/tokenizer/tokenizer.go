// Package tokenizer estimates token counts for merged selections.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates token counts for text content.
type Counter interface {
	Name() string
	CountString(input string) (int, error)
}

// Config captures tokenizer selection parameters.
type Config struct {
	Model string
}

const (
	// HeuristicModel selects the offline character-based estimate.
	HeuristicModel = "heuristic"

	defaultEncodingName = "cl100k_base"
)

var encodingNames = map[string]struct{}{
	"cl100k_base": {},
	"o200k_base":  {},
	"p50k_base":   {},
	"r50k_base":   {},
}

// NewCounter returns a Counter implementation for the requested model along
// with the resolved model name.
//
// The heuristic counter is the default and never touches the network.
// OpenAI model names and encoding names use tiktoken, which needs its BPE
// ranks available in the local tiktoken cache.
func NewCounter(cfg Config) (Counter, string, error) {
	model := strings.TrimSpace(cfg.Model)
	lowerModel := strings.ToLower(model)
	if lowerModel == "" || lowerModel == HeuristicModel {
		return heuristicCounter{}, HeuristicModel, nil
	}

	if _, isEncoding := encodingNames[lowerModel]; isEncoding {
		encoding, encodingError := tiktoken.GetEncoding(lowerModel)
		if encodingError != nil {
			return nil, "", fmt.Errorf("initialize tokenizer %s: %w", lowerModel, encodingError)
		}
		return openAICounter{encoding: encoding, name: lowerModel}, lowerModel, nil
	}

	if isOpenAIModel(lowerModel) {
		encoding, modelError := tiktoken.EncodingForModel(lowerModel)
		if modelError == nil && encoding != nil {
			return openAICounter{encoding: encoding, name: lowerModel}, model, nil
		}
		fallback, fallbackError := tiktoken.GetEncoding(defaultEncodingName)
		if fallbackError != nil {
			return nil, "", fmt.Errorf("initialize fallback tokenizer: %w", fallbackError)
		}
		return openAICounter{encoding: fallback, name: defaultEncodingName}, defaultEncodingName, nil
	}

	return nil, "", fmt.Errorf("unsupported tokenizer model %q", model)
}

func isOpenAIModel(model string) bool {
	prefixes := []string{
		"gpt-",
		"o1",
		"o3",
		"text-embedding",
		"davinci",
		"babbage",
		"code-",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}
