package models

import (
	"context"
	"fmt"
	"time"

	"github.com/pep299/news-analyzer/internal/huggingface"
)

// compatibleTags lists the hub pipeline tags accepted for each task
var compatibleTags = map[Task][]string{
	TaskSummarization:  {"summarization", "text2text-generation"},
	TaskClassification: {"text-classification"},
	TaskEmbedding:      {"feature-extraction", "sentence-similarity"},
}

// HubBackend resolves models against the Hugging Face hub
type HubBackend struct {
	client *huggingface.Client
}

// NewHubBackend creates a backend using client for metadata lookups
func NewHubBackend(client *huggingface.Client) *HubBackend {
	return &HubBackend{client: client}
}

// Load fetches model metadata and checks that the model serves spec.Task
func (b *HubBackend) Load(ctx context.Context, spec Spec) (*Handle, error) {
	info, err := b.client.ModelInfo(ctx, spec.ID)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", spec.ID, err)
	}

	// Some repositories carry no pipeline tag; trust the configuration then
	if info.PipelineTag != "" && !supports(spec.Task, info.PipelineTag) {
		return nil, fmt.Errorf("model %s is a %s model, not %s", spec.ID, info.PipelineTag, spec.Task)
	}

	return NewHandle(spec, info.SHA, info.PipelineTag, time.Now()), nil
}

func supports(task Task, tag string) bool {
	for _, t := range compatibleTags[task] {
		if t == tag {
			return true
		}
	}
	return false
}
