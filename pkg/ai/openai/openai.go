package openai

import (
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/Bunka-lab/epstein-files/pkg/ai"
)

// ExtractOpenAIClient implements ai.ExtractionAIClient against any
// OpenAI-compatible chat completion endpoint.
//
// An ExtractOpenAIClient should be created using NewExtractOpenAIClient.
type ExtractOpenAIClient struct {
	extractionModel string

	chatURL string
	chatKey string

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient *openai.Client
}

// NewExtractOpenAIClientParams defines the configuration parameters for
// creating a new ExtractOpenAIClient.
//
// ExtractionModel specifies the model used for mention extraction.
// ChatURL and ChatKey configure the chat/completion API endpoint; an empty
// ChatURL targets the official OpenAI API.
type NewExtractOpenAIClientParams struct {
	ExtractionModel string

	ChatURL string
	ChatKey string
}

// NewExtractOpenAIClient creates and returns a new ExtractOpenAIClient
// configured with the provided parameters.
func NewExtractOpenAIClient(
	params NewExtractOpenAIClientParams,
) *ExtractOpenAIClient {
	return &ExtractOpenAIClient{
		extractionModel: params.ExtractionModel,

		chatURL: params.ChatURL,
		chatKey: params.ChatKey,

		metricsLock: sync.Mutex{},
		metrics:     ai.ModelMetrics{},

		ChatClient: newOpenaiClient(params.ChatURL, params.ChatKey),
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}

// ResetMetrics clears all accumulated token and timing metrics to zero.
func (c *ExtractOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	c.metrics = ai.ModelMetrics{}
	c.metricsLock.Unlock()
}

// GetMetrics returns the accumulated token usage and timing metrics since the last reset.
func (c *ExtractOpenAIClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *ExtractOpenAIClient) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += m.InputTokens
	c.metrics.OutputTokens += m.OutputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.DurationMs += m.DurationMs
}
