package querygen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var clientTracer = otel.Tracer("querygen.internal.querygen.client")

const defaultCallTimeout = 60 * time.Second

// GenerationClient sends one turn payload to the generation service and
// returns the assistant turn or a typed *GenerationError. Implementations
// perform exactly one outbound call per invocation and never retry.
type GenerationClient interface {
	Send(ctx context.Context, payload []Turn) (Turn, error)
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenRouterClient is a stateless adapter around OpenRouter's
// OpenAI-compatible chat-completion endpoint.
type OpenRouterClient struct {
	client  chatClient
	model   string
	timeout time.Duration
}

// NewOpenRouterClient wires a go-openai client pointed at OpenRouter.
func NewOpenRouterClient(apiKey, baseURL, model string, timeout time.Duration) (*OpenRouterClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("querygen: openrouter api key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = "google/gemini-pro"
	}
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = baseURL
	}
	return newOpenRouterClient(openai.NewClientWithConfig(cfg), model, timeout), nil
}

func newOpenRouterClient(client chatClient, model string, timeout time.Duration) *OpenRouterClient {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &OpenRouterClient{client: client, model: model, timeout: timeout}
}

// Send issues one chat-completion call and maps the outcome onto the
// failure taxonomy. The payload is sent as-is; ordering is the caller's
// responsibility.
func (c *OpenRouterClient) Send(ctx context.Context, payload []Turn) (Turn, error) {
	ctx, span := clientTracer.Start(ctx, "querygen.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("querygen.model", c.model),
		attribute.Int("querygen.payload_turns", len(payload)),
	)

	messages := make([]openai.ChatCompletionMessage, 0, len(payload))
	for _, t := range payload {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    t.Role,
			Content: t.Content,
		})
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		genErr := classifyCallError(err)
		span.RecordError(genErr)
		return Turn{}, genErr
	}

	if len(resp.Choices) == 0 {
		genErr := &GenerationError{
			Kind:   FailureNoCompletion,
			Detail: "response contained no choices",
		}
		span.RecordError(genErr)
		return Turn{}, genErr
	}

	choice := resp.Choices[0].Message
	if strings.TrimSpace(choice.Content) == "" {
		genErr := &GenerationError{
			Kind:   FailureNoCompletion,
			Detail: fmt.Sprintf("first choice had empty content (finish reason %q)", resp.Choices[0].FinishReason),
		}
		span.RecordError(genErr)
		return Turn{}, genErr
	}

	role := choice.Role
	if role == "" {
		role = RoleAssistant
	}
	return Turn{Role: role, Content: choice.Content}, nil
}

// classifyCallError maps transport, status and decode errors returned by
// go-openai onto the failure taxonomy.
func classifyCallError(err error) *GenerationError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &GenerationError{
			Kind:   FailureRemoteRejected,
			Detail: fmt.Sprintf("status %d: %s", apiErr.HTTPStatusCode, apiErr.Message),
			Err:    err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &GenerationError{
			Kind:   FailureRemoteRejected,
			Detail: fmt.Sprintf("status %d", reqErr.HTTPStatusCode),
			Err:    err,
		}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &GenerationError{
			Kind:   FailureMalformedResponse,
			Detail: "response body could not be decoded",
			Err:    err,
		}
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &GenerationError{
			Kind:   FailureUnavailable,
			Detail: err.Error(),
			Err:    err,
		}
	}

	return &GenerationError{
		Kind:   FailureUnavailable,
		Detail: err.Error(),
		Err:    err,
	}
}
