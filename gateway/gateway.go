// Package gateway turns a raw prompt into a moderated, normalized
// completion, or a precise failure.
package gateway

import (
	"context"
	"errors"
	"log"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/electrowiki/assistant/auth"
	"github.com/electrowiki/assistant/config"
	"github.com/electrowiki/assistant/domain"
	"github.com/electrowiki/assistant/llm"
	"github.com/electrowiki/assistant/policy"
	"github.com/electrowiki/assistant/store"
)

// MaxPromptChars is the maximum accepted prompt length.
const MaxPromptChars = 2000

const systemInstruction = "You are an AI assistant for Electro Wiki, a helpful and knowledgeable assistant that helps users with electronic and technical questions. Please provide accurate, helpful, and concise responses."

// fallbackResponse is returned when the provider produces no usable text.
const fallbackResponse = "I understand your question, but I'm having trouble generating a response right now. Could you please rephrase your question?"

// rolePrefixes are the provider artifacts stripped from the start of a
// response, matched case-insensitively.
var rolePrefixes = []string{"assistant:", "ai:", "response:", "answer:"}

// Service is the prompt gateway. It holds no per-request state and is safe
// for concurrent use.
type Service struct {
	llmClient    llm.CompletionClient
	store        store.Store
	policyEngine *policy.Engine
	config       *config.Config
	now          func() time.Time
}

// New creates a new gateway service. store and policyEngine may be nil,
// which disables auditing and moderation respectively.
func New(cfg *config.Config, llmClient llm.CompletionClient, st store.Store, policyEngine *policy.Engine) *Service {
	return &Service{
		llmClient:    llmClient,
		store:        st,
		policyEngine: policyEngine,
		config:       cfg,
		now:          time.Now,
	}
}

// Complete validates the prompt, moderates it, issues one completion call
// and normalizes the result. On failure the returned error is always a
// *Error. The first failing check wins; no retries are performed.
func (s *Service) Complete(ctx context.Context, rawPrompt string, caller auth.Identity) (*domain.CompletionResult, error) {
	requestID := "cmp_" + uuid.New().String()[:8]
	startTime := s.now()
	// The limit is in characters, not bytes; prompts full of Ω and µ
	// count the same as ASCII ones.
	promptChars := utf8.RuneCountInString(rawPrompt)

	fail := func(gerr *Error) (*domain.CompletionResult, error) {
		s.record(ctx, &domain.CompletionRecord{
			RequestID:   requestID,
			Caller:      string(caller),
			PromptChars: promptChars,
			Model:       s.config.Model,
			Outcome:     gerr.Outcome(),
			Detail:      gerr.Error(),
			LatencyMs:   s.now().Sub(startTime).Milliseconds(),
			CreatedAt:   s.now().UTC(),
		})
		return nil, gerr
	}

	if caller == "" {
		return fail(ErrUnauthenticated())
	}
	if strings.TrimSpace(rawPrompt) == "" {
		return fail(ErrInvalidInput(MsgPromptEmpty))
	}
	if promptChars > MaxPromptChars {
		return fail(ErrInvalidInput(MsgPromptTooLong))
	}
	if s.config.OpenAIAPIKey == "" {
		log.Printf("ERROR: OPENAI_API_KEY is not configured")
		return fail(ErrMisconfigured())
	}

	if s.policyEngine != nil {
		decision, reason, err := s.policyEngine.Evaluate(ctx, policy.Input{
			Prompt: rawPrompt,
			User:   string(caller),
		})
		if err != nil {
			// Moderation is supplementary; fall open on engine failure.
			log.Printf("WARN: prompt policy evaluation failed: %v", err)
		} else if decision == policy.DecisionBlock {
			log.Printf("WARN: prompt blocked by policy for %s: %s", caller, reason)
			return fail(ErrInvalidInput(MsgPromptBlocked))
		}
	}

	temperature := s.config.Temperature
	maxTokens := s.config.MaxTokens
	resp, err := s.llmClient.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model: s.config.Model,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: rawPrompt},
		},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		log.Printf("ERROR: completion request failed: %v", err)
		return fail(classifyProviderError(err))
	}

	var text string
	if len(resp.Choices) > 0 && resp.Choices[0].Message != nil {
		text = resp.Choices[0].Message.Content
	}
	text = NormalizeResponse(text)
	if text == "" {
		text = fallbackResponse
	}

	rec := &domain.CompletionRecord{
		RequestID:   requestID,
		Caller:      string(caller),
		PromptChars: promptChars,
		Model:       resp.Model,
		Outcome:     domain.OutcomeOK,
		LatencyMs:   s.now().Sub(startTime).Milliseconds(),
		CreatedAt:   s.now().UTC(),
	}
	if resp.Usage != nil {
		rec.PromptTokens = resp.Usage.PromptTokens
		rec.CompletionTokens = resp.Usage.CompletionTokens
		rec.TotalTokens = resp.Usage.TotalTokens
	}
	s.record(ctx, rec)

	return &domain.CompletionResult{
		Text:     text,
		IssuedAt: s.now().UTC(),
		Caller:   string(caller),
	}, nil
}

// NormalizeResponse strips leading role-label artifacts and trims the
// text. It is idempotent: applying it to its own output is a no-op.
func NormalizeResponse(text string) string {
	out := strings.TrimSpace(text)
	for {
		stripped := false
		lower := strings.ToLower(out)
		for _, prefix := range rolePrefixes {
			if strings.HasPrefix(lower, prefix) {
				out = strings.TrimSpace(out[len(prefix):])
				stripped = true
				break
			}
		}
		if !stripped {
			return out
		}
	}
}

// classifyProviderError maps a provider failure to the gateway taxonomy.
func classifyProviderError(err error) *Error {
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429 || mentionsCapacity(apiErr):
			return ErrOverloaded(err)
		case apiErr.StatusCode == 408 || apiErr.StatusCode == 504:
			return ErrTimeout(err)
		default:
			return ErrUpstream(err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout(err)
	}

	return ErrUpstream(err)
}

func mentionsCapacity(apiErr *llm.APIError) bool {
	msg := strings.ToLower(apiErr.Message + " " + apiErr.Type + " " + apiErr.Code)
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "quota")
}

// record persists an audit entry, best-effort.
func (s *Service) record(ctx context.Context, rec *domain.CompletionRecord) {
	if s.store == nil {
		return
	}
	if err := s.store.RecordCompletion(ctx, rec); err != nil {
		log.Printf("WARN: failed to record completion audit entry: %v", err)
	}
}
