package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"flagstone-assistant/internal/ai"
	"flagstone-assistant/internal/index"
	"flagstone-assistant/internal/model"
)

const (
	defaultTopK      = 3
	contextSeparator = "\n\n"
)

type PassageSearcher interface {
	Query(ctx context.Context, collection, text string, k int) ([]index.Passage, error)
}

type Generator interface {
	Generate(ctx context.Context, req ai.GenerateRequest) (*ai.Stream, error)
}

type ExchangePublisher interface {
	Publish(ctx context.Context, exchange model.Exchange) error
}

type ChatConfig struct {
	Collection string
	TopK       int
	Model      string
}

// ChatService answers questions from the indexed corpus.
type ChatService struct {
	searcher  PassageSearcher
	generator Generator
	settings  *Settings
	publisher ExchangePublisher
	history   HistoryCache
	cfg       ChatConfig
	log       *zap.Logger
}

func NewChatService(
	searcher PassageSearcher,
	generator Generator,
	settings *Settings,
	cfg ChatConfig,
	log *zap.Logger,
) *ChatService {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if settings == nil {
		settings = NewSettings(true)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatService{
		searcher:  searcher,
		generator: generator,
		settings:  settings,
		cfg:       cfg,
		log:       log,
	}
}

// WithHistory records answered exchanges through publisher. cache may be nil.
func (s *ChatService) WithHistory(publisher ExchangePublisher, cache HistoryCache) *ChatService {
	s.publisher = publisher
	s.history = cache
	return s
}

// Answer retrieves context for question, generates a grounded reply and
// returns it normalized and formatted.
func (s *ChatService) Answer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	started := time.Now()

	passages, err := s.searcher.Query(ctx, s.cfg.Collection, question, s.cfg.TopK)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	cacheEnabled := s.settings.CacheEnabled()
	raw, err := s.generate(ctx, BuildPrompt(JoinPassages(passages), question), cacheEnabled)
	if err != nil {
		return "", err
	}

	answer := Normalize(raw)
	if answer == "" {
		return "", ErrEmptyResponse
	}
	answer = Format(answer)

	s.log.Info("question answered",
		zap.Int("passages", len(passages)),
		zap.Bool("cache", cacheEnabled),
		zap.Int("answer_len", len(answer)),
		zap.Duration("elapsed", time.Since(started)),
	)
	s.record(ctx, model.Exchange{
		Question:     question,
		Answer:       answer,
		Model:        s.cfg.Model,
		Passages:     len(passages),
		CacheEnabled: cacheEnabled,
		DurationMS:   time.Since(started).Milliseconds(),
		CreatedAt:    time.Now(),
	})
	return answer, nil
}

func (s *ChatService) generate(ctx context.Context, prompt string, cacheEnabled bool) (string, error) {
	stream, err := s.generator.Generate(ctx, ai.GenerateRequest{
		Prompt:  prompt,
		Options: ai.DeterministicOptions(cacheEnabled),
	})
	if err != nil {
		return "", generationError(err)
	}
	defer stream.Close()

	var b strings.Builder
	for stream.Next() {
		b.WriteString(stream.Fragment())
	}
	if err := stream.Err(); err != nil {
		return "", generationError(err)
	}
	if n := stream.Skipped(); n > 0 {
		s.log.Warn("generation stream had malformed lines", zap.Int("skipped", n))
	}
	return b.String(), nil
}

func (s *ChatService) record(ctx context.Context, exchange model.Exchange) {
	if s.publisher == nil {
		return
	}
	if s.history != nil {
		if err := s.history.MarkDirty(ctx); err != nil {
			s.log.Warn("mark history dirty failed", zap.Error(err))
		}
	}
	if err := s.publisher.Publish(ctx, exchange); err != nil {
		s.log.Warn("publish exchange failed", zap.Error(err))
	}
}

func generationError(err error) error {
	var statusErr *ai.StatusError
	if errors.As(err, &statusErr) {
		return &GenerationError{StatusCode: statusErr.StatusCode, Err: err}
	}
	return &GenerationError{Err: err}
}

// JoinPassages concatenates passage texts in rank order.
func JoinPassages(passages []index.Passage) string {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	return strings.Join(texts, contextSeparator)
}

func BuildPrompt(passages, question string) string {
	return `
Use the following relevant context to answer the question. Only use information from this context:

` + passages + `

Question: ` + question + `

Remember to:
1. Start with "Based on the relevant documentation:"
2. Only use information from the provided context
3. If the context doesn't contain the answer, say so
`
}
