package conversation

import (
	"context"
	"time"

	"github.com/camomilehq/roombot/internal/assistant"
	"github.com/camomilehq/roombot/internal/observability/metrics"
	"github.com/camomilehq/roombot/pkg/logging"
)

// NLUClient is the assistant call the service depends on.
type NLUClient interface {
	Message(ctx context.Context, input assistant.Input, conversationCtx assistant.Context) (*assistant.MessageResponse, error)
}

// ActionDispatcher post-processes an NLU response, executing any embedded
// action directive.
type ActionDispatcher interface {
	Apply(ctx context.Context, resp *assistant.MessageResponse) (*assistant.MessageResponse, error)
}

// Service runs one conversation turn: NLU call, then action dispatch.
type Service struct {
	nlu        NLUClient
	dispatcher ActionDispatcher
	logger     *logging.Logger
	metrics    *metrics.BotMetrics
}

// NewService creates a conversation service.
func NewService(nlu NLUClient, dispatcher ActionDispatcher, logger *logging.Logger) *Service {
	if nlu == nil {
		panic("conversation: NLU client cannot be nil")
	}
	if dispatcher == nil {
		panic("conversation: dispatcher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{nlu: nlu, dispatcher: dispatcher, logger: logger}
}

// WithMetrics attaches turn metrics.
func (s *Service) WithMetrics(m *metrics.BotMetrics) *Service {
	s.metrics = m
	return s
}

// GetResponse sends the user input plus the previous turn's context to the
// NLU service and folds any resulting booking action back into the
// response before returning it.
func (s *Service) GetResponse(ctx context.Context, input assistant.Input, conversationCtx assistant.Context) (*assistant.MessageResponse, error) {
	started := time.Now()
	resp, err := s.nlu.Message(ctx, input, conversationCtx)
	s.metrics.ObserveAssistantLatency(time.Since(started).Seconds())
	if err != nil {
		return nil, err
	}
	return s.dispatcher.Apply(ctx, resp)
}
