package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragnote/ai"
	"github.com/poiesic/ragnote/core"
	"github.com/poiesic/ragnote/extract"
	"github.com/poiesic/ragnote/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/poiesic/ragnote/chat"

const (
	DefaultUserID       = "owner"
	defaultHistoryLimit = 10
	defaultPoolSize     = 16
	defaultDedupeSize   = 256
	defaultDedupeTTL    = 10 * time.Minute
)

// Request is one question to the assistant.
type Request struct {
	Text           string
	ConversationID string // optional; a new id is minted when empty
	UserID         string // optional; defaults to the service's default user
}

// Response is the assistant's answer.
type Response struct {
	Response       string
	ConversationID string
	ContextUsed    bool
	URLsExtracted  int
	Model          string
}

// Service answers questions and records conversations.
type Service struct {
	profiles      storage.ProfileRepository
	conversations storage.ConversationRepository
	retriever     Retriever
	generator     Generator

	extractor LinkExtractor
	ingester  Ingester

	ownerName     string
	defaultUserID string
	historyLimit  int

	pool       *ants.Pool
	inflight   sync.WaitGroup
	dedupeSize int
	dedupeTTL  time.Duration
	seenMu     sync.Mutex
	seen       *expirable.LRU[string, struct{}]

	tracer trace.Tracer
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithLinkIngestion enables background ingestion of links found in
// questions.
func WithLinkIngestion(extractor LinkExtractor, ingester Ingester) Option {
	return func(s *Service) error {
		s.extractor = extractor
		s.ingester = ingester
		return nil
	}
}

// WithOwnerName sets the person the assistant represents.
func WithOwnerName(name string) Option {
	return func(s *Service) error {
		s.ownerName = strings.TrimSpace(name)
		return nil
	}
}

// WithDefaultUserID sets the user id applied to requests without one.
// Default is "owner".
func WithDefaultUserID(userID string) Option {
	return func(s *Service) error {
		if userID = strings.TrimSpace(userID); userID != "" {
			s.defaultUserID = userID
		}
		return nil
	}
}

// WithHistoryLimit sets how many recent turns are sent with a question.
// Default is 10.
func WithHistoryLimit(limit int) Option {
	return func(s *Service) error {
		if limit < 0 {
			limit = 0
		}
		s.historyLimit = limit
		return nil
	}
}

// WithPoolSize sets how many links are ingested concurrently.
func WithPoolSize(size int) Option {
	return func(s *Service) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if s.pool != nil {
			s.pool.Release()
		}
		s.pool = pool
		return nil
	}
}

// WithLinkDedupe sets how long a dispatched link is remembered and not
// ingested again. Default is 256 links for 10 minutes.
func WithLinkDedupe(size int, ttl time.Duration) Option {
	return func(s *Service) error {
		if size < 1 {
			size = defaultDedupeSize
		}
		s.dedupeSize = size
		s.dedupeTTL = ttl
		return nil
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) error {
		if tracer != nil {
			s.tracer = tracer
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewService creates a chat service.
func NewService(
	profiles storage.ProfileRepository,
	conversations storage.ConversationRepository,
	retriever Retriever,
	generator Generator,
	opts ...Option,
) (*Service, error) {
	if profiles == nil {
		return nil, ErrProfileRepositoryRequired
	}
	if conversations == nil {
		return nil, ErrConversationRepositoryRequired
	}
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	pool, err := ants.NewPool(defaultPoolSize)
	if err != nil {
		return nil, err
	}

	s := &Service{
		profiles:      profiles,
		conversations: conversations,
		retriever:     retriever,
		generator:     generator,
		defaultUserID: DefaultUserID,
		historyLimit:  defaultHistoryLimit,
		pool:          pool,
		dedupeSize:    defaultDedupeSize,
		dedupeTTL:     defaultDedupeTTL,
		tracer:        otel.Tracer(tracerName),
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(s); optErr != nil {
			s.Release()
			return nil, optErr
		}
	}
	s.seen = expirable.NewLRU[string, struct{}](s.dedupeSize, nil, s.dedupeTTL)
	s.logger = s.logger.With("component", "chat")

	return s, nil
}

// Chat answers req.
// Only missing text, a conversation owned by another user and a generation
// failure are errors; every other failure reduces the context of the answer.
func (s *Service) Chat(ctx context.Context, req Request) (*Response, error) {
	question := strings.TrimSpace(req.Text)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	userID := s.userID(req.UserID)

	ctx, span := s.tracer.Start(ctx, "chat.Chat", trace.WithAttributes(attribute.String("chat.user_id", userID)))
	defer span.End()

	dispatched := s.dispatchLinks(ctx, ExtractURLs(question))

	conversationID := strings.TrimSpace(req.ConversationID)
	existing := conversationID != ""
	if existing {
		if _, err := s.conversations.BindConversation(ctx, conversationID, userID); err != nil {
			if errors.Is(err, core.ErrConversationOwnership) {
				span.SetStatus(codes.Error, "conversation ownership")
				return nil, fmt.Errorf("conversation %s: %w", conversationID, err)
			}
			s.logger.Error("error binding conversation", "conversation", conversationID, "err", err)
		}
	} else {
		conversationID = "conv-" + uuid.NewString()
	}
	span.SetAttributes(attribute.String("chat.conversation_id", conversationID))

	var (
		profile *core.UserProfile
		history []*core.ConversationTurn
		chunks  []*core.Chunk
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile = s.loadProfile(gctx, userID)
		return nil
	})
	if existing && s.historyLimit > 0 {
		g.Go(func() error {
			history = s.loadHistory(gctx, conversationID)
			return nil
		})
	}
	g.Go(func() error {
		result, err := s.retriever.Retrieve(gctx, question, nil)
		if err != nil {
			s.logger.Error("error retrieving context", "err", err)
			return nil
		}
		chunks = result.Chunks
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.SystemMessage(systemPrompt(s.ownerName, profile, chunks)))
	for _, turn := range history {
		if turn.Role == core.RoleAssistant {
			messages = append(messages, ai.AssistantMessage(turn.Content))
		} else {
			messages = append(messages, ai.UserMessage(turn.Content))
		}
	}
	messages = append(messages, ai.UserMessage(question))

	generation, err := s.generator.Generate(ctx, messages)
	if err != nil {
		if !errors.Is(err, core.ErrGeneration) {
			err = fmt.Errorf("%w: %w", core.ErrGeneration, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("generation failed", "conversation", conversationID, "err", err)
		return nil, err
	}

	s.recordTurns(ctx, conversationID, userID, question, generation.Text)

	answer := generation.Text
	if len(dispatched) > 0 {
		lines := make([]string, len(dispatched))
		for i, link := range dispatched {
			lines[i] = "Learning from: " + link
		}
		answer = strings.Join(lines, "\n") + "\n\n" + answer
	}

	span.SetAttributes(
		attribute.Int("chat.context_chunks", len(chunks)),
		attribute.Int("chat.history_turns", len(history)),
		attribute.Int("chat.urls_extracted", len(dispatched)),
		attribute.String("chat.model", generation.Model),
	)
	return &Response{
		Response:       answer,
		ConversationID: conversationID,
		ContextUsed:    len(chunks) > 0,
		URLsExtracted:  len(dispatched),
		Model:          generation.Model,
	}, nil
}

// UpdateProfile replaces the profile of userID, or of the default user when
// userID is empty.
func (s *Service) UpdateProfile(ctx context.Context, userID, info string) (*core.UserProfile, error) {
	if strings.TrimSpace(info) == "" {
		return nil, ErrEmptyProfile
	}
	profile, err := s.profiles.UpsertProfile(ctx, &core.UserProfile{UserID: s.userID(userID), Info: info})
	if err != nil {
		return nil, fmt.Errorf("%w: updating profile: %w", core.ErrStorage, err)
	}
	s.logger.Info("profile updated", "user", profile.UserID)
	return profile, nil
}

// Wait blocks until every dispatched link has been extracted and handed to
// ingestion.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// Release frees the background pool.
func (s *Service) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

func (s *Service) userID(userID string) string {
	if userID = strings.TrimSpace(userID); userID != "" {
		return userID
	}
	return s.defaultUserID
}

func (s *Service) loadProfile(ctx context.Context, userID string) *core.UserProfile {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("error loading profile", "user", userID, "err", err)
		}
		return nil
	}
	return profile
}

func (s *Service) loadHistory(ctx context.Context, conversationID string) []*core.ConversationTurn {
	turns, err := s.conversations.RecentTurns(ctx, conversationID, s.historyLimit)
	if err != nil {
		s.logger.Error("error loading conversation history", "conversation", conversationID, "err", err)
		return nil
	}
	return turns
}

// recordTurns appends the exchange to the conversation. Failures are logged
// and never reach the caller.
func (s *Service) recordTurns(ctx context.Context, conversationID, userID, question, answer string) {
	now := time.Now().UTC()
	err := s.conversations.AppendTurns(ctx,
		&core.ConversationTurn{
			ConversationID: conversationID,
			UserID:         userID,
			Role:           core.RoleUser,
			Content:        question,
			CreatedAt:      now,
		},
		&core.ConversationTurn{
			ConversationID: conversationID,
			UserID:         userID,
			Role:           core.RoleAssistant,
			Content:        answer,
			CreatedAt:      now,
		},
	)
	if err != nil {
		s.logger.Error("error saving conversation turns", "conversation", conversationID,
			"err", fmt.Errorf("%w: %w", core.ErrStorage, err))
	}
}

// dispatchLinks schedules background ingestion of each link and returns
// them all. Links dispatched within the dedupe TTL are reported but not
// fetched again.
func (s *Service) dispatchLinks(ctx context.Context, links []string) []string {
	if s.extractor == nil || s.ingester == nil || len(links) == 0 {
		return nil
	}

	background := context.WithoutCancel(ctx)
	for _, link := range links {
		if !s.markSeen(link) {
			s.logger.Debug("link ingested recently, skipping fetch", "url", link)
			continue
		}
		s.inflight.Add(1)
		// Submit blocks while the pool is saturated; the request never waits on it.
		go func() {
			err := s.pool.Submit(func() {
				defer s.inflight.Done()
				s.ingestLink(background, link)
			})
			if err != nil {
				s.inflight.Done()
				s.forget(link)
				s.logger.Warn("could not schedule link ingestion", "url", link, "err", err)
			}
		}()
	}
	return links
}

func (s *Service) ingestLink(ctx context.Context, link string) {
	ctx, span := s.tracer.Start(ctx, "chat.ingestLink", trace.WithAttributes(attribute.String("chat.url", link)))
	defer span.End()

	content, err := s.extractor.Extract(ctx, link)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.forget(link)
		s.logger.Warn("link extraction failed", "url", link, "err", err)
		return
	}

	instanceID, err := s.ingester.Start(ctx, extract.Tag(content, s.ownerName), link)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("link ingestion failed", "url", link, "instance", instanceID, "err", err)
		return
	}
	s.logger.Info("ingesting link", "url", link, "instance", instanceID)
}

// markSeen records link and reports whether it was not already recorded.
func (s *Service) markSeen(link string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	if s.seen.Contains(link) {
		return false
	}
	s.seen.Add(link, struct{}{})
	return true
}

func (s *Service) forget(link string) {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	s.seen.Remove(link)
}
