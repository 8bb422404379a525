package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/p-n-ai/worldnet/internal/country"
)

// maxSaveAttempts bounds retries when another writer saved the session
// between our read and write.
const maxSaveAttempts = 3

// ServiceConfig holds dependencies for the quiz service.
type ServiceConfig struct {
	Engine       *Engine
	Countries    country.Source
	Store        SessionStore
	Events       EventLogger
	Leaderboard  Leaderboard
	DefaultCount int
}

// Service runs quizzes end to end: it generates questions from the country
// source, persists sessions, logs events and updates the leaderboard.
type Service struct {
	engine       *Engine
	countries    country.Source
	store        SessionStore
	events       EventLogger
	leaderboard  Leaderboard
	defaultCount int
	mu           sync.Mutex // serializes answers in this process; Save versions guard across processes
}

// NewService creates a quiz service. Missing dependencies fall back to
// in-memory implementations.
func NewService(cfg ServiceConfig) *Service {
	engine := cfg.Engine
	if engine == nil {
		engine = NewEngine(EngineConfig{})
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	lb := cfg.Leaderboard
	if lb == nil {
		lb = NewMemoryLeaderboard(DemoLeaderboard()...)
	}
	count := cfg.DefaultCount
	if count <= 0 {
		count = defaultQuestionCount
	}
	return &Service{
		engine:       engine,
		countries:    cfg.Countries,
		store:        store,
		events:       events,
		leaderboard:  lb,
		defaultCount: count,
	}
}

// Engine returns the underlying quiz engine.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Outcome is the result of one submitted answer.
type Outcome struct {
	QuestionID    string `json:"question_id"`
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation,omitempty"`
	Score         int    `json:"score"`
	Completed     bool   `json:"completed"`
}

// Start creates and persists a new session with count questions.
func (s *Service) Start(ctx context.Context, player string, count int) (*Session, error) {
	if s.countries == nil {
		return nil, ErrNoCountries
	}
	countries, err := s.countries.Countries(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading countries: %w", err)
	}
	if count <= 0 {
		count = s.defaultCount
	}

	questions, err := s.engine.GenerateQuestions(countries, count)
	if err != nil {
		return nil, err
	}

	session := s.engine.StartQuiz(questions)
	session.Player = player
	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	s.logEvent(ctx, session, EventQuizStarted, map[string]any{"questions": len(questions)})
	slog.Info("quiz started", "session_id", session.ID, "player", player, "questions", len(questions))
	return session, nil
}

// Session returns a stored session.
func (s *Service) Session(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

// Answer submits an answer to a stored session.
func (s *Service) Answer(ctx context.Context, sessionID, questionID, answer string) (Outcome, *Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		session *Session
		correct bool
		err     error
	)
	for attempt := 1; ; attempt++ {
		session, correct, err = s.submit(ctx, sessionID, questionID, answer)
		if !errors.Is(err, ErrSessionConflict) || attempt == maxSaveAttempts {
			break
		}
		slog.Debug("session changed during answer, retrying", "session_id", sessionID, "attempt", attempt)
	}
	if err != nil {
		return Outcome{}, session, err
	}

	q, _ := session.Question(questionID)
	out := Outcome{
		QuestionID:    questionID,
		Correct:       correct,
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
		Score:         session.Score,
		Completed:     session.Completed(),
	}

	s.logEvent(ctx, session, EventAnswerSubmitted, map[string]any{
		"question_id": questionID,
		"type":        string(q.Type),
		"correct":     correct,
	})

	if session.Completed() {
		s.complete(ctx, session)
	}
	return out, session, nil
}

// submit applies one answer to a fresh copy of the session. Save rejects
// the write with ErrSessionConflict when another writer saved first.
func (s *Service) submit(ctx context.Context, sessionID, questionID, answer string) (*Session, bool, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	correct, err := s.engine.SubmitAnswer(session, questionID, answer)
	if err != nil {
		return session, false, err
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, false, fmt.Errorf("saving session: %w", err)
	}
	return session, correct, nil
}

// Results scores a stored session.
func (s *Service) Results(ctx context.Context, id string) (Result, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return s.engine.CalculateResults(session), nil
}

// Leaderboard returns the top entries.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	return s.leaderboard.Top(ctx, limit)
}

func (s *Service) complete(ctx context.Context, session *Session) {
	result := s.engine.CalculateResults(session)

	if session.Player != "" {
		if err := s.leaderboard.Record(ctx, session.Player, session.Score); err != nil {
			slog.Warn("failed to record leaderboard score", "session_id", session.ID, "error", err)
		}
	}

	s.logEvent(ctx, session, EventQuizCompleted, map[string]any{
		"score":      result.Score,
		"total":      result.Total,
		"percentage": result.Percentage,
		"rank":       result.Rank,
	})
	slog.Info("quiz completed",
		"session_id", session.ID,
		"score", result.Score,
		"total", result.Total,
		"rank", result.Rank,
	)
}

func (s *Service) logEvent(ctx context.Context, session *Session, eventType string, data map[string]any) {
	err := s.events.LogEvent(ctx, Event{
		SessionID: session.ID,
		Player:    session.Player,
		EventType: eventType,
		Data:      data,
	})
	if err != nil {
		slog.Warn("failed to log quiz event", "type", eventType, "session_id", session.ID, "error", err)
	}
}
