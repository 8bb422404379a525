// Package quiz generates multiple-choice geography questions, runs quiz
// sessions and scores them.
package quiz

import (
	"errors"
	"time"
)

// QuestionType is the kind of fact a question asks about.
type QuestionType string

const (
	TypeCapital    QuestionType = "capital"
	TypePopulation QuestionType = "population"
	TypeFlag       QuestionType = "flag"
	TypeLocation   QuestionType = "location"
	TypeCurrency   QuestionType = "currency"
	TypeLandmark   QuestionType = "landmark"
)

// QuestionTypes is the rotation used by GenerateQuestions.
var QuestionTypes = []QuestionType{
	TypeCapital,
	TypePopulation,
	TypeFlag,
	TypeLocation,
	TypeCurrency,
	TypeLandmark,
}

// Difficulty is a question tier.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// DifficultySetting is the reward and time limit for a tier.
type DifficultySetting struct {
	Points    int `json:"points" yaml:"points"`
	TimeLimit int `json:"time_limit" yaml:"time_limit"` // seconds
}

// DifficultyWeight is the relative chance of drawing a tier.
type DifficultyWeight struct {
	Difficulty Difficulty
	Weight     float64
}

// Question is one multiple-choice item.
type Question struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Prompt        string       `json:"prompt"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correct_answer"`
	Explanation   string       `json:"explanation,omitempty"`
	Difficulty    Difficulty   `json:"difficulty"`
	Points        int          `json:"points"`
	TimeLimit     int          `json:"time_limit,omitempty"` // seconds
}

// SessionState is the lifecycle position of a Session.
type SessionState string

const (
	StateInProgress SessionState = "in_progress"
	StateCompleted  SessionState = "completed"
)

// Session is one quiz attempt.
//
// Transitions:
//
//	in_progress --submit (not last)--> in_progress
//	in_progress --submit (last)------> completed
//	completed   --submit-------------> rejected (ErrSessionCompleted)
type Session struct {
	ID           string            `json:"id"`
	Player       string            `json:"player,omitempty"`
	Questions    []Question        `json:"questions"`
	CurrentIndex int               `json:"current_index"`
	Answers      map[string]string `json:"answers"`
	Score        int               `json:"score"`
	State        SessionState      `json:"state"`
	StartedAt    time.Time         `json:"started_at"`
	EndedAt      *time.Time        `json:"ended_at,omitempty"`
	// Version counts successful saves. A SessionStore rejects a save whose
	// Version no longer matches the stored one.
	Version      int               `json:"version"`
}

// Completed reports whether the session accepts no more answers.
func (s *Session) Completed() bool {
	return s.State == StateCompleted
}

// Question returns the question with the given id.
func (s *Session) Question(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Current returns the question under the cursor, if the session is still open.
func (s *Session) Current() (Question, bool) {
	if s.Completed() || s.CurrentIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	c.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		q.Options = append([]string(nil), q.Options...)
		c.Questions[i] = q
	}
	c.Answers = make(map[string]string, len(s.Answers))
	for k, v := range s.Answers {
		c.Answers[k] = v
	}
	if s.EndedAt != nil {
		ended := *s.EndedAt
		c.EndedAt = &ended
	}
	return &c
}

// Result summarizes a session.
type Result struct {
	Score      int    `json:"score"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Correct    int    `json:"correct"`
	Wrong      int    `json:"wrong"`
	Unanswered int    `json:"unanswered"`
	TimeTaken  int    `json:"time_taken"` // seconds
	Rank       string `json:"rank"`
}

var (
	ErrUnknownQuestionType = errors.New("unknown question type")
	ErrNoCountries         = errors.New("no countries to build questions from")
	ErrQuestionNotFound    = errors.New("question not found in session")
	ErrAlreadyAnswered     = errors.New("question already answered")
	ErrSessionCompleted    = errors.New("session already completed")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionConflict     = errors.New("session was modified concurrently")
)
