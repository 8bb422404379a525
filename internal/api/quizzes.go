package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/p-n-ai/worldnet/internal/quiz"
)

const maxQuestions = 50

// questionView is a Question without its answer.
type questionView struct {
	ID         string            `json:"id"`
	Type       quiz.QuestionType `json:"type"`
	Prompt     string            `json:"prompt"`
	Options    []string          `json:"options"`
	Difficulty quiz.Difficulty   `json:"difficulty"`
	Points     int               `json:"points"`
	TimeLimit  int               `json:"time_limit,omitempty"`
}

func newQuestionView(q quiz.Question) questionView {
	return questionView{
		ID:         q.ID,
		Type:       q.Type,
		Prompt:     q.Prompt,
		Options:    q.Options,
		Difficulty: q.Difficulty,
		Points:     q.Points,
		TimeLimit:  q.TimeLimit,
	}
}

type sessionView struct {
	ID           string            `json:"id"`
	Player       string            `json:"player,omitempty"`
	State        quiz.SessionState `json:"state"`
	Score        int               `json:"score"`
	CurrentIndex int               `json:"current_index"`
	Total        int               `json:"total"`
	Questions    []questionView    `json:"questions"`
	Answers      map[string]string `json:"answers"`
	StartedAt    time.Time         `json:"started_at"`
	EndedAt      *time.Time        `json:"ended_at,omitempty"`
}

func newSessionView(s *quiz.Session) sessionView {
	v := sessionView{
		ID:           s.ID,
		Player:       s.Player,
		State:        s.State,
		Score:        s.Score,
		CurrentIndex: s.CurrentIndex,
		Total:        len(s.Questions),
		Questions:    make([]questionView, len(s.Questions)),
		Answers:      s.Answers,
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
	}
	for i, q := range s.Questions {
		v.Questions[i] = newQuestionView(q)
	}
	if v.Answers == nil {
		v.Answers = map[string]string{}
	}
	return v
}

type startQuizRequest struct {
	Player string `json:"player"`
	Count  int    `json:"count"`
}

type answerRequest struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

func (s *Server) handleStartQuiz(w http.ResponseWriter, r *http.Request) {
	var req startQuizRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Count < 0 || req.Count > maxQuestions {
		writeError(w, fmt.Errorf("%w: count must be between 0 and %d", errBadRequest, maxQuestions))
		return
	}

	session, err := s.quiz.Start(r.Context(), req.Player, req.Count)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionView(session))
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	session, err := s.quiz.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session))
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.QuestionID == "" {
		writeError(w, fmt.Errorf("%w: question_id is required", errBadRequest))
		return
	}

	outcome, _, err := s.quiz.Answer(r.Context(), r.PathValue("id"), req.QuestionID, req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	result, err := s.quiz.Results(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10, 100)
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := s.quiz.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []quiz.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
