package quiz

import (
	"math"
)

// StartQuiz opens a session over questions. A session with no questions is
// completed immediately.
func (e *Engine) StartQuiz(questions []Question) *Session {
	now := e.now()
	s := &Session{
		ID:        e.newID(),
		Questions: questions,
		Answers:   make(map[string]string, len(questions)),
		State:     StateInProgress,
		StartedAt: now,
	}
	if len(questions) == 0 {
		s.State = StateCompleted
		s.EndedAt = &now
	}
	return s
}

// SubmitAnswer records an answer and reports whether it was correct.
// Each question may be answered once; the answer that covers the last
// unanswered question completes the session.
func (e *Engine) SubmitAnswer(s *Session, questionID, answer string) (bool, error) {
	if s.Completed() {
		return false, ErrSessionCompleted
	}
	q, ok := s.Question(questionID)
	if !ok {
		return false, ErrQuestionNotFound
	}
	if _, answered := s.Answers[questionID]; answered {
		return false, ErrAlreadyAnswered
	}

	if s.Answers == nil {
		s.Answers = make(map[string]string, len(s.Questions))
	}
	s.Answers[questionID] = answer

	correct := answer == q.CorrectAnswer
	if correct {
		s.Score += q.Points
	}

	if len(s.Answers) < len(s.Questions) {
		s.CurrentIndex = s.nextUnanswered()
	} else {
		now := e.now()
		s.State = StateCompleted
		s.EndedAt = &now
	}
	return correct, nil
}

// nextUnanswered returns the index of the first unanswered question at or
// after the cursor, wrapping around.
func (s *Session) nextUnanswered() int {
	n := len(s.Questions)
	for i := range n {
		idx := (s.CurrentIndex + i) % n
		if _, ok := s.Answers[s.Questions[idx].ID]; !ok {
			return idx
		}
	}
	return s.CurrentIndex
}

// CalculateResults scores a session. Unanswered questions count as wrong.
func (e *Engine) CalculateResults(s *Session) Result {
	total := 0
	correct := 0
	answered := 0
	for _, q := range s.Questions {
		total += q.Points
		a, ok := s.Answers[q.ID]
		if !ok {
			continue
		}
		answered++
		if a == q.CorrectAnswer {
			correct++
		}
	}

	end := e.now()
	if s.EndedAt != nil {
		end = *s.EndedAt
	}

	return Result{
		Score:      s.Score,
		Total:      total,
		Percentage: percentage(s.Score, total),
		Correct:    correct,
		Wrong:      len(s.Questions) - correct,
		Unanswered: len(s.Questions) - answered,
		TimeTaken:  int(math.Round(end.Sub(s.StartedAt).Seconds())),
		Rank:       Rank(s.Score, total),
	}
}

// Rank maps a score to a title.
func Rank(score, total int) string {
	var pct float64
	if total > 0 {
		pct = float64(score) / float64(total) * 100
	}

	switch {
	case pct >= 90:
		return "Geography Genius 🏆"
	case pct >= 75:
		return "World Explorer 🌍"
	case pct >= 60:
		return "Globe Trotter ✈️"
	case pct >= 40:
		return "Traveler 🗺️"
	default:
		return "Tourist 🧳"
	}
}
