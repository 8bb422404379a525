package quiz

import (
	"errors"
	"testing"
	"time"
)

func twoQuestions() (Question, Question) {
	q1 := Question{ID: "q1", Type: TypeCapital, Options: []string{"Paris", "Rome", "Lima", "Oslo"}, CorrectAnswer: "Paris", Points: 10}
	q2 := Question{ID: "q2", Type: TypeLocation, Options: []string{"Asia", "Europe", "Africa", "Oceania"}, CorrectAnswer: "Asia", Points: 30}
	return q1, q2
}

func TestSubmitAnswer_Transitions(t *testing.T) {
	engine := seededEngine(1)
	q1, q2 := twoQuestions()
	s := engine.StartQuiz([]Question{q1, q2})

	if s.State != StateInProgress || s.CurrentIndex != 0 || s.Score != 0 {
		t.Fatalf("new session = %+v, want in_progress at index 0 with score 0", s)
	}

	correct, err := engine.SubmitAnswer(s, "q1", "Rome")
	if err != nil {
		t.Fatalf("SubmitAnswer(q1) error = %v", err)
	}
	if correct {
		t.Error("SubmitAnswer(q1, Rome) reported correct")
	}
	if s.Score != 0 || s.CurrentIndex != 1 || s.Completed() {
		t.Errorf("after q1: score=%d index=%d completed=%v, want 0/1/false", s.Score, s.CurrentIndex, s.Completed())
	}

	correct, err = engine.SubmitAnswer(s, "q2", "Asia")
	if err != nil {
		t.Fatalf("SubmitAnswer(q2) error = %v", err)
	}
	if !correct {
		t.Error("SubmitAnswer(q2, Asia) reported wrong")
	}
	if !s.Completed() || s.Score != q2.Points {
		t.Errorf("after q2: completed=%v score=%d, want true/%d", s.Completed(), s.Score, q2.Points)
	}
	if s.EndedAt == nil {
		t.Error("EndedAt should be set on completion")
	}
}

func TestSubmitAnswer_RejectsResubmission(t *testing.T) {
	engine := seededEngine(1)
	q1, q2 := twoQuestions()
	s := engine.StartQuiz([]Question{q1, q2})

	if _, err := engine.SubmitAnswer(s, "q1", "Paris"); err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
	_, err := engine.SubmitAnswer(s, "q1", "Paris")
	if !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("second SubmitAnswer() error = %v, want ErrAlreadyAnswered", err)
	}
	if s.Score != 10 {
		t.Errorf("Score = %d, want 10 (no double count)", s.Score)
	}
	if s.CurrentIndex != 1 {
		t.Errorf("CurrentIndex = %d, want 1", s.CurrentIndex)
	}
}

func TestSubmitAnswer_CompletedSession(t *testing.T) {
	engine := seededEngine(1)
	q1, _ := twoQuestions()
	s := engine.StartQuiz([]Question{q1})

	if _, err := engine.SubmitAnswer(s, "q1", "Paris"); err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
	if _, err := engine.SubmitAnswer(s, "q1", "Rome"); !errors.Is(err, ErrSessionCompleted) {
		t.Errorf("error = %v, want ErrSessionCompleted", err)
	}
}

func TestSubmitAnswer_UnknownQuestion(t *testing.T) {
	engine := seededEngine(1)
	q1, q2 := twoQuestions()
	s := engine.StartQuiz([]Question{q1, q2})

	_, err := engine.SubmitAnswer(s, "nope", "Paris")
	if !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("error = %v, want ErrQuestionNotFound", err)
	}
	if len(s.Answers) != 0 || s.CurrentIndex != 0 {
		t.Error("session should be unchanged after unknown question")
	}
}

func TestSubmitAnswer_OutOfOrder(t *testing.T) {
	engine := seededEngine(1)
	q1, q2 := twoQuestions()
	s := engine.StartQuiz([]Question{q1, q2})

	if _, err := engine.SubmitAnswer(s, "q2", "Asia"); err != nil {
		t.Fatalf("SubmitAnswer(q2) error = %v", err)
	}
	if s.Completed() {
		t.Fatal("session completed with q1 unanswered")
	}
	if _, err := engine.SubmitAnswer(s, "q1", "Paris"); err != nil {
		t.Fatalf("SubmitAnswer(q1) error = %v", err)
	}
	if !s.Completed() || s.Score != 40 {
		t.Errorf("completed=%v score=%d, want true/40", s.Completed(), s.Score)
	}
}

func TestSubmitAnswer_OutOfOrderCursor(t *testing.T) {
	engine := seededEngine(1)
	q1, q2 := twoQuestions()
	q3 := Question{ID: "q3", CorrectAnswer: "EUR", Points: 20}
	s := engine.StartQuiz([]Question{q1, q2, q3})

	steps := []struct {
		answer string
		want   string
	}{
		{answer: "q2", want: "q1"},
		{answer: "q1", want: "q3"},
	}
	for _, step := range steps {
		if _, err := engine.SubmitAnswer(s, step.answer, "x"); err != nil {
			t.Fatalf("SubmitAnswer(%s) error = %v", step.answer, err)
		}
		cur, ok := s.Current()
		if !ok || cur.ID != step.want {
			t.Fatalf("after %s Current() = %q, %v; want %q", step.answer, cur.ID, ok, step.want)
		}
		if _, answered := s.Answers[cur.ID]; answered {
			t.Fatalf("Current() %q is already answered", cur.ID)
		}
	}

	cur, _ := s.Current()
	if _, err := engine.SubmitAnswer(s, cur.ID, "EUR"); err != nil {
		t.Fatalf("SubmitAnswer(current) error = %v", err)
	}
	if !s.Completed() {
		t.Error("session not completed after every question was answered")
	}
}

func TestSubmitAnswer_CursorWrapsAround(t *testing.T) {
	engine := seededEngine(1)
	q1, q2 := twoQuestions()
	q3 := Question{ID: "q3", CorrectAnswer: "EUR", Points: 20}
	s := engine.StartQuiz([]Question{q1, q2, q3})
	s.CurrentIndex = 2

	if _, err := engine.SubmitAnswer(s, "q3", "EUR"); err != nil {
		t.Fatalf("SubmitAnswer(q3) error = %v", err)
	}
	if s.CurrentIndex != 0 {
		t.Errorf("CurrentIndex = %d, want 0", s.CurrentIndex)
	}
}

func TestStartQuiz_Empty(t *testing.T) {
	s := seededEngine(1).StartQuiz(nil)
	if !s.Completed() {
		t.Error("empty session should be completed")
	}
	if _, ok := s.Current(); ok {
		t.Error("Current() should be empty for a completed session")
	}
}

func TestCalculateResults(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(95 * time.Second)
	q1, q2 := twoQuestions()
	q3 := Question{ID: "q3", CorrectAnswer: "EUR", Points: 20}

	s := &Session{
		Questions: []Question{q1, q2, q3},
		Answers:   map[string]string{"q2": "Asia", "q1": "Rome"},
		Score:     30,
		StartedAt: start,
		EndedAt:   &end,
	}

	got := seededEngine(1).CalculateResults(s)
	want := Result{
		Score:      30,
		Total:      60,
		Percentage: 50,
		Correct:    1,
		Wrong:      2,
		Unanswered: 1,
		TimeTaken:  95,
		Rank:       "Traveler 🗺️",
	}
	if got != want {
		t.Errorf("CalculateResults() = %+v, want %+v", got, want)
	}
}

func TestCalculateResults_PercentageMonotonic(t *testing.T) {
	engine := seededEngine(1)
	q1, q2 := twoQuestions()
	q3 := Question{ID: "q3", Points: 20}

	prev := -1
	for score := 0; score <= 60; score += 5 {
		s := &Session{Questions: []Question{q1, q2, q3}, Score: score, StartedAt: time.Now()}
		r := engine.CalculateResults(s)
		if r.Percentage < prev {
			t.Errorf("percentage dropped from %d to %d at score %d", prev, r.Percentage, score)
		}
		if want := percentage(score, 60); r.Percentage != want {
			t.Errorf("score %d: Percentage = %d, want %d", score, r.Percentage, want)
		}
		prev = r.Percentage
	}
}

func TestRank(t *testing.T) {
	tests := []struct {
		score, total int
		want         string
	}{
		{90, 100, "Geography Genius 🏆"},
		{89, 100, "World Explorer 🌍"},
		{75, 100, "World Explorer 🌍"},
		{60, 100, "Globe Trotter ✈️"},
		{40, 100, "Traveler 🗺️"},
		{39, 100, "Tourist 🧳"},
		{0, 0, "Tourist 🧳"},
	}
	for _, tt := range tests {
		if got := Rank(tt.score, tt.total); got != tt.want {
			t.Errorf("Rank(%d, %d) = %q, want %q", tt.score, tt.total, got, tt.want)
		}
	}
}

func TestSession_CloneIsIndependent(t *testing.T) {
	q1, q2 := twoQuestions()
	s := seededEngine(1).StartQuiz([]Question{q1, q2})
	c := s.Clone()

	c.Answers["q1"] = "Paris"
	c.Questions[0].Options[0] = "changed"

	if len(s.Answers) != 0 {
		t.Error("clone shares the answers map")
	}
	if s.Questions[0].Options[0] != "Paris" {
		t.Error("clone shares question options")
	}
}
