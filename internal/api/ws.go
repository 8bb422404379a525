package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/worldnet/internal/quiz"
)

// Message types on the quiz socket. The server sends question, outcome,
// error and results; the client sends answer.
const (
	msgQuestion = "question"
	msgAnswer   = "answer"
	msgOutcome  = "outcome"
	msgError    = "error"
	msgResults  = "results"
)

type wsMessage struct {
	Type     string        `json:"type"`
	Index    int           `json:"index,omitempty"`
	Total    int           `json:"total,omitempty"`
	Question *questionView `json:"question,omitempty"`
	Outcome  *quiz.Outcome `json:"outcome,omitempty"`
	Results  *quiz.Result  `json:"results,omitempty"`
	Error    string        `json:"error,omitempty"`

	QuestionID string `json:"question_id,omitempty"`
	Answer     string `json:"answer,omitempty"`
}

func (s *Server) acceptOptions() *websocket.AcceptOptions {
	if s.allowAnyOrigin() {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	var hosts []string
	for _, o := range s.origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return &websocket.AcceptOptions{OriginPatterns: hosts}
}

// handleQuizWS plays a stored session over a WebSocket: it sends the current
// question, waits for an answer, replies with the outcome and repeats until
// the session completes, then sends the results and closes.
func (s *Server) handleQuizWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session, err := s.quiz.Session(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, s.acceptOptions())
	if err != nil {
		slog.Warn("websocket accept failed", "session_id", id, "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	for {
		q, ok := session.Current()
		if !ok {
			break
		}
		view := newQuestionView(q)
		err := wsjson.Write(ctx, conn, wsMessage{
			Type:     msgQuestion,
			Index:    session.CurrentIndex,
			Total:    len(session.Questions),
			Question: &view,
		})
		if err != nil {
			return
		}

		var in wsMessage
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			if websocket.CloseStatus(err) == -1 {
				slog.Debug("websocket read failed", "session_id", id, "error", err)
			}
			return
		}
		if in.Type != msgAnswer {
			if err := wsjson.Write(ctx, conn, wsMessage{Type: msgError, Error: "expected an answer message"}); err != nil {
				return
			}
			continue
		}
		if in.QuestionID == "" {
			in.QuestionID = q.ID
		}

		outcome, updated, err := s.quiz.Answer(ctx, id, in.QuestionID, in.Answer)
		if err != nil {
			if writeErr := wsjson.Write(ctx, conn, wsMessage{Type: msgError, Error: err.Error()}); writeErr != nil {
				return
			}
			if updated == nil || errors.Is(err, quiz.ErrSessionCompleted) {
				break
			}
			session = updated
			continue
		}
		session = updated
		if err := wsjson.Write(ctx, conn, wsMessage{Type: msgOutcome, Outcome: &outcome}); err != nil {
			return
		}
	}

	result, err := s.quiz.Results(ctx, id)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "results unavailable")
		return
	}
	if err := wsjson.Write(ctx, conn, wsMessage{Type: msgResults, Results: &result}); err != nil {
		return
	}
	conn.Close(websocket.StatusNormalClosure, "quiz completed")
}
