package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend-pathgreen/internal/fleet"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	BlockedReply = "⚠️ I can only answer questions about fleet emissions, vehicle status, and BS-VI regulations. Please rephrase your question."
	ErrorReply   = "Sorry, I couldn't answer that right now. Please try again."
	maxChunks    = 2
)

type Answer struct {
	MessageID string    `json:"message_id"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Citations []string  `json:"citations"`
	Timestamp time.Time `json:"timestamp"`
	Error     bool      `json:"error,omitempty"`
	Blocked   bool      `json:"blocked,omitempty"`
}

// Entry is one answered query as handed to the history recorder.
type Entry struct {
	MessageID    string
	Query        string
	Response     string
	Citations    []string
	FleetSummary []string
	Timestamp    time.Time
}

type Recorder interface {
	SubmitChat(Entry)
}

type Service struct {
	retriever *Retriever
	responder Responder
	recorder  Recorder
	now       func() time.Time
	newID     func() string
}

func NewService(retriever *Retriever, responder Responder, recorder Recorder) *Service {
	if responder == nil {
		responder = OfflineResponder{}
	}
	return &Service{
		retriever: retriever,
		responder: responder,
		recorder:  recorder,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Ask answers query against snap. The returned Answer is always usable as a
// reply: blocked and failed queries carry a canned response and a flag, and
// the error says why.
func (s *Service) Ask(ctx context.Context, query string, snap fleet.Snapshot) (Answer, error) {
	ans := Answer{
		MessageID: s.newID(),
		Query:     query,
		Citations: []string{},
	}

	clean, err := Sanitize(query)
	if err != nil {
		ans.Timestamp = s.now()
		if errors.Is(err, ErrBlocked) {
			log.Warn().Str("query", truncate(query, 80)).Msg("prompt injection blocked")
			ans.Response = BlockedReply
			ans.Blocked = true
			return ans, err
		}
		ans.Response = "Please enter a question."
		ans.Error = true
		return ans, err
	}
	ans.Query = clean

	var chunks []Chunk
	if s.retriever != nil {
		chunks = s.retriever.Search(clean, maxChunks)
	}
	prompt := Prompt{
		Query:        clean,
		FleetSummary: FleetSummary(snap),
		Context:      Context(chunks),
		Snapshot:     snap,
	}

	reply, err := s.responder.Respond(ctx, prompt)
	ans.Timestamp = s.now()
	if err != nil {
		ans.Response = ErrorReply
		ans.Error = true
		return ans, fmt.Errorf("chat responder: %w", err)
	}

	ans.Response = reply
	ans.Citations = append(ans.Citations, Citations(chunks)...)

	if s.recorder != nil {
		s.recorder.SubmitChat(Entry{
			MessageID:    ans.MessageID,
			Query:        ans.Query,
			Response:     ans.Response,
			Citations:    ans.Citations,
			FleetSummary: prompt.FleetSummary,
			Timestamp:    ans.Timestamp,
		})
	}
	return ans, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
