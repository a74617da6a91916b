package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/zombor/paragon/internal/receipt"
)

// HistoryLimit is how many committed transcript entries accompany a message
const HistoryLimit = 10

var (
	// ErrEmptyMessage is returned for blank input
	ErrEmptyMessage = errors.New("message is empty")
	// ErrBusy is returned while a previous message is waiting for its reply
	ErrBusy = errors.New("waiting for the previous reply")
)

// Assistant answers chat messages
type Assistant interface {
	Chat(ctx context.Context, message string, history []receipt.ChatMessage) (string, error)
}

// View displays the conversation as it happens
type View interface {
	// ShowUser displays the message the user sent
	ShowUser(message string)
	// ShowThinking displays a placeholder while the reply is pending
	ShowThinking()
	// ShowReply replaces the placeholder with the rendered reply
	ShowReply(rendered string)
	// ShowError replaces the placeholder with an error line
	ShowError(err error)
}

// Session is one conversation with the assistant
type Session struct {
	assistant Assistant

	mu         sync.Mutex
	markup     Markup
	transcript []receipt.ChatMessage
	busy       bool
}

// NewSession returns an empty session rendering replies with markup
func NewSession(assistant Assistant, markup Markup) *Session {
	if markup == nil {
		markup = PlainMarkup{}
	}
	return &Session{assistant: assistant, markup: markup}
}

// SetMarkup changes how later replies are rendered
func (s *Session) SetMarkup(markup Markup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markup = markup
}

// Send posts message with the recent history. The user message and the reply
// are only added to the transcript once the reply arrives.
func (s *Session) Send(ctx context.Context, message string, view View) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return "", ErrBusy
	}
	s.busy = true
	history := s.recent()
	markup := s.markup
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	view.ShowUser(message)
	view.ShowThinking()

	reply, err := s.assistant.Chat(ctx, message, history)
	if err != nil {
		slog.Error("Failed to get chat reply", "error", err)
		view.ShowError(err)
		return "", fmt.Errorf("sending chat message: %w", err)
	}

	rendered, err := markup.Render(reply)
	if err != nil {
		slog.Warn("Failed to render chat reply, showing plain text", "error", err)
		rendered = reply
	}
	view.ShowReply(rendered)

	s.mu.Lock()
	s.transcript = append(s.transcript,
		receipt.ChatMessage{Role: receipt.RoleUser, Content: message},
		receipt.ChatMessage{Role: receipt.RoleAssistant, Content: reply},
	)
	s.mu.Unlock()
	return reply, nil
}

func (s *Session) recent() []receipt.ChatMessage {
	start := len(s.transcript) - HistoryLimit
	if start < 0 {
		start = 0
	}
	history := make([]receipt.ChatMessage, len(s.transcript)-start)
	copy(history, s.transcript[start:])
	return history
}

// Transcript returns a copy of every committed message
func (s *Session) Transcript() []receipt.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]receipt.ChatMessage, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Reset forgets the conversation
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = nil
}
