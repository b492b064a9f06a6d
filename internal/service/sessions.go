package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"kairos/internal/chat"
	"kairos/internal/history"
	"kairos/internal/store"
)

// CreateSession starts a stored conversation bound to the active model.
func (s *Service) CreateSession(ctx context.Context, systemPrompt string) (store.Session, error) {
	sess, err := s.db.CreateSession(ctx, s.manager.ActiveModel(), systemPrompt)
	if err != nil {
		return sess, err
	}
	s.log.Debug().Int64("session", sess.ID).Msg("session created")
	return sess, nil
}

// Sessions lists stored conversations, most recently updated first.
func (s *Service) Sessions(ctx context.Context) ([]store.Session, error) {
	return s.db.ListSessions(ctx)
}

// Session returns a stored conversation and its messages.
func (s *Service) Session(ctx context.Context, id int64) (store.Session, []store.Message, error) {
	sess, err := s.db.GetSession(ctx, id)
	if err != nil {
		return sess, nil, err
	}
	msgs, err := s.db.Messages(ctx, id)
	return sess, msgs, err
}

// DeleteSession removes a conversation and its messages.
func (s *Service) DeleteSession(ctx context.Context, id int64) error {
	return s.db.DeleteSession(ctx, id)
}

// ClearSession drops the messages of a conversation.
func (s *Service) ClearSession(ctx context.Context, id int64) error {
	return s.db.ClearMessages(ctx, id)
}

// ChatInSession replies to text with the stored conversation as context and
// records both turns. A reply cut short by cancellation is recorded as far
// as it got; other generation errors record nothing.
func (s *Service) ChatInSession(ctx context.Context, id int64, text string, onToken func(string) bool) (chat.Stats, error) {
	sess, past, err := s.Session(ctx, id)
	if err != nil {
		return chat.Stats{}, err
	}
	var msgs []chat.Message
	if sess.SystemPrompt != "" {
		msgs = append(msgs, chat.Message{Role: chat.RoleSystem, Content: sess.SystemPrompt})
	}
	for _, m := range past {
		msgs = append(msgs, chat.Message{Role: chat.ParseRole(m.Role), Content: m.Content, Timestamp: m.CreatedAt})
	}
	msgs = append(msgs, chat.Message{Role: chat.RoleUser, Content: text})

	var reply strings.Builder
	st, genErr := s.Stream(ctx, msgs, func(tok string) bool {
		reply.WriteString(tok)
		return onToken == nil || onToken(tok)
	})
	if genErr != nil && !errors.Is(genErr, context.Canceled) {
		return st, genErr
	}

	// record even when the caller's context is gone
	rctx := context.WithoutCancel(ctx)
	asked := time.Now().UTC()
	if _, err := s.db.AddMessage(rctx, store.Message{SessionID: id, Role: string(chat.RoleUser), Content: text, CreatedAt: asked}); err != nil {
		return st, fmt.Errorf("record message: %w", err)
	}
	if reply.Len() > 0 {
		if _, err := s.db.AddMessage(rctx, store.Message{SessionID: id, Role: string(chat.RoleAssistant), Content: reply.String()}); err != nil {
			return st, fmt.Errorf("record reply: %w", err)
		}
	}
	if sess.Title == store.DefaultSessionTitle && len(past) == 0 {
		sess.Title = history.Title(text)
		if sess.Model == "" {
			sess.Model = s.manager.ActiveModel()
		}
		if err := s.db.UpdateSession(rctx, sess); err != nil {
			return st, fmt.Errorf("title session: %w", err)
		}
	}
	return st, genErr
}

// ExportSession renders a stored conversation to w in format f.
func (s *Service) ExportSession(ctx context.Context, id int64, f history.Format, w io.Writer) error {
	sess, msgs, err := s.Session(ctx, id)
	if err != nil {
		return err
	}
	return history.Export(w, sess, msgs, f, time.Now())
}
