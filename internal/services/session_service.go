package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/markdave123-py/ragchat/internal/config"
	"github.com/markdave123-py/ragchat/internal/core"
	"github.com/markdave123-py/ragchat/internal/core/chat"
	"github.com/markdave123-py/ragchat/internal/models"
)

type sessionEntry struct {
	mu   sync.Mutex
	sess *chat.Session
}

// SessionService keeps chat sessions in memory and lets one request at a time
// answer in each of them.
type SessionService struct {
	orch         *chat.Orchestrator
	prompts      *config.Prompts
	maxHistory   int
	resolveModel func(string) string

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// NewSessionService builds the service. resolveModel maps a requested model name
// (possibly empty or a shorthand) to a model id; nil passes names through.
func NewSessionService(orch *chat.Orchestrator, prompts *config.Prompts, maxHistory int, resolveModel func(string) string) *SessionService {
	if resolveModel == nil {
		resolveModel = func(s string) string { return s }
	}
	return &SessionService{
		orch:         orch,
		prompts:      prompts,
		maxHistory:   maxHistory,
		resolveModel: resolveModel,
		sessions:     make(map[string]*sessionEntry),
	}
}

// Create starts a session seeded with the greeting.
func (s *SessionService) Create() *chat.Session {
	var seed []models.ChatTurn
	if s.prompts.Greeting != "" {
		seed = append(seed, models.ChatTurn{Role: models.RoleAssistant, Content: s.prompts.Greeting})
	}
	sess := chat.NewSession(uuid.NewString(), s.prompts.SystemPrompt, s.maxHistory, seed...)

	s.mu.Lock()
	s.sessions[sess.ID] = &sessionEntry{sess: sess}
	s.mu.Unlock()

	log.Infof("SessionService: created session %s", sess.ID)
	return sess
}

func (s *SessionService) entry(id string) (*sessionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	return e, nil
}

// History returns the user-visible turns of a session.
func (s *SessionService) History(id string) ([]models.ChatTurn, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	if !e.mu.TryLock() {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionBusy, id)
	}
	defer e.mu.Unlock()
	return e.sess.Visible(), nil
}

// Respond answers query in session id. The session stays locked until the
// returned stream ends or is closed; a second caller meanwhile gets ErrSessionBusy.
func (s *SessionService) Respond(ctx context.Context, id, query, model string) (core.TokenStream, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	if !e.mu.TryLock() {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionBusy, id)
	}

	stream, err := s.orch.Respond(ctx, e.sess, query, chat.WithModel(s.resolveModel(model)))
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	return &lockedStream{Stream: stream, unlock: e.mu.Unlock}, nil
}

// Delete forgets a session. A session that is answering cannot be deleted.
func (s *SessionService) Delete(id string) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	if !e.mu.TryLock() {
		return fmt.Errorf("%w: %s", core.ErrSessionBusy, id)
	}
	defer e.mu.Unlock()

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// lockedStream releases its session when the answer is finished.
type lockedStream struct {
	*chat.Stream
	once   sync.Once
	unlock func()
}

func (l *lockedStream) Recv() (string, error) {
	frag, err := l.Stream.Recv()
	if err != nil {
		l.release()
	}
	return frag, err
}

func (l *lockedStream) Close() error {
	err := l.Stream.Close()
	l.release()
	return err
}

func (l *lockedStream) release() {
	l.once.Do(l.unlock)
}
