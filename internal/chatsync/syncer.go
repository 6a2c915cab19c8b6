package chatsync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"alquimist/internal/chat"
	"alquimist/pkg/domain"
)

// DefaultInterval is the polling period.
const DefaultInterval = 2 * time.Second

// TempIDPrefix marks messages not yet confirmed by the server.
const TempIDPrefix = "temp-"

// ErrInactive is returned by Send when no user is signed in or no channel
// is selected.
var ErrInactive = errors.New("chatsync: no signed-in user or selected channel")

// API is the subset of Client the Syncer needs.
type API interface {
	Channels(ctx context.Context) ([]domain.ChatChannel, error)
	Users(ctx context.Context) ([]domain.ChatUser, error)
	Messages(ctx context.Context, channelID string) ([]domain.ChatMessage, error)
	Send(ctx context.Context, in chat.MessageInput) (domain.ChatMessage, error)
}

// State is the locally cached view of the chat.
type State struct {
	ChannelID string
	Channels  []domain.ChatChannel
	Messages  []domain.ChatMessage
	Users     []domain.ChatUser
}

func (s State) clone() State {
	return State{
		ChannelID: s.ChannelID,
		Channels:  append([]domain.ChatChannel(nil), s.Channels...),
		Messages:  append([]domain.ChatMessage(nil), s.Messages...),
		Users:     append([]domain.ChatUser(nil), s.Users...),
	}
}

// Syncer keeps State in step with the server by refetching everything on
// a fixed period while a user is signed in and a channel is selected. Each
// fetch replaces the cache wholesale.
type Syncer struct {
	api      API
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
	onChange func(State)

	mu    sync.Mutex
	user  *domain.UserProfile
	state State
	// generation changes whenever the selected channel does, so a fetch
	// started for an older channel is discarded.
	generation uint64
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithInterval overrides the polling period.
func WithInterval(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the logger used for failed polls.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the timestamp of optimistic messages.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		if now != nil {
			s.now = now
		}
	}
}

// OnChange registers fn to receive a copy of the state after every change.
// fn runs on the goroutine that made the change.
func OnChange(fn func(State)) Option {
	return func(s *Syncer) { s.onChange = fn }
}

// NewSyncer builds an idle Syncer.
func NewSyncer(api API, opts ...Option) *Syncer {
	s := &Syncer{
		api:      api,
		interval: DefaultInterval,
		logger:   zap.NewNop(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignIn sets the user whose name is put on sent messages.
func (s *Syncer) SignIn(user domain.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &user
}

// SignOut stops polling and clears the cache.
func (s *Syncer) SignOut() {
	s.mu.Lock()
	s.user = nil
	s.generation++
	s.state = State{}
	snap := s.state.clone()
	s.mu.Unlock()
	s.notify(snap)
}

// SelectChannel switches the mirrored channel. Messages of the previous
// channel are dropped until the next fetch.
func (s *Syncer) SelectChannel(channelID string) {
	s.mu.Lock()
	if s.state.ChannelID == channelID {
		s.mu.Unlock()
		return
	}
	s.generation++
	s.state.ChannelID = channelID
	s.state.Messages = nil
	snap := s.state.clone()
	s.mu.Unlock()
	s.notify(snap)
}

// State returns a copy of the cache.
func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Syncer) active() (string, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ChannelID, s.generation, s.user != nil && s.state.ChannelID != ""
}

func (s *Syncer) notify(st State) {
	if s.onChange != nil {
		s.onChange(st)
	}
}

// Refresh fetches messages, users and channels concurrently and replaces the
// cache. It is a no-op while inactive.
func (s *Syncer) Refresh(ctx context.Context) error {
	channelID, generation, ok := s.active()
	if !ok {
		return nil
	}
	var (
		messages []domain.ChatMessage
		users    []domain.ChatUser
		channels []domain.ChatChannel
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		messages, err = s.api.Messages(gctx, channelID)
		return err
	})
	g.Go(func() (err error) {
		users, err = s.api.Users(gctx)
		return err
	})
	g.Go(func() (err error) {
		channels, err = s.api.Channels(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		return nil
	}
	s.state = State{ChannelID: channelID, Channels: channels, Messages: messages, Users: users}
	snap := s.state.clone()
	s.mu.Unlock()
	s.notify(snap)
	return nil
}

// Run polls until ctx is done, refreshing once immediately. Failed polls are
// logged and retried on the next tick.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("chat sync failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Send shows content immediately under a temporary id, then swaps in the
// server's record. On failure the temporary message is removed and the
// error returned.
func (s *Syncer) Send(ctx context.Context, content string) (domain.ChatMessage, error) {
	s.mu.Lock()
	if s.user == nil || s.state.ChannelID == "" {
		s.mu.Unlock()
		return domain.ChatMessage{}, ErrInactive
	}
	user := *s.user
	temp := domain.ChatMessage{
		ID:        TempIDPrefix + uuid.NewString(),
		ChannelID: s.state.ChannelID,
		UserID:    user.ID,
		UserName:  user.Name,
		UserRole:  user.Role,
		Content:   content,
		Timestamp: s.now(),
		Type:      domain.MessageText,
	}
	s.state.Messages = append(s.state.Messages, temp)
	snap := s.state.clone()
	s.mu.Unlock()
	s.notify(snap)

	msgType := temp.Type
	saved, err := s.api.Send(ctx, chat.MessageInput{
		ChannelID: &temp.ChannelID,
		UserID:    &temp.UserID,
		UserName:  &temp.UserName,
		UserRole:  &temp.UserRole,
		Content:   &temp.Content,
		Type:      &msgType,
	})

	s.mu.Lock()
	idx := -1
	confirmed := false
	for i, m := range s.state.Messages {
		switch m.ID {
		case temp.ID:
			idx = i
		case saved.ID:
			confirmed = err == nil
		}
	}
	switch {
	case idx < 0:
	case err != nil || confirmed:
		s.state.Messages = append(s.state.Messages[:idx], s.state.Messages[idx+1:]...)
	default:
		s.state.Messages[idx] = saved
	}
	snap = s.state.clone()
	s.mu.Unlock()
	s.notify(snap)

	if err != nil {
		return domain.ChatMessage{}, err
	}
	return saved, nil
}

// Pending reports whether any optimistic message awaits confirmation.
func (st State) Pending() bool {
	for _, m := range st.Messages {
		if strings.HasPrefix(m.ID, TempIDPrefix) {
			return true
		}
	}
	return false
}
