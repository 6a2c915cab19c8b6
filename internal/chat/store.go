// Package chat keeps chat channels, messages and the presence roster in
// memory and mirrors the whole state to one JSON file after every mutation.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"alquimist/internal/blob"
	"alquimist/pkg/domain"
)

const (
	// SystemUser is recorded as the creator of seeded channels.
	SystemUser = "system"
	// DefaultPath is used when Open is given an empty path.
	DefaultPath = "data/chat.json"
	// DefaultRetention is the message age removed by CleanupOldMessages callers by default.
	DefaultRetention = 30 * 24 * time.Hour

	backupPrefix   = "chat-backup-"
	lockTimeout    = 3 * time.Second
	lockRetryDelay = 100 * time.Millisecond
)

// Snapshot is the persisted chat state.
type Snapshot struct {
	Messages []domain.ChatMessage `json:"messages"`
	Channels []domain.ChatChannel `json:"channels"`
	Users    []domain.ChatUser    `json:"users"`
}

func (s Snapshot) normalized() Snapshot {
	if s.Messages == nil {
		s.Messages = []domain.ChatMessage{}
	}
	if s.Channels == nil {
		s.Channels = []domain.ChatChannel{}
	}
	if s.Users == nil {
		s.Users = []domain.ChatUser{}
	}
	return s
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{
		Messages: make([]domain.ChatMessage, len(s.Messages)),
		Channels: make([]domain.ChatChannel, len(s.Channels)),
		Users:    append([]domain.ChatUser{}, s.Users...),
	}
	for i, m := range s.Messages {
		out.Messages[i] = cloneMessage(m)
	}
	for i, c := range s.Channels {
		out.Channels[i] = cloneChannel(c)
	}
	return out
}

func cloneMessage(m domain.ChatMessage) domain.ChatMessage {
	if m.LabRequest != nil {
		req := *m.LabRequest
		m.LabRequest = &req
	}
	return m
}

func cloneChannel(c domain.ChatChannel) domain.ChatChannel {
	c.Participants = append([]string{}, c.Participants...)
	if c.LastMessage != nil {
		last := cloneMessage(*c.LastMessage)
		c.LastMessage = &last
	}
	return c
}

// Store is safe for concurrent use. Persistence failures never fail a
// mutation; they are logged and the file is left stale.
type Store struct {
	mu     sync.RWMutex
	state  Snapshot
	path   string
	lock   *flock.Flock
	logger *zap.Logger
	now    func() time.Time
	newID  func(prefix string) string
	seed   Snapshot
	blobs  blob.Store
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides id generation for messages and channels.
func WithIDGenerator(fn func(prefix string) string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithSeed sets the state written when no snapshot file exists yet.
func WithSeed(snapshot Snapshot) Option {
	return func(s *Store) { s.seed = snapshot.clone() }
}

// WithBlobStore sets the destination of Backup.
func WithBlobStore(store blob.Store) Option {
	return func(s *Store) { s.blobs = store }
}

// Open loads the snapshot at path, or writes the seed there when the file
// does not exist. An unreadable snapshot yields empty collections.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	s := &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func(prefix string) string { return prefix + "-" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create chat dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	if err := s.acquire(ctx); err != nil {
		s.logger.Error("chat snapshot lock failed, starting empty", zap.String("path", path), zap.Error(err))
		s.state = Snapshot{}.normalized()
		return s, nil
	}
	defer s.release()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.state = s.seed.clone().normalized()
		if err := s.write(); err != nil {
			s.logger.Error("write initial chat snapshot", zap.String("path", path), zap.Error(err))
		}
	case err != nil:
		s.logger.Error("read chat snapshot, starting empty", zap.String("path", path), zap.Error(err))
		s.state = Snapshot{}.normalized()
	default:
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			s.logger.Error("decode chat snapshot, starting empty", zap.String("path", path), zap.Error(err))
			snap = Snapshot{}
		}
		s.state = snap.normalized()
	}
	return s, nil
}

// Path returns the snapshot location.
func (s *Store) Path() string { return s.path }

func (s *Store) acquire(ctx context.Context) error {
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", s.lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("acquire %s: lock held", s.lock.Path())
	}
	return nil
}

func (s *Store) release() {
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("release chat snapshot lock", zap.Error(err))
	}
}

func (s *Store) encode() ([]byte, error) {
	return json.MarshalIndent(s.state, "", "  ")
}

// write replaces the snapshot file. Callers hold the file lock.
func (s *Store) write() error {
	data, err := s.encode()
	if err != nil {
		return fmt.Errorf("encode chat snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// persist writes the current state under the file lock. Callers hold s.mu.
func (s *Store) persist(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockTimeout)
	defer cancel()
	if err := s.acquire(ctx); err != nil {
		s.logger.Error("chat snapshot not saved", zap.String("path", s.path), zap.Error(err))
		return
	}
	defer s.release()
	if err := s.write(); err != nil {
		s.logger.Error("chat snapshot not saved", zap.String("path", s.path), zap.Error(err))
		return
	}
	s.logger.Debug("chat snapshot saved", zap.String("path", s.path))
}

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Channels lists channels in creation order.
func (s *Store) Channels() []domain.ChatChannel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ChatChannel, len(s.state.Channels))
	for i, c := range s.state.Channels {
		out[i] = cloneChannel(c)
	}
	return out
}

func (s *Store) channelIndex(id string) int {
	for i, c := range s.state.Channels {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// AddChannel creates a channel on behalf of createdBy.
func (s *Store) AddChannel(ctx context.Context, in ChannelInput, createdBy string) (domain.ChatChannel, error) {
	if err := in.Validate(false); err != nil {
		return domain.ChatChannel{}, err
	}
	if createdBy == "" {
		createdBy = SystemUser
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := domain.ChatChannel{
		ID:           s.newID("channel"),
		Name:         *in.Name,
		Type:         *in.Type,
		LabID:        deref(in.LabID),
		Participants: append([]string{}, deref(in.Participants)...),
		CreatedAt:    s.now(),
		CreatedBy:    createdBy,
	}
	s.state.Channels = append(s.state.Channels, ch)
	s.persist(ctx)
	return cloneChannel(ch), nil
}

// DeleteChannel removes a channel and its messages. The system channels
// return domain.ErrProtected.
func (s *Store) DeleteChannel(ctx context.Context, id string) error {
	if domain.IsProtectedChannel(id) {
		return fmt.Errorf("channel %s: %w", id, domain.ErrProtected)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.channelIndex(id)
	if idx < 0 {
		return domain.ErrNotFound{Entity: domain.EntityChannel, ID: id}
	}
	s.state.Channels = append(s.state.Channels[:idx], s.state.Channels[idx+1:]...)
	kept := s.state.Messages[:0]
	for _, m := range s.state.Messages {
		if m.ChannelID != id {
			kept = append(kept, m)
		}
	}
	s.state.Messages = kept
	s.persist(ctx)
	return nil
}

// Messages lists messages in send order, restricted to channelID when set.
func (s *Store) Messages(channelID string) []domain.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ChatMessage, 0, len(s.state.Messages))
	for _, m := range s.state.Messages {
		if channelID == "" || m.ChannelID == channelID {
			out = append(out, cloneMessage(m))
		}
	}
	return out
}

// AddMessage appends a message to an existing channel and caches it as the
// channel's last message.
func (s *Store) AddMessage(ctx context.Context, in MessageInput) (domain.ChatMessage, error) {
	if err := in.Validate(false); err != nil {
		return domain.ChatMessage{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.channelIndex(*in.ChannelID)
	if idx < 0 {
		return domain.ChatMessage{}, domain.ErrNotFound{Entity: domain.EntityChannel, ID: *in.ChannelID}
	}
	msg := in.message()
	msg.ID = s.newID("msg")
	msg.Timestamp = s.now()
	s.state.Messages = append(s.state.Messages, msg)
	last := cloneMessage(msg)
	s.state.Channels[idx].LastMessage = &last
	s.persist(ctx)
	return cloneMessage(msg), nil
}

// Users lists the roster.
func (s *Store) Users() []domain.ChatUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ChatUser{}, s.state.Users...)
}

// UpdateUserStatus sets presence and stamps lastSeen.
func (s *Store) UpdateUserStatus(ctx context.Context, userID string, online bool) (domain.ChatUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Users {
		if s.state.Users[i].ID != userID {
			continue
		}
		s.state.Users[i].IsOnline = online
		s.state.Users[i].LastSeen = s.now()
		s.persist(ctx)
		return s.state.Users[i], nil
	}
	return domain.ChatUser{}, domain.ErrNotFound{Entity: domain.EntityChatUser, ID: userID}
}

// UpsertUser adds or replaces a roster entry by id, stamping lastSeen.
func (s *Store) UpsertUser(ctx context.Context, u domain.ChatUser) domain.ChatUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.LastSeen = s.now()
	replaced := false
	for i := range s.state.Users {
		if s.state.Users[i].ID == u.ID {
			s.state.Users[i] = u
			replaced = true
			break
		}
	}
	if !replaced {
		s.state.Users = append(s.state.Users, u)
	}
	s.persist(ctx)
	return u
}

// RemoveUser drops a roster entry. Unknown ids are ignored.
func (s *Store) RemoveUser(ctx context.Context, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Users {
		if s.state.Users[i].ID == userID {
			s.state.Users = append(s.state.Users[:i], s.state.Users[i+1:]...)
			s.persist(ctx)
			return true
		}
	}
	return false
}

// CleanupOldMessages removes messages sent at or before now-maxAge and
// returns how many were removed. Channel last-message caches are rebuilt
// from what remains.
func (s *Store) CleanupOldMessages(ctx context.Context, maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxAge)
	kept := make([]domain.ChatMessage, 0, len(s.state.Messages))
	for _, m := range s.state.Messages {
		if m.Timestamp.After(cutoff) {
			kept = append(kept, m)
		}
	}
	removed := len(s.state.Messages) - len(kept)
	s.state.Messages = kept

	last := make(map[string]domain.ChatMessage, len(s.state.Channels))
	for _, m := range kept {
		last[m.ChannelID] = m
	}
	for i := range s.state.Channels {
		if m, ok := last[s.state.Channels[i].ID]; ok {
			m = cloneMessage(m)
			s.state.Channels[i].LastMessage = &m
		} else {
			s.state.Channels[i].LastMessage = nil
		}
	}
	s.persist(ctx)
	return removed
}

// Stats summarizes the state. LastActivity is the timestamp of the newest
// message, nil when there are none.
func (s *Store) Stats() domain.ChatStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := domain.ChatStats{
		TotalMessages: len(s.state.Messages),
		TotalChannels: len(s.state.Channels),
		TotalUsers:    len(s.state.Users),
	}
	for _, u := range s.state.Users {
		if u.IsOnline {
			stats.OnlineUsers++
		}
	}
	if n := len(s.state.Messages); n > 0 {
		ts := s.state.Messages[n-1].Timestamp
		stats.LastActivity = &ts
	}
	return stats
}

// Backup writes the current state to the blob store as
// chat-backup-<unix millis>.json.
func (s *Store) Backup(ctx context.Context) (blob.Info, error) {
	if s.blobs == nil {
		return blob.Info{}, errors.New("chat backup: no blob store configured")
	}
	s.mu.RLock()
	data, err := s.encode()
	at := s.now()
	s.mu.RUnlock()
	if err != nil {
		return blob.Info{}, fmt.Errorf("chat backup: %w", err)
	}
	key := fmt.Sprintf("%s%d.json", backupPrefix, at.UnixMilli())
	info, err := s.blobs.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"source": s.path},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("chat backup: %w", err)
	}
	s.logger.Info("chat backup written", zap.String("key", info.Key), zap.Int64("bytes", info.Size))
	return info, nil
}

// Backups lists previously written backups.
func (s *Store) Backups(ctx context.Context) ([]blob.Info, error) {
	if s.blobs == nil {
		return nil, errors.New("chat backup: no blob store configured")
	}
	return s.blobs.List(ctx, backupPrefix)
}
