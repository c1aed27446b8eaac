package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuongbtq/social-backbone/internal/domain"
)

type userRecord struct {
	user     domain.User
	links    domain.SocialLinks
	info     domain.BasicInfo
	settings domain.NotificationSettings
}

type pair struct{ a, b string }

// MemoryStore is a Store kept in process memory, used when no database is
// configured.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]*userRecord
	posts         map[string]domain.Post
	follows       map[pair]struct{}
	blocks        map[pair]struct{}
	messages      map[string]domain.ChatMessage
	notifications map[string]domain.Notification
	images        map[pair]domain.Image
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*userRecord),
		posts:         make(map[string]domain.Post),
		follows:       make(map[pair]struct{}),
		blocks:        make(map[pair]struct{}),
		messages:      make(map[string]domain.ChatMessage),
		notifications: make(map[string]domain.Notification),
		images:        make(map[pair]domain.Image),
	}
}

func (m *MemoryStore) user(id string) (*userRecord, error) {
	rec, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return rec, nil
}

func (m *MemoryStore) UpsertUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.users[u.ID]; ok {
		u.CreatedAt = rec.user.CreatedAt
		rec.user = u
		return nil
	}
	u.CreatedAt = stamp(u.CreatedAt)
	m.users[u.ID] = &userRecord{user: u, settings: domain.DefaultNotificationSettings()}
	return nil
}

// User returns a copy of the stored user.
func (m *MemoryStore) User(id string) (domain.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.users[id]
	if !ok {
		return domain.User{}, false
	}
	return rec.user, true
}

func (m *MemoryStore) UpdateSocialLinks(_ context.Context, userID string, links domain.SocialLinks) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.user(userID)
	if err != nil {
		return err
	}
	rec.links = links
	return nil
}

func (m *MemoryStore) UpdateBasicInfo(_ context.Context, userID string, info domain.BasicInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.user(userID)
	if err != nil {
		return err
	}
	rec.info = info
	return nil
}

func (m *MemoryStore) UpdateNotificationSettings(_ context.Context, userID string, settings domain.NotificationSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.user(userID)
	if err != nil {
		return err
	}
	rec.settings = settings
	return nil
}

func (m *MemoryStore) GetNotificationSettings(_ context.Context, userID string) (domain.NotificationSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, err := m.user(userID)
	if err != nil {
		return domain.NotificationSettings{}, err
	}
	return rec.settings, nil
}

func (m *MemoryStore) UpdateProfilePicture(_ context.Context, userID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.user(userID)
	if err != nil {
		return err
	}
	rec.user.ProfilePicture = url
	return nil
}

func (m *MemoryStore) UpsertPost(_ context.Context, p domain.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.posts[p.ID]; ok {
		p.CreatedAt = prev.CreatedAt
	}
	p.CreatedAt = stamp(p.CreatedAt)
	m.posts[p.ID] = p
	return nil
}

func (m *MemoryStore) Post(id string) (domain.Post, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.posts[id]
	return p, ok
}

func (m *MemoryStore) DeletePost(_ context.Context, postID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[postID]; ok && p.UserID == userID {
		delete(m.posts, postID)
	}
	return nil
}

func (m *MemoryStore) AddFollower(_ context.Context, f domain.Follow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.follows[pair{f.FollowerID, f.FolloweeID}] = struct{}{}
	return nil
}

func (m *MemoryStore) RemoveFollower(_ context.Context, f domain.Follow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.follows, pair{f.FollowerID, f.FolloweeID})
	return nil
}

// Follows reports whether followerID follows followeeID.
func (m *MemoryStore) Follows(followerID, followeeID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.follows[pair{followerID, followeeID}]
	return ok
}

func (m *MemoryStore) SetBlocked(_ context.Context, b domain.BlockUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pair{b.UserID, b.BlockedUserID}
	if !b.Blocked {
		delete(m.blocks, key)
		return nil
	}
	m.blocks[key] = struct{}{}
	delete(m.follows, pair{b.UserID, b.BlockedUserID})
	delete(m.follows, pair{b.BlockedUserID, b.UserID})
	return nil
}

func (m *MemoryStore) Blocked(userID, blockedUserID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocks[pair{userID, blockedUserID}]
	return ok
}

func (m *MemoryStore) AddMessage(_ context.Context, msg domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[msg.ID]; ok {
		return nil
	}
	msg.CreatedAt = stamp(msg.CreatedAt)
	m.messages[msg.ID] = msg
	return nil
}

func (m *MemoryStore) Message(id string) (domain.ChatMessage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[id]
	return msg, ok
}

func (m *MemoryStore) MarkMessagesRead(_ context.Context, r domain.MessagesRead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, msg := range m.messages {
		if msg.ConversationID == r.ConversationID && msg.SenderID == r.SenderID && msg.ReceiverID == r.ReceiverID {
			msg.IsRead = true
			m.messages[id] = msg
		}
	}
	return nil
}

func (m *MemoryStore) UpsertNotification(_ context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.notifications[n.ID]; ok {
		n.CreatedAt = prev.CreatedAt
	}
	n.CreatedAt = stamp(n.CreatedAt)
	m.notifications[n.ID] = n
	return nil
}

func (m *MemoryStore) Notification(id string) (domain.Notification, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	return n, ok
}

func (m *MemoryStore) MarkNotificationRead(_ context.Context, notificationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[notificationID]
	if !ok {
		return fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	n.Read = true
	m.notifications[notificationID] = n
	return nil
}

func (m *MemoryStore) DeleteNotification(_ context.Context, notificationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.notifications, notificationID)
	return nil
}

func (m *MemoryStore) UpsertImage(_ context.Context, img domain.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	img.CreatedAt = stamp(img.CreatedAt)
	m.images[pair{img.UserID, img.ID}] = img
	return nil
}

func (m *MemoryStore) Image(userID, imageID string) (domain.Image, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	img, ok := m.images[pair{userID, imageID}]
	return img, ok
}

func (m *MemoryStore) DeleteImage(_ context.Context, userID, imageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.images, pair{userID, imageID})
	return nil
}
