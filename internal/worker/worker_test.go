package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/social-backbone/internal/domain"
	"github.com/cuongbtq/social-backbone/internal/email"
	"github.com/cuongbtq/social-backbone/internal/gateway"
	"github.com/cuongbtq/social-backbone/internal/metrics"
	"github.com/cuongbtq/social-backbone/internal/queue"
	"github.com/cuongbtq/social-backbone/internal/socket"
	"github.com/cuongbtq/social-backbone/internal/worker/storage"
	"github.com/cuongbtq/social-backbone/shared/broker/memory"
	"github.com/cuongbtq/social-backbone/shared/logger"
)

const waitFor = 3 * time.Second

type recordingGateway struct {
	mu     sync.Mutex
	events []string
}

func (g *recordingGateway) OnConnect(gateway.ConnectHandler) {}

func (g *recordingGateway) Broadcast(_ context.Context, scope gateway.Scope, event string, _ any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, event+" -> "+scope.String())
	return nil
}

func (g *recordingGateway) sent() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.events...)
}

type recordingSender struct {
	mu   sync.Mutex
	sent []domain.Email
}

func (s *recordingSender) Send(_ context.Context, msg domain.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) emails() []domain.Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Email(nil), s.sent...)
}

type fixture struct {
	broker   *memory.Broker
	registry *queue.Registry
	store    *storage.MemoryStore
	gateway  *recordingGateway
	sender   *recordingSender
	worker   *Worker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	b := memory.New(memory.WithMaxDeliveries(2))
	h, err := b.Connect(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })

	f := &fixture{
		broker:   b,
		registry: queue.NewRegistry(h, queue.Config{ReconsumeInterval: 20 * time.Millisecond}, logger.Nop(), metrics.New()),
		store:    storage.NewMemoryStore(),
		gateway:  &recordingGateway{},
		sender:   &recordingSender{},
	}
	f.worker = NewWorker(&Config{
		Logger:      logger.Nop(),
		Registry:    f.registry,
		Store:       f.store,
		Sockets:     socket.NewHandlers(f.gateway, logger.Nop()),
		Sender:      f.sender,
		Concurrency: func(string, string) int { return 2 },
	})
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.worker.Start(ctx))
	t.Cleanup(func() {
		cancel()
		f.worker.Stop()
	})
}

func (f *fixture) enqueue(t *testing.T, queueName, jobName string, payload any) {
	t.Helper()
	require.NoError(t, f.registry.Enqueue(context.Background(), queueName, jobName, payload))
}

func TestWorker_RegistersEveryJob(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.worker.Register())

	assert.Len(t, f.registry.Names(), len(domain.Jobs))
	for queueName, jobs := range domain.Jobs {
		processors := f.registry.Queue(queueName).Processors()
		for _, job := range jobs {
			assert.Equal(t, 2, processors[job], "%s/%s", queueName, job)
		}
	}
}

func TestWorker_AddUserPersistsAndBroadcasts(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.enqueue(t, domain.QueueUser, domain.JobAddUser, domain.User{ID: "u1", Email: "a@b.com"})

	require.Eventually(t, func() bool {
		_, ok := f.store.User("u1")
		return ok && len(f.gateway.sent()) == 1
	}, waitFor, 10*time.Millisecond)

	user, _ := f.store.User("u1")
	assert.Equal(t, "a@b.com", user.Email)
	assert.Equal(t, []string{"user added -> global"}, f.gateway.sent())
}

func TestWorker_InvalidPayloadIsDeadLettered(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.enqueue(t, domain.QueueUser, domain.JobAddUser, domain.User{Email: "a@b.com"})

	require.Eventually(t, func() bool {
		return len(f.broker.DeadLetters("user.addUserToDB")) == 1
	}, waitFor, 10*time.Millisecond)
	assert.Empty(t, f.gateway.sent())
}

func TestWorker_InsertNotificationQueuesEmail(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.UpsertUser(context.Background(), domain.User{ID: "u2", Username: "bob"}))
	f.start(t)

	f.enqueue(t, domain.QueueNotification, domain.JobInsertNotification, domain.InsertNotification{
		Notification:     domain.Notification{ID: "n1", UserTo: "u2", UserFrom: "u1", Message: "alice liked your post", Type: domain.NotificationReaction},
		ReceiverUsername: "bob",
		ReceiverEmail:    "bob@example.com",
		Header:           "New reaction",
	})

	require.Eventually(t, func() bool { return len(f.sender.emails()) == 1 }, waitFor, 10*time.Millisecond)

	msg := f.sender.emails()[0]
	assert.Equal(t, "bob@example.com", msg.To)
	assert.Equal(t, "New reaction", msg.Subject)
	assert.Contains(t, msg.HTML, "alice liked your post")

	n, ok := f.store.Notification("n1")
	require.True(t, ok)
	assert.Equal(t, "u1", n.UserFrom)
	assert.Equal(t, []string{"insert notification -> room:user:u2"}, f.gateway.sent())
}

func TestWorker_InsertNotificationRespectsSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.UpsertUser(ctx, domain.User{ID: "u2"}))
	require.NoError(t, f.store.UpdateNotificationSettings(ctx, "u2", domain.NotificationSettings{Messages: true}))
	f.start(t)

	f.enqueue(t, domain.QueueNotification, domain.JobInsertNotification, domain.InsertNotification{
		Notification:  domain.Notification{ID: "n1", UserTo: "u2", Type: domain.NotificationReaction},
		ReceiverEmail: "bob@example.com",
	})

	require.Eventually(t, func() bool { return len(f.gateway.sent()) == 1 }, waitFor, 10*time.Millisecond)
	assert.Never(t, func() bool { return len(f.sender.emails()) > 0 }, 200*time.Millisecond, 20*time.Millisecond)
	assert.Zero(t, f.broker.Len("email.notificationEmail"))
}

func TestWorker_BlockUserDropsFollows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.AddFollower(ctx, domain.Follow{FollowerID: "u1", FolloweeID: "u2"}))
	require.NoError(t, f.store.AddFollower(ctx, domain.Follow{FollowerID: "u2", FolloweeID: "u1"}))
	f.start(t)

	f.enqueue(t, domain.QueueFollower, domain.JobBlockUser, domain.BlockUser{UserID: "u1", BlockedUserID: "u2", Blocked: true})

	require.Eventually(t, func() bool { return f.store.Blocked("u1", "u2") }, waitFor, 10*time.Millisecond)
	assert.False(t, f.store.Follows("u1", "u2"))
	assert.False(t, f.store.Follows("u2", "u1"))
	require.Eventually(t, func() bool { return len(f.gateway.sent()) == 2 }, waitFor, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"blocked user -> room:user:u1", "blocked user -> room:user:u2"}, f.gateway.sent())
}

func TestWorker_ChatMessage(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	msg := domain.ChatMessage{ID: "m1", ConversationID: "c1", SenderID: "u1", ReceiverID: "u2", Body: "hi"}
	f.enqueue(t, domain.QueueChat, domain.JobAddChatMessage, msg)

	require.Eventually(t, func() bool { return len(f.gateway.sent()) == 3 }, waitFor, 10*time.Millisecond)
	stored, ok := f.store.Message("m1")
	require.True(t, ok)
	assert.Equal(t, "hi", stored.Body)
	assert.Equal(t, []string{
		"message received -> room:chat:c1",
		"chat list -> room:user:u1",
		"chat list -> room:user:u2",
	}, f.gateway.sent())

	f.enqueue(t, domain.QueueChat, domain.JobMarkMessagesAsRead, domain.MessagesRead{ConversationID: "c1", SenderID: "u1", ReceiverID: "u2"})
	require.Eventually(t, func() bool {
		m, _ := f.store.Message("m1")
		return m.IsRead
	}, waitFor, 10*time.Millisecond)
}

func TestWorker_UpdateOfUnknownUserRetriesThenDeadLetters(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.enqueue(t, domain.QueueUser, domain.JobUpdateBasicInfo, domain.UpdateBasicInfo{UserID: "ghost", Info: domain.BasicInfo{Quote: "hello"}})

	require.Eventually(t, func() bool {
		return len(f.broker.DeadLetters("user.updateBasicInfoInDB")) == 1
	}, waitFor, 10*time.Millisecond)
	assert.Empty(t, f.gateway.sent())
}

func TestWorker_EmailJobsUseSender(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	producer := NewProducer(f.registry, email.NewRenderer())
	require.NoError(t, producer.ForgotPasswordEmail(context.Background(), "bob@example.com", "bob", "https://example.com/reset/abc"))

	require.Eventually(t, func() bool { return len(f.sender.emails()) == 1 }, waitFor, 10*time.Millisecond)
	msg := f.sender.emails()[0]
	assert.Equal(t, "bob@example.com", msg.To)
	assert.Contains(t, msg.HTML, "https://example.com/reset/abc")
}
