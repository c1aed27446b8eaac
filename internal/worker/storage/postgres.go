package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/social-backbone/internal/domain"
	"github.com/cuongbtq/social-backbone/shared/postgresql"
)

// Storage is the PostgreSQL Store.
type Storage struct {
	client *postgresql.Client
	db     *sqlx.DB
	logger *slog.Logger
}

var _ Store = (*Storage)(nil)

// NewStorage creates a new Storage instance
func NewStorage(client *postgresql.Client, logger *slog.Logger) *Storage {
	return &Storage{
		client: client,
		db:     client.GetDB(),
		logger: logger,
	}
}

// EnsureSchema creates the tables the workers write to.
func (s *Storage) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	s.logger.Info("Database schema ensured", slog.Int("statements", len(schema)))
	return nil
}

// requireRow maps a write that touched nothing to domain.ErrNotFound.
func requireRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, domain.ErrNotFound)
	}
	return nil
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func (s *Storage) UpsertUser(ctx context.Context, u domain.User) error {
	query := `
		INSERT INTO users (id, username, email, avatar_color, profile_picture, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username,
		    email = EXCLUDED.email,
		    avatar_color = EXCLUDED.avatar_color,
		    profile_picture = EXCLUDED.profile_picture,
		    updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query, u.ID, u.Username, u.Email, u.AvatarColor, u.ProfilePicture, stamp(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (s *Storage) UpdateSocialLinks(ctx context.Context, userID string, links domain.SocialLinks) error {
	query := `
		UPDATE users
		SET facebook = $2, instagram = $3, twitter = $4, youtube = $5, updated_at = NOW()
		WHERE id = $1
	`

	res, err := s.db.ExecContext(ctx, query, userID, links.Facebook, links.Instagram, links.Twitter, links.Youtube)
	if err != nil {
		return fmt.Errorf("failed to update social links: %w", err)
	}
	return requireRow(res, "user", userID)
}

func (s *Storage) UpdateBasicInfo(ctx context.Context, userID string, info domain.BasicInfo) error {
	query := `
		UPDATE users
		SET quote = $2, work = $3, school = $4, location = $5, updated_at = NOW()
		WHERE id = $1
	`

	res, err := s.db.ExecContext(ctx, query, userID, info.Quote, info.Work, info.School, info.Location)
	if err != nil {
		return fmt.Errorf("failed to update basic info: %w", err)
	}
	return requireRow(res, "user", userID)
}

func (s *Storage) UpdateNotificationSettings(ctx context.Context, userID string, settings domain.NotificationSettings) error {
	query := `
		UPDATE users
		SET notify_messages = $2, notify_reactions = $3, notify_comments = $4, notify_follows = $5, updated_at = NOW()
		WHERE id = $1
	`

	res, err := s.db.ExecContext(ctx, query, userID, settings.Messages, settings.Reactions, settings.Comments, settings.Follows)
	if err != nil {
		return fmt.Errorf("failed to update notification settings: %w", err)
	}
	return requireRow(res, "user", userID)
}

func (s *Storage) GetNotificationSettings(ctx context.Context, userID string) (domain.NotificationSettings, error) {
	query := `
		SELECT notify_messages AS messages,
		       notify_reactions AS reactions,
		       notify_comments AS comments,
		       notify_follows AS follows
		FROM users
		WHERE id = $1
	`

	var settings domain.NotificationSettings
	if err := s.db.GetContext(ctx, &settings, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return settings, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
		}
		return settings, fmt.Errorf("failed to get notification settings: %w", err)
	}
	return settings, nil
}

func (s *Storage) UpdateProfilePicture(ctx context.Context, userID, url string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET profile_picture = $2, updated_at = NOW() WHERE id = $1`, userID, url)
	if err != nil {
		return fmt.Errorf("failed to update profile picture: %w", err)
	}
	return requireRow(res, "user", userID)
}

func (s *Storage) UpsertPost(ctx context.Context, p domain.Post) error {
	query := `
		INSERT INTO posts (id, user_id, username, body, bg_color, privacy, feelings, image_id, image_version, created_at)
		VALUES (:id, :user_id, :username, :body, :bg_color, :privacy, :feelings, :image_id, :image_version, :created_at)
		ON CONFLICT (id) DO UPDATE
		SET body = EXCLUDED.body,
		    bg_color = EXCLUDED.bg_color,
		    privacy = EXCLUDED.privacy,
		    feelings = EXCLUDED.feelings,
		    image_id = EXCLUDED.image_id,
		    image_version = EXCLUDED.image_version,
		    updated_at = NOW()
	`

	p.CreatedAt = stamp(p.CreatedAt)
	if _, err := s.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("failed to upsert post: %w", err)
	}
	return nil
}

// DeletePost is a no-op when the post is already gone.
func (s *Storage) DeletePost(ctx context.Context, postID, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1 AND user_id = $2`, postID, userID); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

func (s *Storage) AddFollower(ctx context.Context, f domain.Follow) error {
	query := `
		INSERT INTO followers (follower_id, followee_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`

	if _, err := s.db.ExecContext(ctx, query, f.FollowerID, f.FolloweeID); err != nil {
		return fmt.Errorf("failed to add follower: %w", err)
	}
	return nil
}

func (s *Storage) RemoveFollower(ctx context.Context, f domain.Follow) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM followers WHERE follower_id = $1 AND followee_id = $2`, f.FollowerID, f.FolloweeID); err != nil {
		return fmt.Errorf("failed to remove follower: %w", err)
	}
	return nil
}

// SetBlocked records or lifts a block. Blocking also removes the follow
// relation in both directions.
func (s *Storage) SetBlocked(ctx context.Context, b domain.BlockUser) error {
	if !b.Blocked {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM blocks WHERE user_id = $1 AND blocked_user_id = $2`, b.UserID, b.BlockedUserID); err != nil {
			return fmt.Errorf("failed to unblock user: %w", err)
		}
		return nil
	}

	return s.client.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO blocks (user_id, blocked_user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, b.UserID, b.BlockedUserID); err != nil {
			return fmt.Errorf("failed to block user: %w", err)
		}
		query := `
			DELETE FROM followers
			WHERE (follower_id = $1 AND followee_id = $2)
			   OR (follower_id = $2 AND followee_id = $1)
		`
		if _, err := tx.ExecContext(ctx, query, b.UserID, b.BlockedUserID); err != nil {
			return fmt.Errorf("failed to remove follow relations: %w", err)
		}
		return nil
	})
}

func (s *Storage) AddMessage(ctx context.Context, m domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, conversation_id, sender_id, receiver_id, sender_username, receiver_username, body, gif_url, is_read, created_at)
		VALUES (:id, :conversation_id, :sender_id, :receiver_id, :sender_username, :receiver_username, :body, :gif_url, :is_read, :created_at)
		ON CONFLICT (id) DO NOTHING
	`

	m.CreatedAt = stamp(m.CreatedAt)
	if _, err := s.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("failed to add chat message: %w", err)
	}
	return nil
}

func (s *Storage) MarkMessagesRead(ctx context.Context, r domain.MessagesRead) error {
	query := `
		UPDATE chat_messages
		SET is_read = TRUE
		WHERE conversation_id = $1 AND sender_id = $2 AND receiver_id = $3 AND is_read = FALSE
	`

	res, err := s.db.ExecContext(ctx, query, r.ConversationID, r.SenderID, r.ReceiverID)
	if err != nil {
		return fmt.Errorf("failed to mark messages as read: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil {
		s.logger.Debug("Messages marked as read",
			slog.String("conversation_id", r.ConversationID),
			slog.Int64("count", n),
		)
	}
	return nil
}

func (s *Storage) UpsertNotification(ctx context.Context, n domain.Notification) error {
	query := `
		INSERT INTO notifications (id, user_to, user_from, message, notification_type, entity_id, read, created_at)
		VALUES (:id, :user_to, :user_from, :message, :notification_type, :entity_id, :read, :created_at)
		ON CONFLICT (id) DO UPDATE
		SET message = EXCLUDED.message,
		    read = EXCLUDED.read
	`

	n.CreatedAt = stamp(n.CreatedAt)
	if _, err := s.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("failed to upsert notification: %w", err)
	}
	return nil
}

func (s *Storage) MarkNotificationRead(ctx context.Context, notificationID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, notificationID)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return requireRow(res, "notification", notificationID)
}

func (s *Storage) DeleteNotification(ctx context.Context, notificationID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, notificationID); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

func (s *Storage) UpsertImage(ctx context.Context, img domain.Image) error {
	query := `
		INSERT INTO images (id, user_id, version, url, bg_image, created_at)
		VALUES (:id, :user_id, :version, :url, :bg_image, :created_at)
		ON CONFLICT (user_id, id) DO UPDATE
		SET version = EXCLUDED.version,
		    url = EXCLUDED.url,
		    bg_image = EXCLUDED.bg_image
	`

	img.CreatedAt = stamp(img.CreatedAt)
	if _, err := s.db.NamedExecContext(ctx, query, img); err != nil {
		return fmt.Errorf("failed to upsert image: %w", err)
	}
	return nil
}

func (s *Storage) DeleteImage(ctx context.Context, userID, imageID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE user_id = $1 AND id = $2`, userID, imageID); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
