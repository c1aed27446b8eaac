package worker

import (
	"context"

	"github.com/cuongbtq/social-backbone/internal/domain"
	"github.com/cuongbtq/social-backbone/internal/email"
)

// Enqueuer writes one job onto (queueName, jobName).
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, jobName string, payload any) error
}

// Producer offers typed enqueue helpers over an Enqueuer. Every helper
// returns the *queue.EnqueueError of a rejected job unchanged.
type Producer struct {
	enqueuer Enqueuer
	renderer *email.Renderer
}

func NewProducer(enqueuer Enqueuer, renderer *email.Renderer) *Producer {
	if renderer == nil {
		renderer = email.NewRenderer()
	}
	return &Producer{enqueuer: enqueuer, renderer: renderer}
}

func (p *Producer) AddUser(ctx context.Context, user domain.User) error {
	return p.enqueuer.Enqueue(ctx, domain.QueueUser, domain.JobAddUser, user)
}

func (p *Producer) AddPost(ctx context.Context, post domain.Post) error {
	return p.enqueuer.Enqueue(ctx, domain.QueuePost, domain.JobAddPost, post)
}

func (p *Producer) AddChatMessage(ctx context.Context, msg domain.ChatMessage) error {
	return p.enqueuer.Enqueue(ctx, domain.QueueChat, domain.JobAddChatMessage, msg)
}

func (p *Producer) InsertNotification(ctx context.Context, req domain.InsertNotification) error {
	return p.enqueuer.Enqueue(ctx, domain.QueueNotification, domain.JobInsertNotification, req)
}

func (p *Producer) NotificationEmail(ctx context.Context, msg domain.Email) error {
	return p.enqueuer.Enqueue(ctx, domain.QueueEmail, domain.JobNotificationEmail, msg)
}

// ForgotPasswordEmail renders the reset link mail and queues it.
func (p *Producer) ForgotPasswordEmail(ctx context.Context, to, username, resetLink string) error {
	html, err := p.renderer.ForgotPassword(username, resetLink)
	if err != nil {
		return err
	}
	return p.enqueuer.Enqueue(ctx, domain.QueueEmail, domain.JobForgotPasswordEmail, domain.Email{
		To:      to,
		Subject: "Reset your password",
		HTML:    html,
	})
}

// ResetPasswordEmail renders the password changed confirmation and queues it.
func (p *Producer) ResetPasswordEmail(ctx context.Context, params email.ResetPasswordParams) error {
	html, err := p.renderer.ResetPassword(params)
	if err != nil {
		return err
	}
	return p.enqueuer.Enqueue(ctx, domain.QueueEmail, domain.JobResetPasswordEmail, domain.Email{
		To:      params.Email,
		Subject: "Password reset confirmation",
		HTML:    html,
	})
}
