package email

import (
	"embed"
	"fmt"
	"sync"

	"github.com/aymerick/raymond"
)

//go:embed templates/*.hbs
var templateFS embed.FS

// DefaultImageURL is shown in notification emails without their own image.
const DefaultImageURL = "https://w7.pngwing.com/pngs/120/102/png-transparent-padlock-logo-computer-icons-padlock-technic-logo-password-lock.png"

// Template names.
const (
	TemplateNotification   = "notification"
	TemplateForgotPassword = "forgot_password"
	TemplateResetPassword  = "reset_password"
)

type NotificationParams struct {
	Username string
	Header   string
	Message  string
	ImageURL string
}

type ResetPasswordParams struct {
	Username  string
	Email     string
	IPAddress string
	Date      string
}

// Renderer renders the embedded handlebars templates, parsing each once.
type Renderer struct {
	mu    sync.Mutex
	cache map[string]*raymond.Template
}

func NewRenderer() *Renderer {
	return &Renderer{cache: make(map[string]*raymond.Template)}
}

func (r *Renderer) template(name string) (*raymond.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tmpl, ok := r.cache[name]; ok {
		return tmpl, nil
	}

	content, err := templateFS.ReadFile("templates/" + name + ".hbs")
	if err != nil {
		return nil, fmt.Errorf("template not found: %s", name)
	}
	tmpl, err := raymond.Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	r.cache[name] = tmpl
	return tmpl, nil
}

// Render executes the named template with ctx.
func (r *Renderer) Render(name string, ctx map[string]any) (string, error) {
	tmpl, err := r.template(name)
	if err != nil {
		return "", err
	}
	out, err := tmpl.Exec(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return out, nil
}

func (r *Renderer) Notification(p NotificationParams) (string, error) {
	image := p.ImageURL
	if image == "" {
		image = DefaultImageURL
	}
	return r.Render(TemplateNotification, map[string]any{
		"username":  p.Username,
		"header":    p.Header,
		"message":   p.Message,
		"image_url": image,
	})
}

func (r *Renderer) ForgotPassword(username, resetLink string) (string, error) {
	return r.Render(TemplateForgotPassword, map[string]any{
		"username":   username,
		"reset_link": resetLink,
	})
}

func (r *Renderer) ResetPassword(p ResetPasswordParams) (string, error) {
	return r.Render(TemplateResetPassword, map[string]any{
		"username":   p.Username,
		"email":      p.Email,
		"ip_address": p.IPAddress,
		"date":       p.Date,
	})
}
