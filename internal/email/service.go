package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return "$" + d.StringFixed(2) },
}

// Service renders templates and hands the result to a Sender.
type Service struct {
	sender    Sender
	templates map[string]*template.Template
}

// NewService parses the embedded templates. Each message template is parsed
// together with the shared layout.
func NewService(sender Sender) (*Service, error) {
	names := []string{
		OrderConfirmationEmail{}.TemplateName(),
		ShippingNotificationEmail{}.TemplateName(),
	}

	templates := make(map[string]*template.Template, len(names))
	for _, name := range names {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse email template %s: %w", name, err)
		}
		templates[name] = t
	}

	return &Service{sender: sender, templates: templates}, nil
}

// SendOrderConfirmation sends an order confirmation email.
func (s *Service) SendOrderConfirmation(ctx context.Context, data OrderConfirmationEmail) error {
	if err := s.send(ctx, data.CustomerEmail, data); err != nil {
		return fmt.Errorf("failed to send order confirmation email: %w", err)
	}
	return nil
}

// SendShippingNotification sends a shipped notification email.
func (s *Service) SendShippingNotification(ctx context.Context, data ShippingNotificationEmail) error {
	if err := s.send(ctx, data.CustomerEmail, data); err != nil {
		return fmt.Errorf("failed to send shipping notification email: %w", err)
	}
	return nil
}

func (s *Service) send(ctx context.Context, to string, data Template) error {
	if to == "" {
		return ErrNoRecipients
	}

	htmlBody, textBody, err := s.render(data)
	if err != nil {
		return err
	}

	_, err = s.sender.Send(ctx, &Email{
		To:       []string{to},
		Subject:  data.Subject(),
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
	return err
}

// render executes the layout with data, exposing Subject to the layout.
func (s *Service) render(data Template) (string, string, error) {
	t, ok := s.templates[data.TemplateName()]
	if !ok {
		return "", "", ErrTemplateNotFound(data.TemplateName())
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "email_layout", data); err != nil {
		return "", "", fmt.Errorf("failed to execute template %s: %w", data.TemplateName(), err)
	}

	htmlBody := buf.String()
	return htmlBody, generatePlainText(htmlBody), nil
}

// generatePlainText derives a readable text part from the rendered HTML.
func generatePlainText(html string) string {
	text := html

	for _, tag := range []string{"<br>", "<br/>", "<br />", "</tr>", "</div>"} {
		text = strings.ReplaceAll(text, tag, "\n")
	}
	for _, tag := range []string{"</p>", "</h1>", "</h2>", "</h3>"} {
		text = strings.ReplaceAll(text, tag, "\n\n")
	}
	text = strings.ReplaceAll(text, "</td>", " ")

	for {
		start := strings.Index(text, "<")
		if start < 0 {
			break
		}
		end := strings.Index(text[start:], ">")
		if end < 0 {
			break
		}
		text = text[:start] + text[start+end+1:]
	}

	text = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&#34;", "\"",
		"&#39;", "'",
	).Replace(text)

	var cleaned []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
