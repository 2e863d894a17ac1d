package sendgrid

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/yungbote/coursemarket-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/envutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

const mailSendEndpoint = "/v3/mail/send"

type Client interface {
	Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error)
	Enabled() bool
}

type Config struct {
	APIKey           string
	BaseURL          string
	DefaultFromEmail string
	DefaultFromName  string
	Timeout          time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:           envutil.String("SENDGRID_API_KEY", ""),
		BaseURL:          envutil.String("SENDGRID_BASE_URL", ""),
		DefaultFromEmail: envutil.String("SENDGRID_FROM_EMAIL", ""),
		DefaultFromName:  envutil.String("SENDGRID_FROM_NAME", "Course Market"),
		Timeout:          time.Duration(envutil.Int("SENDGRID_TIMEOUT_SECONDS", 15)) * time.Second,
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

// New returns a client for cfg. Without an API key the returned client drops
// every message, so local runs need no SendGrid account.
func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	clientLog := log.With("client", "SendGridClient")
	if strings.TrimSpace(cfg.APIKey) == "" {
		clientLog.Info("SENDGRID_API_KEY not set; emails are disabled")
		return &noopClient{log: clientLog}, nil
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &client{log: clientLog, cfg: cfg}, nil
}

type client struct {
	log *logger.Logger
	cfg Config
}

type EmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type Attachment struct {
	Filename    string
	MIMEType    string
	Content     []byte
	Disposition string
	ContentID   string
}

type SendEmailRequest struct {
	From                EmailAddress
	ReplyTo             *EmailAddress
	To                  []EmailAddress
	Subject             string
	Text                string
	HTML                string
	TemplateID          string
	DynamicTemplateData map[string]any
	Categories          []string
	CustomArgs          map[string]string
	Attachments         []Attachment
}

type SendEmailResult struct {
	StatusCode int
	MessageID  string
	Skipped    bool
}

func (c *client) Enabled() bool { return true }

func (c *client) Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error) {
	m, err := c.build(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), c.cfg.Timeout)
	defer cancel()

	request := sg.GetRequest(c.cfg.APIKey, mailSendEndpoint, c.cfg.BaseURL)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(m)

	resp, err := sg.MakeRequestRetryWithContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		he := &HTTPError{StatusCode: resp.StatusCode, Body: resp.Body}
		var er errorResponse
		if json.Unmarshal([]byte(resp.Body), &er) == nil && len(er.Errors) > 0 {
			he.Errors = er.Errors
		}
		return nil, he
	}
	out := &SendEmailResult{StatusCode: resp.StatusCode}
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		out.MessageID = strings.TrimSpace(ids[0])
	}
	return out, nil
}

func (c *client) build(req SendEmailRequest) (*mail.SGMailV3, error) {
	from := req.From
	if strings.TrimSpace(from.Email) == "" {
		from = EmailAddress{Email: c.cfg.DefaultFromEmail, Name: c.cfg.DefaultFromName}
	}
	from.Email = strings.TrimSpace(from.Email)
	if from.Email == "" {
		return nil, fmt.Errorf("sendgrid: From.Email required (or set SENDGRID_FROM_EMAIL)")
	}
	if len(req.To) == 0 {
		return nil, fmt.Errorf("sendgrid: To required")
	}
	subject := strings.TrimSpace(req.Subject)
	templateID := strings.TrimSpace(req.TemplateID)
	text := strings.TrimSpace(req.Text)
	html := strings.TrimSpace(req.HTML)
	if templateID == "" {
		if subject == "" {
			return nil, fmt.Errorf("sendgrid: Subject required (unless using TemplateID)")
		}
		if text == "" && html == "" {
			return nil, fmt.Errorf("sendgrid: Text or HTML content required (unless using TemplateID)")
		}
	}

	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(strings.TrimSpace(from.Name), from.Email))
	if subject != "" {
		m.Subject = subject
	}
	if req.ReplyTo != nil && strings.TrimSpace(req.ReplyTo.Email) != "" {
		m.SetReplyTo(mail.NewEmail(strings.TrimSpace(req.ReplyTo.Name), strings.TrimSpace(req.ReplyTo.Email)))
	}

	p := mail.NewPersonalization()
	for _, to := range req.To {
		p.AddTos(mail.NewEmail(strings.TrimSpace(to.Name), strings.TrimSpace(to.Email)))
	}
	for k, v := range req.DynamicTemplateData {
		p.SetDynamicTemplateData(k, v)
	}
	for k, v := range req.CustomArgs {
		p.SetCustomArg(k, v)
	}
	m.AddPersonalizations(p)

	if text != "" {
		m.AddContent(mail.NewContent("text/plain", text))
	}
	if html != "" {
		m.AddContent(mail.NewContent("text/html", html))
	}
	if templateID != "" {
		m.SetTemplateID(templateID)
	}
	if len(req.Categories) > 0 {
		m.AddCategories(req.Categories...)
	}
	for _, a := range req.Attachments {
		fn := strings.TrimSpace(a.Filename)
		if fn == "" {
			return nil, fmt.Errorf("sendgrid: attachment filename required")
		}
		if len(a.Content) == 0 {
			return nil, fmt.Errorf("sendgrid: attachment %q missing content", fn)
		}
		att := mail.NewAttachment()
		att.SetFilename(fn)
		att.SetContent(base64.StdEncoding.EncodeToString(a.Content))
		if t := strings.TrimSpace(a.MIMEType); t != "" {
			att.SetType(t)
		}
		if d := strings.TrimSpace(a.Disposition); d != "" {
			att.SetDisposition(d)
		}
		if cid := strings.TrimSpace(a.ContentID); cid != "" {
			att.SetContentID(cid)
		}
		m.AddAttachment(att)
	}
	return m, nil
}

type noopClient struct {
	log *logger.Logger
}

func (n *noopClient) Enabled() bool { return false }

func (n *noopClient) Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error) {
	n.log.Debug("Email skipped", "subject", req.Subject, "recipients", len(req.To))
	return &SendEmailResult{Skipped: true}, nil
}

type errorItem struct {
	Message string `json:"message"`
	Field   any    `json:"field,omitempty"`
	Help    any    `json:"help,omitempty"`
}

type errorResponse struct {
	Errors []errorItem `json:"errors"`
}

type HTTPError struct {
	StatusCode int
	Body       string
	Errors     []errorItem
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "sendgrid: <nil error>"
	}
	if len(e.Errors) > 0 && strings.TrimSpace(e.Errors[0].Message) != "" {
		return fmt.Sprintf("sendgrid http %d: %s", e.StatusCode, e.Errors[0].Message)
	}
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 4000 {
		msg = msg[:4000] + "..."
	}
	return fmt.Sprintf("sendgrid http %d: %s", e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}
