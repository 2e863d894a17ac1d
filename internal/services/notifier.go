package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	types "github.com/yungbote/coursemarket-backend/internal/domain"
	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/platform/sendgrid"
)

const (
	templateEnrollmentReceipt = "enrollment_receipt"
	templateCertificateIssued = "certificate_issued"
	templateRefundRequested   = "refund_requested"
)

// Notifier sends transactional emails. Every method is best-effort: failures
// are logged and counted, never returned.
type Notifier interface {
	EnrollmentConfirmed(ctx context.Context, user *types.User, course *types.Course, payment *types.Payment)
	CertificateIssued(ctx context.Context, user *types.User, course *types.Course, cert *types.Certificate)
	RefundRequested(ctx context.Context, user *types.User, course *types.Course, payment *types.Payment)
}

type emailNotifier struct {
	log    *logger.Logger
	client sendgrid.Client
}

func NewEmailNotifier(log *logger.Logger, client sendgrid.Client) Notifier {
	return &emailNotifier{log: log.With("service", "EmailNotifier"), client: client}
}

func (n *emailNotifier) EnrollmentConfirmed(ctx context.Context, user *types.User, course *types.Course, payment *types.Payment) {
	if user == nil || course == nil {
		return
	}
	subject := fmt.Sprintf("You're enrolled in %s", course.Title)
	text := fmt.Sprintf("Hi %s,\n\nYou now have access to \"%s\". Happy learning!", user.FirstName(), course.Title)
	if payment != nil {
		text += fmt.Sprintf("\n\nPayment: %.2f %s (transaction %s)", payment.Amount, strings.ToUpper(payment.Currency), payment.TransactionID)
	}
	n.send(ctx, templateEnrollmentReceipt, user, subject, text)
}

func (n *emailNotifier) CertificateIssued(ctx context.Context, user *types.User, course *types.Course, cert *types.Certificate) {
	if user == nil || course == nil || cert == nil {
		return
	}
	subject := fmt.Sprintf("Your certificate for %s", course.Title)
	text := fmt.Sprintf("Congratulations %s!\n\nYou completed \"%s\".\nCertificate number: %s\n%s",
		user.FirstName(), course.Title, cert.CertificateNumber, cert.CertificateURL)
	n.send(ctx, templateCertificateIssued, user, subject, text)
}

func (n *emailNotifier) RefundRequested(ctx context.Context, user *types.User, course *types.Course, payment *types.Payment) {
	if user == nil || course == nil || payment == nil {
		return
	}
	subject := fmt.Sprintf("Refund requested for %s", course.Title)
	text := fmt.Sprintf("Hi %s,\n\nWe received your refund request for \"%s\" (%.2f %s). Our team will review it shortly.",
		user.FirstName(), course.Title, payment.Amount, strings.ToUpper(payment.Currency))
	n.send(ctx, templateRefundRequested, user, subject, text)
}

func (n *emailNotifier) send(ctx context.Context, template string, user *types.User, subject, text string) {
	if n.client == nil || !n.client.Enabled() {
		observability.Current().IncEmail(template, "skipped")
		return
	}
	_, err := n.client.Send(context.WithoutCancel(ctx), sendgrid.SendEmailRequest{
		To:         []sendgrid.EmailAddress{{Email: user.Email, Name: user.FullName}},
		Subject:    subject,
		Text:       text,
		HTML:       "<p>" + strings.ReplaceAll(html.EscapeString(text), "\n", "<br>") + "</p>",
		Categories: []string{template},
	})
	if err != nil {
		observability.Current().IncEmail(template, "error")
		n.log.Warn("Email send failed", "template", template, "user_id", user.ID, "error", err)
		return
	}
	observability.Current().IncEmail(template, "sent")
}
