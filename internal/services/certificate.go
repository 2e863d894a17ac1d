package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/events"
	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

// CertificateView is the public verification record.
type CertificateView struct {
	Certificate *types.Certificate `json:"certificate"`
	LearnerName string             `json:"learner_name"`
	CourseTitle string             `json:"course_title"`
}

type CertificateService interface {
	Issue(ctx context.Context, courseID uuid.UUID) (*domainagg.IssueCertificateResult, error)
	GetCertificate(ctx context.Context, number string) (*CertificateView, error)
	RenderCertificate(ctx context.Context, number string) ([]byte, error)
}

type certificateService struct {
	log          *logger.Logger
	clock        Clock
	bus          EventPublisher
	notifier     Notifier
	issuer       domainagg.CertificationIssuer
	certificates repos.CertificateRepo
	courses      repos.CourseRepo
	users        repos.UserRepo
}

func NewCertificateService(
	baseLog *logger.Logger,
	clock Clock,
	bus EventPublisher,
	notifier Notifier,
	issuer domainagg.CertificationIssuer,
	certificates repos.CertificateRepo,
	courses repos.CourseRepo,
	users repos.UserRepo,
) CertificateService {
	return &certificateService{
		log:          baseLog.With("service", "CertificateService"),
		clock:        clockOrSystem(clock),
		bus:          bus,
		notifier:     notifier,
		issuer:       issuer,
		certificates: certificates,
		courses:      courses,
		users:        users,
	}
}

// Issue is idempotent: a learner asking again gets the certificate they already have.
func (s *certificateService) Issue(ctx context.Context, courseID uuid.UUID) (*domainagg.IssueCertificateResult, error) {
	const op = "certificate.issue"
	rd, err := requirePrincipal(ctx, op)
	if err != nil {
		return nil, err
	}
	res, err := s.issuer.Issue(ctx, domainagg.IssueCertificateInput{UserID: rd.UserID, CourseID: courseID, At: s.clock()})
	if err != nil {
		observability.Current().IncCertificate(string(domainagg.CodeOf(err)))
		return nil, err
	}
	if !res.Created {
		observability.Current().IncCertificate("existing")
		return &res, nil
	}

	observability.Current().IncCertificate("issued")
	cert := res.Certificate
	publish(ctx, s.bus, s.log, events.New(events.CertificateIssued, rd.UserID, courseID, map[string]any{
		"certificate_number": cert.CertificateNumber,
	}))
	if s.notifier != nil {
		dbc := dbctx.Context{Ctx: context.WithoutCancel(ctx)}
		user, _ := s.users.GetByID(dbc, rd.UserID)
		course, _ := s.courses.GetByID(dbc, courseID)
		s.notifier.CertificateIssued(ctx, user, course, cert)
	}
	s.log.Info("Certificate issued", "certificate_number", cert.CertificateNumber, "course_id", courseID, "user_id", rd.UserID)
	return &res, nil
}

func (s *certificateService) GetCertificate(ctx context.Context, number string) (*CertificateView, error) {
	const op = "certificate.get"
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, fail(domainagg.CodeValidation, op, "certificate number is required")
	}
	dbc := dbctx.Context{Ctx: ctx}
	cert, err := s.certificates.GetByNumber(dbc, number)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if cert == nil {
		return nil, fail(domainagg.CodeNotFound, op, "certificate not found")
	}
	view := &CertificateView{Certificate: cert}
	user, err := s.users.GetByID(dbc, cert.UserID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if user != nil {
		view.LearnerName = user.FullName
	}
	course, err := s.courses.GetByID(dbc, cert.CourseID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if course != nil {
		view.CourseTitle = course.Title
	}
	return view, nil
}

func (s *certificateService) RenderCertificate(ctx context.Context, number string) ([]byte, error) {
	const op = "certificate.render"
	view, err := s.GetCertificate(ctx, number)
	if err != nil {
		return nil, err
	}
	png, err := RenderCertificatePNG(CertificateCard{
		LearnerName: view.LearnerName,
		CourseTitle: view.CourseTitle,
		Number:      view.Certificate.CertificateNumber,
		IssuedAt:    view.Certificate.IssuedAt,
	})
	if err != nil {
		return nil, internalErr(op, err)
	}
	return png, nil
}
