package aggregates

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/enrollment"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
)

const maxCertificateNumberAttempts = 5

// CertificateNumberFunc returns a candidate certificate number. Candidates may
// collide; the unique index decides.
type CertificateNumberFunc func(at time.Time) (string, error)

type CertificationIssuerDeps struct {
	Base         BaseDeps
	BaseURL      string
	NextNumber   CertificateNumberFunc
	Enrollments  repos.EnrollmentRepo
	Certificates repos.CertificateRepo
}

type certificationIssuer struct {
	deps CertificationIssuerDeps
}

func NewCertificationIssuer(deps CertificationIssuerDeps) domainagg.CertificationIssuer {
	deps.Base = deps.Base.withDefaults()
	if deps.NextNumber == nil {
		deps.NextNumber = RandomCertificateNumber
	}
	deps.BaseURL = strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/")
	return &certificationIssuer{deps: deps}
}

// RandomCertificateNumber formats CERT-<yyyymmdd>-<12 hex chars>.
func RandomCertificateNumber(at time.Time) (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "CERT-" + at.UTC().Format("20060102") + "-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}

func (a *certificationIssuer) Contract() domainagg.Contract {
	return domainagg.CertificationIssuerContract
}

func (a *certificationIssuer) Issue(ctx context.Context, in domainagg.IssueCertificateInput) (domainagg.IssueCertificateResult, error) {
	const op = "certificate.issue"
	if in.UserID == uuid.Nil || in.CourseID == uuid.Nil {
		return domainagg.IssueCertificateResult{}, fail(domainagg.CodeValidation, op, "missing user_id or course_id")
	}
	at := nowOr(in.At)

	var out domainagg.IssueCertificateResult
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		enr, err := a.deps.Enrollments.LockByUserCourse(dbc, in.UserID, in.CourseID)
		if err != nil {
			return err
		}
		if enr == nil {
			return fail(domainagg.CodeNotEnrolled, op, "not enrolled in this course")
		}
		if !enrollment.IsComplete(enr.Progress) {
			return fail(domainagg.CodeCourseIncomplete, op, "course not completed yet")
		}

		existing, err := a.deps.Certificates.GetByUserCourse(dbc, in.UserID, in.CourseID)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := a.backfill(dbc, enr, existing, at); err != nil {
				return err
			}
			out = domainagg.IssueCertificateResult{Certificate: existing, Enrollment: enr}
			return nil
		}

		for attempt := 1; attempt <= maxCertificateNumberAttempts; attempt++ {
			number, err := a.deps.NextNumber(at)
			if err != nil {
				return err
			}
			cert := &types.Certificate{
				UserID:            in.UserID,
				CourseID:          in.CourseID,
				CertificateNumber: number,
				CertificateURL:    a.urlFor(number),
				IssuedAt:          at,
				CreatedAt:         at,
			}
			created, err := a.deps.Certificates.CreateIfAbsent(dbc, cert)
			if err != nil {
				return err
			}
			if !created {
				// Either a concurrent issue for this pair won, or the number collided.
				winner, err := a.deps.Certificates.GetByUserCourse(dbc, in.UserID, in.CourseID)
				if err != nil {
					return err
				}
				if winner == nil {
					a.deps.Base.Log.Warn("certificate number collision", "op", op, "attempt", attempt)
					continue
				}
				cert = winner
			}
			if err := a.backfill(dbc, enr, cert, at); err != nil {
				return err
			}
			out = domainagg.IssueCertificateResult{Certificate: cert, Enrollment: enr, Created: created}
			return nil
		}
		return RetryableError("could not allocate a unique certificate number")
	})
	if err != nil {
		return domainagg.IssueCertificateResult{}, err
	}
	return out, nil
}

func (a *certificationIssuer) urlFor(number string) string {
	if a.deps.BaseURL == "" {
		return "/certificates/" + number + ".pdf"
	}
	return a.deps.BaseURL + "/" + number + ".pdf"
}

func (a *certificationIssuer) backfill(dbc dbctx.Context, enr *types.Enrollment, cert *types.Certificate, at time.Time) error {
	if enr.CertificateIssued && enr.CertificateURL == cert.CertificateURL {
		return nil
	}
	err := a.deps.Enrollments.UpdateFields(dbc, enr.ID, map[string]interface{}{
		"certificate_issued": true,
		"certificate_url":    cert.CertificateURL,
		"updated_at":         at,
	})
	if err != nil {
		return err
	}
	enr.CertificateIssued = true
	enr.CertificateURL = cert.CertificateURL
	return nil
}
