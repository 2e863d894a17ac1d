package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
)

func TestFromErrorMapsDomainCodes(t *testing.T) {
	cases := []struct {
		code domainagg.ErrorCode
		want int
	}{
		{domainagg.CodeNotFound, http.StatusNotFound},
		{domainagg.CodeForbidden, http.StatusForbidden},
		{domainagg.CodeNotEnrolled, http.StatusForbidden},
		{domainagg.CodeCourseUnavailable, http.StatusForbidden},
		{domainagg.CodeValidation, http.StatusBadRequest},
		{domainagg.CodeAlreadyCompleted, http.StatusBadRequest},
		{domainagg.CodeAlreadyProcessed, http.StatusBadRequest},
		{domainagg.CodeCourseIncomplete, http.StatusBadRequest},
		{domainagg.CodePreconditionFailed, http.StatusBadRequest},
		{domainagg.CodeAlreadyEnrolled, http.StatusConflict},
		{domainagg.CodeAlreadyRefunded, http.StatusConflict},
		{domainagg.CodeConflict, http.StatusConflict},
		{domainagg.CodeInvariantViolation, http.StatusUnprocessableEntity},
		{domainagg.CodeUpstream, http.StatusBadGateway},
		{domainagg.CodeRetryable, http.StatusServiceUnavailable},
		{domainagg.CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", domainagg.NewError(tc.code, "op", "boom", nil))
			got := FromError(err)
			if got.Status != tc.want {
				t.Fatalf("status: want=%d got=%d", tc.want, got.Status)
			}
			if got.Code != string(tc.code) {
				t.Fatalf("code: want=%s got=%s", tc.code, got.Code)
			}
		})
	}
}

func TestFromErrorForeignAndPassthrough(t *testing.T) {
	if FromError(nil) != nil {
		t.Fatalf("nil should map to nil")
	}
	got := FromError(errors.New("db exploded"))
	if got.Status != http.StatusInternalServerError || got.Message() != "internal server error" {
		t.Fatalf("foreign error: got status=%d message=%q", got.Status, got.Message())
	}
	orig := BadRequest("invalid_body", errors.New("bad json"))
	if FromError(orig) != orig {
		t.Fatalf("api errors should pass through")
	}
}

func TestMessageStripsOperation(t *testing.T) {
	err := FromError(domainagg.NewError(domainagg.CodeAlreadyEnrolled, "enrollment.enroll", "already enrolled in this course", nil))
	if got := err.Message(); got != "already enrolled in this course" {
		t.Fatalf("message: got=%q", got)
	}
}
