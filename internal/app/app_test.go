package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/coursemarket-backend/internal/clients/redis"
	repotest "github.com/yungbote/coursemarket-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/platform/midtrans"
	"github.com/yungbote/coursemarket-backend/internal/platform/sendgrid"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

const (
	appSecret    = "app-test-secret"
	appServerKey = "app-server-key"
)

type stubGateway struct {
	mu       sync.Mutex
	orders   []string
	statuses map[string]*midtrans.Notification
}

func (g *stubGateway) CreateCheckout(_ context.Context, req midtrans.CheckoutRequest) (*midtrans.Checkout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders = append(g.orders, req.OrderID)
	return &midtrans.Checkout{OrderID: req.OrderID, Token: "tok", RedirectURL: "https://pay.example.com/" + req.OrderID}, nil
}

func (g *stubGateway) CheckStatus(_ context.Context, orderID string) (*midtrans.Notification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.statuses[orderID]
	if !ok {
		return nil, midtrans.ErrOrderNotFound
	}
	cp := *n
	return &cp, nil
}

func (g *stubGateway) VerifySignature(n midtrans.Notification) bool {
	return n.SignatureKey == midtrans.Signature(n.OrderID, n.StatusCode, n.GrossAmount, appServerKey)
}

func (g *stubGateway) settle(orderID, gross string) {
	n := &midtrans.Notification{
		OrderID:           orderID,
		TransactionID:     "txn-" + orderID,
		TransactionStatus: "settlement",
		StatusCode:        "200",
		GrossAmount:       gross,
		PaymentType:       "bank_transfer",
	}
	g.mu.Lock()
	g.statuses[orderID] = n
	g.mu.Unlock()
}

type testApp struct {
	t       *testing.T
	app     *App
	gateway *stubGateway
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	mail, err := sendgrid.New(log, sendgrid.Config{})
	if err != nil {
		t.Fatalf("sendgrid: %v", err)
	}
	gw := &stubGateway{statuses: map[string]*midtrans.Notification{}}
	cfg := Config{Port: "0", JWTSecretKey: appSecret, Policy: DefaultPolicy()}
	a := Build(log, cfg, repotest.DB(t), Clients{Bus: redis.NewNoopEventBus(), Mail: mail, Gateway: gw}, observability.New(), nil)
	return &testApp{t: t, app: a, gateway: gw}
}

func (ta *testApp) token(u *types.User) string {
	ta.t.Helper()
	claims := services.JWTClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   u.ID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(appSecret))
	if err != nil {
		ta.t.Fatalf("sign: %v", err)
	}
	return signed
}

func (ta *testApp) user(role string) (*types.User, string) {
	ta.t.Helper()
	u := repotest.SeedUser(ta.t, context.Background(), ta.app.DB, role)
	return u, ta.token(u)
}

// do sends a request and decodes a JSON response into out when non-nil.
func (ta *testApp) do(method, path, token string, body any, wantStatus int, out any) *httptest.ResponseRecorder {
	ta.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			ta.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ta.app.Server.Engine.ServeHTTP(rec, req)
	if rec.Code != wantStatus {
		ta.t.Fatalf("%s %s: want=%d got=%d body=%s", method, path, wantStatus, rec.Code, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			ta.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return rec
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func TestMarketplaceLifecycleOverHTTP(t *testing.T) {
	ta := newTestApp(t)
	_, creatorToken := ta.user(ctxutil.RoleCreator)
	_, adminToken := ta.user(ctxutil.RoleAdmin)
	_, learnerToken := ta.user(ctxutil.RoleStudent)

	ta.do(http.MethodGet, "/healthcheck", "", nil, http.StatusOK, nil)

	// Authoring
	var created struct {
		Course types.Course `json:"course"`
	}
	ta.do(http.MethodPost, "/api/creator/courses", creatorToken, map[string]any{
		"title":       "Distributed systems in Go",
		"description": "Consensus, replication and friends",
		"category":    "programming",
		"level":       "advanced",
		"thumbnail":   "https://cdn.example.com/ds.png",
		"price":       150000,
	}, http.StatusCreated, &created)
	courseID := created.Course.ID.String()

	ta.do(http.MethodPost, "/api/creator/courses", learnerToken, map[string]any{"title": "nope"}, http.StatusForbidden, nil)

	var publishErr errorBody
	ta.do(http.MethodPost, "/api/creator/courses/"+courseID+"/publish", creatorToken, nil, http.StatusBadRequest, &publishErr)
	if publishErr.Error.Code != "validation" || !strings.Contains(publishErr.Error.Message, "at least one module") {
		t.Fatalf("unexpected publish error: %+v", publishErr.Error)
	}

	var module struct {
		Module types.Module `json:"module"`
	}
	ta.do(http.MethodPost, "/api/creator/courses/"+courseID+"/modules", creatorToken, map[string]any{"title": "Foundations"}, http.StatusCreated, &module)

	var lesson struct {
		Lesson types.Lesson `json:"lesson"`
	}
	ta.do(http.MethodPost, "/api/creator/modules/"+module.Module.ID.String()+"/lessons", creatorToken, map[string]any{
		"title":   "Why consensus",
		"type":    "text",
		"content": map[string]any{"html_content": "<p>Paxos</p>"},
	}, http.StatusCreated, &lesson)
	lessonID := lesson.Lesson.ID.String()

	ta.do(http.MethodPost, "/api/creator/courses/"+courseID+"/publish", creatorToken, nil, http.StatusOK, nil)

	// Not yet approved: invisible to learners.
	ta.do(http.MethodPost, "/api/courses/"+courseID+"/enroll", learnerToken, nil, http.StatusForbidden, nil)
	ta.do(http.MethodPut, "/api/admin/courses/"+courseID+"/approve", creatorToken, map[string]any{"approve": true}, http.StatusForbidden, nil)
	ta.do(http.MethodPut, "/api/admin/courses/"+courseID+"/approve", adminToken, map[string]any{"approve": true}, http.StatusOK, nil)

	var catalog services.CoursePage
	ta.do(http.MethodGet, "/api/courses?category=programming", "", nil, http.StatusOK, &catalog)
	if catalog.Total != 1 || len(catalog.Courses) != 1 {
		t.Fatalf("catalog: want 1 course got total=%d", catalog.Total)
	}

	// Paid enrollment through checkout and verify.
	ta.do(http.MethodGet, "/api/lessons/"+lessonID, learnerToken, nil, http.StatusForbidden, nil)
	var checkout services.CheckoutResult
	ta.do(http.MethodPost, "/api/courses/"+courseID+"/enroll", learnerToken, nil, http.StatusOK, &checkout)
	if checkout.SessionID == "" || checkout.Amount != 150000 {
		t.Fatalf("unexpected checkout: %+v", checkout)
	}

	ta.do(http.MethodGet, "/api/payments/verify?session_id="+checkout.SessionID, "", nil, http.StatusNotFound, nil)
	ta.gateway.settle(checkout.SessionID, "150000.00")

	var verified struct {
		Message string        `json:"message"`
		Payment types.Payment `json:"payment"`
	}
	ta.do(http.MethodGet, "/api/payments/verify?session_id="+checkout.SessionID, "", nil, http.StatusOK, &verified)
	if verified.Message != "Payment successful" || verified.Payment.PlatformFee != 22500 || verified.Payment.CreatorPayout != 127500 {
		t.Fatalf("unexpected verify payload: %+v", verified)
	}
	var again errorBody
	ta.do(http.MethodGet, "/api/payments/verify?order_id="+checkout.SessionID, "", nil, http.StatusBadRequest, &again)
	if again.Error.Code != "already_processed" {
		t.Fatalf("repeat verify code=%s", again.Error.Code)
	}
	ta.do(http.MethodPost, "/api/courses/"+courseID+"/enroll", learnerToken, nil, http.StatusConflict, nil)

	// Learning and certification.
	ta.do(http.MethodPost, "/api/enrollments/course/"+courseID+"/certificate", learnerToken, nil, http.StatusBadRequest, nil)
	var progress services.ProgressUpdate
	ta.do(http.MethodPost, "/api/lessons/"+lessonID+"/complete", learnerToken, nil, http.StatusOK, &progress)
	if progress.Progress != 100 || !progress.CourseCompleted {
		t.Fatalf("unexpected progress: %+v", progress)
	}
	var repeat errorBody
	ta.do(http.MethodPost, "/api/lessons/"+lessonID+"/complete", learnerToken, nil, http.StatusBadRequest, &repeat)
	if repeat.Error.Code != "already_completed" {
		t.Fatalf("repeat completion code=%s", repeat.Error.Code)
	}

	var issued struct {
		Certificate types.Certificate `json:"certificate"`
	}
	ta.do(http.MethodPost, "/api/enrollments/course/"+courseID+"/certificate", learnerToken, nil, http.StatusCreated, &issued)
	ta.do(http.MethodPost, "/api/enrollments/course/"+courseID+"/certificate", learnerToken, nil, http.StatusOK, nil)
	number := issued.Certificate.CertificateNumber
	if !strings.HasPrefix(number, "CERT-") {
		t.Fatalf("certificate number=%q", number)
	}

	var view services.CertificateView
	ta.do(http.MethodGet, "/api/certificates/"+number, "", nil, http.StatusOK, &view)
	if view.CourseTitle != "Distributed systems in Go" {
		t.Fatalf("certificate course title=%q", view.CourseTitle)
	}
	img := ta.do(http.MethodGet, "/api/certificates/"+number+"/image", "", nil, http.StatusOK, nil)
	if ct := img.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type=%q", ct)
	}

	// Reporting
	var earnings services.Earnings
	ta.do(http.MethodGet, "/api/creator/earnings", creatorToken, nil, http.StatusOK, &earnings)
	if earnings.TotalEarnings != 127500 || earnings.PendingAmount != 127500 {
		t.Fatalf("unexpected earnings: %+v", earnings)
	}
	var history struct {
		Payments []types.Payment `json:"payments"`
	}
	ta.do(http.MethodGet, "/api/payments/user/history", learnerToken, nil, http.StatusOK, &history)
	if len(history.Payments) != 1 {
		t.Fatalf("history length=%d", len(history.Payments))
	}

	metrics := ta.do(http.MethodGet, "/metrics", "", nil, http.StatusOK, nil)
	if !strings.Contains(metrics.Body.String(), "cm_api_requests_total") {
		t.Fatalf("metrics output missing api counter")
	}
}

func TestRoutesRejectBadInput(t *testing.T) {
	ta := newTestApp(t)
	_, learnerToken := ta.user(ctxutil.RoleStudent)

	ta.do(http.MethodGet, "/api/enrollments/me", "", nil, http.StatusUnauthorized, nil)
	ta.do(http.MethodGet, "/api/courses/not-a-uuid", "", nil, http.StatusBadRequest, nil)
	ta.do(http.MethodGet, "/api/payments/verify", "", nil, http.StatusBadRequest, nil)
	ta.do(http.MethodPost, "/api/lessons/"+"3f8a3c52-8d6e-4c53-9d1c-0e3c2d1f4a11"+"/progress", learnerToken, map[string]any{}, http.StatusBadRequest, nil)
	ta.do(http.MethodGet, "/api/admin/analytics", learnerToken, nil, http.StatusForbidden, nil)

	var missing errorBody
	ta.do(http.MethodGet, "/api/courses/3f8a3c52-8d6e-4c53-9d1c-0e3c2d1f4a11", "", nil, http.StatusNotFound, &missing)
	if missing.Error.Code != "not_found" {
		t.Fatalf("code=%s", missing.Error.Code)
	}

	var mine struct {
		Enrollments []services.EnrolledCourse `json:"enrollments"`
	}
	ta.do(http.MethodGet, "/api/enrollments/me", learnerToken, nil, http.StatusOK, &mine)
	if len(mine.Enrollments) != 0 {
		t.Fatalf("expected no enrollments, got %d", len(mine.Enrollments))
	}
}

func TestAggregateContractsOwnTheirTransactions(t *testing.T) {
	ta := newTestApp(t)
	contracts := ta.app.Aggregates.Contracts()
	if len(contracts) != 5 {
		t.Fatalf("contracts: want=5 got=%d", len(contracts))
	}
	if err := checkContracts(logger.Nop(), ta.app.Aggregates); err != nil {
		t.Fatalf("checkContracts: %v", err)
	}

	bad := contracts[0]
	bad.WriteTxOwnership = "caller_owned"
	if bad.RequiresAggregateOwnedTx() {
		t.Fatalf("caller owned contract reported as aggregate owned")
	}
	bad.Tables = nil
	if err := bad.Validate(); err == nil {
		t.Fatalf("contract without tables should not validate")
	}
}
