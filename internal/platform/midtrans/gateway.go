package midtrans

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	mt "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	"github.com/yungbote/coursemarket-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/envutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

var (
	ErrNotConfigured = errors.New("payment gateway is not configured")
	ErrOrderNotFound = errors.New("order not found at payment gateway")
)

// Gateway is the narrow view of the payment provider the payment service uses.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	// CheckStatus asks the provider for the current state of an order.
	CheckStatus(ctx context.Context, orderID string) (*Notification, error)
	VerifySignature(n Notification) bool
}

type Config struct {
	ServerKey  string
	Production bool
	FinishURL  string
	// ExpiryMinutes bounds how long a checkout stays payable.
	ExpiryMinutes int64
}

func ConfigFromEnv() Config {
	return Config{
		ServerKey:     envutil.String("MIDTRANS_SERVER_KEY", ""),
		Production:    envutil.Bool("MIDTRANS_PRODUCTION", false),
		FinishURL:     envutil.String("MIDTRANS_FINISH_URL", ""),
		ExpiryMinutes: int64(envutil.Int("MIDTRANS_EXPIRY_MINUTES", 60)),
	}
}

type CheckoutRequest struct {
	OrderID           string
	Amount            float64
	ItemID            string
	ItemName          string
	Category          string
	CustomerFirstName string
	CustomerEmail     string
}

type Checkout struct {
	OrderID     string
	Token       string
	RedirectURL string
}

// Outcome classifies a provider transaction status.
type Outcome string

const (
	OutcomePaid    Outcome = "paid"
	OutcomePending Outcome = "pending"
	OutcomeFailed  Outcome = "failed"
	OutcomeIgnored Outcome = "ignored"
)

// Notification is the provider's payment notification body. CheckStatus
// returns the same shape.
type Notification struct {
	TransactionTime   string `json:"transaction_time"`
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	Currency          string `json:"currency"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"`
}

func (n Notification) Outcome() Outcome {
	fraud := strings.ToLower(strings.TrimSpace(n.FraudStatus))
	switch strings.ToLower(strings.TrimSpace(n.TransactionStatus)) {
	case "settlement":
		return OutcomePaid
	case "capture":
		switch fraud {
		case "accept", "":
			return OutcomePaid
		case "challenge":
			return OutcomePending
		default:
			return OutcomeFailed
		}
	case "pending":
		return OutcomePending
	case "deny", "cancel", "expire", "failure":
		return OutcomeFailed
	default:
		return OutcomeIgnored
	}
}

// Amount parses GrossAmount; an unparsable value reads as zero.
func (n Notification) Amount() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(n.GrossAmount), 64)
	if err != nil {
		return 0
	}
	return v
}

// Signature computes hex(SHA512(order_id + status_code + gross_amount + server_key)).
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// GatewayError is a provider call failure.
type GatewayError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("midtrans %s: http %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("midtrans %s: %s", e.Op, e.Message)
}

type snapAPI interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *mt.Error)
}

type statusAPI interface {
	CheckTransaction(param string) (*coreapi.TransactionStatusResponse, *mt.Error)
}

type gateway struct {
	log    *logger.Logger
	cfg    Config
	snap   snapAPI
	status statusAPI
}

func NewFromEnv(log *logger.Logger) Gateway {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) Gateway {
	gwLog := log.With("client", "MidtransGateway")
	env := mt.Sandbox
	if cfg.Production {
		env = mt.Production
	}
	g := &gateway{log: gwLog, cfg: cfg}
	if strings.TrimSpace(cfg.ServerKey) == "" {
		gwLog.Warn("MIDTRANS_SERVER_KEY not set; paid checkouts are disabled")
		return g
	}
	var s snap.Client
	s.New(cfg.ServerKey, env)
	var c coreapi.Client
	c.New(cfg.ServerKey, env)
	g.snap = &s
	g.status = &c
	return g
}

func newWithAPIs(log *logger.Logger, cfg Config, s snapAPI, st statusAPI) *gateway {
	return &gateway{log: log.With("client", "MidtransGateway"), cfg: cfg, snap: s, status: st}
}

func (g *gateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if g.snap == nil {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, fmt.Errorf("order id is required")
	}
	gross := int64(math.Round(req.Amount))
	if gross <= 0 {
		return nil, fmt.Errorf("invalid amount %v", req.Amount)
	}

	sr := &snap.Request{
		TransactionDetails: mt.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: gross,
		},
		Items: &[]mt.ItemDetails{
			{
				ID:       req.ItemID,
				Name:     truncate(req.ItemName, 50),
				Price:    gross,
				Qty:      1,
				Category: req.Category,
			},
		},
		CustomerDetail: &mt.CustomerDetails{
			FName: req.CustomerFirstName,
			Email: req.CustomerEmail,
		},
	}
	if g.cfg.FinishURL != "" {
		sr.Callbacks = &snap.Callbacks{Finish: g.cfg.FinishURL}
	}
	if g.cfg.ExpiryMinutes > 0 {
		sr.Expiry = &snap.ExpiryDetails{Unit: "minute", Duration: g.cfg.ExpiryMinutes}
	}

	type result struct {
		resp *snap.Response
		err  *mt.Error
	}
	out, err := call(ctx, func() result {
		resp, mErr := g.snap.CreateTransaction(sr)
		return result{resp: resp, err: mErr}
	})
	if err != nil {
		return nil, err
	}
	if out.err != nil {
		g.log.Warn("Snap checkout failed", "order_id", req.OrderID, "status", out.err.StatusCode, "error", out.err.Message)
		return nil, &GatewayError{Op: "create_checkout", StatusCode: out.err.StatusCode, Message: out.err.Message}
	}
	if out.resp == nil || out.resp.Token == "" {
		return nil, &GatewayError{Op: "create_checkout", Message: "empty snap response"}
	}
	return &Checkout{OrderID: req.OrderID, Token: out.resp.Token, RedirectURL: out.resp.RedirectURL}, nil
}

func (g *gateway) CheckStatus(ctx context.Context, orderID string) (*Notification, error) {
	if g.status == nil {
		return nil, ErrNotConfigured
	}
	type result struct {
		resp *coreapi.TransactionStatusResponse
		err  *mt.Error
	}
	out, err := call(ctx, func() result {
		resp, mErr := g.status.CheckTransaction(orderID)
		return result{resp: resp, err: mErr}
	})
	if err != nil {
		return nil, err
	}
	if out.err != nil {
		if out.err.StatusCode == http.StatusNotFound {
			return nil, ErrOrderNotFound
		}
		return nil, &GatewayError{Op: "check_status", StatusCode: out.err.StatusCode, Message: out.err.Message}
	}
	r := out.resp
	if r == nil {
		return nil, &GatewayError{Op: "check_status", Message: "empty status response"}
	}
	if r.StatusCode == "404" {
		return nil, ErrOrderNotFound
	}
	return &Notification{
		TransactionTime:   r.TransactionTime,
		TransactionStatus: r.TransactionStatus,
		TransactionID:     r.TransactionID,
		StatusCode:        r.StatusCode,
		SignatureKey:      r.SignatureKey,
		OrderID:           r.OrderID,
		GrossAmount:       r.GrossAmount,
		Currency:          r.Currency,
		PaymentType:       r.PaymentType,
		FraudStatus:       r.FraudStatus,
	}, nil
}

func (g *gateway) VerifySignature(n Notification) bool {
	if g.cfg.ServerKey == "" || n.SignatureKey == "" {
		return false
	}
	want := Signature(n.OrderID, n.StatusCode, n.GrossAmount, g.cfg.ServerKey)
	got := strings.ToLower(strings.TrimSpace(n.SignatureKey))
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// call runs a blocking SDK call and gives up when ctx ends first.
func call[T any](ctx context.Context, fn func() T) (T, error) {
	ctx = ctxutil.Default(ctx)
	done := make(chan T, 1)
	go func() { done <- fn() }()
	select {
	case v := <-done:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-time.After(2 * time.Minute):
		var zero T
		return zero, &GatewayError{Op: "call", Message: "timed out"}
	}
}

// truncate caps s at n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	end := 0
	for end < len(s) {
		_, size := utf8.DecodeRuneInString(s[end:])
		if end+size > n {
			break
		}
		end += size
	}
	return s[:end]
}
