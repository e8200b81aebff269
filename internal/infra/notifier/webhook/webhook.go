// Package webhook delivers deposit notifications to an HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gabapcia/solcustody/internal/depositwatch"
	httptransport "github.com/gabapcia/solcustody/internal/pkg/transport/http"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// ErrUnexpectedStatus is returned when the endpoint answers outside 2xx.
var ErrUnexpectedStatus = errors.New("unexpected webhook response status")

const (
	// EventDepositDetected is the event name of deposit notifications.
	EventDepositDetected = "deposit.detected"

	// SignatureHeader carries the hex HMAC-SHA256 of the body when a secret is set.
	SignatureHeader = "X-Solcustody-Signature"

	// DeliveryHeader carries a unique id per delivery.
	DeliveryHeader = "X-Solcustody-Delivery"
)

// Event is the JSON body posted to the endpoint.
type Event struct {
	Event   string                     `json:"event"`
	AssetID string                     `json:"assetId"`
	Deposit depositwatch.DepositRecord `json:"deposit"`
	SentAt  time.Time                  `json:"sentAt"`
}

type config struct {
	secret string
	client *retryablehttp.Client
	now    func() time.Time
}

// Option customizes the notifier.
type Option func(*config)

// WithSecret signs every body with secret.
func WithSecret(secret string) Option {
	return func(c *config) {
		c.secret = secret
	}
}

// WithHTTPClient replaces the retrying HTTP client.
func WithHTTPClient(client *retryablehttp.Client) Option {
	return func(c *config) {
		c.client = client
	}
}

// Notifier posts deposit events to a single URL.
type Notifier struct {
	url string
	cfg config
}

// New returns a notifier posting to url.
func New(url string, opts ...Option) *Notifier {
	cfg := config{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.client == nil {
		cfg.client = httptransport.NewClient(
			httptransport.WithTimeout(10*time.Second),
			httptransport.WithRetryMax(3),
			httptransport.WithLogging("webhook"),
		)
	}

	return &Notifier{url: url, cfg: cfg}
}

// NotifyDeposit posts record to the endpoint.
func (n *Notifier) NotifyDeposit(ctx context.Context, record depositwatch.DepositRecord, assetID string) error {
	body, err := json.Marshal(Event{
		Event:   EventDepositDetected,
		AssetID: assetID,
		Deposit: record,
		SentAt:  n.cfg.now().UTC(),
	})
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(DeliveryHeader, uuid.NewString())
	if n.cfg.secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.cfg.secret, body))
	}

	resp, err := n.cfg.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
