package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
)

// SignatureHeader carries the webhook signature Stripe computes over the raw body.
const SignatureHeader = "Stripe-Signature"

const (
	modeTest = "test"
	modeLive = "live"
)

// keyPrefixes lists the secret and restricted key prefixes each mode accepts.
var keyPrefixes = map[string][]string{
	modeTest: {"sk_test_", "rk_test_"},
	modeLive: {"sk_live_", "rk_live_"},
}

var (
	ErrNotConfigured = errors.New("stripe client not configured")
	errNoSecret      = errors.New("stripe webhook signing secret is required")
)

// Client opens checkout sessions for mint and analysis payments and listing sales, and
// verifies the webhooks that settle them.
type Client struct {
	sessions      session.Client
	mode          string
	signingSecret string
	tolerance     time.Duration
}

// NewClient checks that the API key belongs to the configured mode before any call is
// made, so a live deploy can never run against test keys or the reverse.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	mode := cfg.Environment()
	prefixes, ok := keyPrefixes[mode]
	if !ok {
		return nil, fmt.Errorf("stripe environment %q must be %q or %q", mode, modeTest, modeLive)
	}
	key := strings.TrimSpace(cfg.APIKey)
	if err := checkKey(mode, prefixes, key); err != nil {
		return nil, err
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errNoSecret
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
	})
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_mode", mode), "stripe client ready")
	}
	return &Client{
		sessions:      session.Client{B: backend, Key: key},
		mode:          mode,
		signingSecret: secret,
		tolerance:     cfg.WebhookTolerance,
	}, nil
}

func checkKey(mode string, prefixes []string, key string) error {
	if key == "" {
		return errors.New("stripe api key is required")
	}
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return nil
		}
	}
	return fmt.Errorf("stripe %s mode requires a key starting with %s", mode, strings.Join(prefixes, " or "))
}

// Mode is "test" or "live".
func (c *Client) Mode() string {
	if c == nil {
		return ""
	}
	return c.mode
}

// CreateCheckoutSession opens a hosted checkout session.
func (c *Client) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	if params == nil {
		return nil, errors.New("checkout session params required")
	}
	params.Context = ctx
	return c.sessions.New(params)
}

// VerifyEvent checks the signature over the raw payload and decodes the event. Nothing
// in the payload is trusted until this succeeds. Signatures older than the configured
// tolerance are rejected as replays.
func (c *Client) VerifyEvent(payload []byte, signature string) (stripe.Event, error) {
	if c == nil || c.signingSecret == "" {
		return stripe.Event{}, errNoSecret
	}
	return webhook.ConstructEventWithOptions(payload, signature, c.signingSecret, webhook.ConstructEventOptions{
		Tolerance:                c.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
}
