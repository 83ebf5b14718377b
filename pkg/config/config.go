package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Quota        QuotaConfig
	Pricing      PricingConfig
	Entitlements EntitlementsConfig
	Stripe       StripeConfig
	Arweave      ArweaveConfig
	Ledger       LedgerConfig
	PriceFeed    PriceFeedConfig
	Balance      BalanceConfig
	Monitor      MonitorConfig
	Mint         MintConfig
	Listing      ListingConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
	Worker       WorkerConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDB reads only the database section, for tools that touch nothing else.
func LoadDB() (DBConfig, error) {
	var db DBConfig
	if err := envconfig.Process(EnvPrefix, &db); err != nil {
		return DBConfig{}, fmt.Errorf("parsing db config: %w", err)
	}
	if err := db.ensureDSN(); err != nil {
		return DBConfig{}, err
	}
	return db, nil
}

type AppConfig struct {
	Env          string `envconfig:"ARCHIVEMINT_APP_ENV" required:"true"`
	Port         string `envconfig:"ARCHIVEMINT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ARCHIVEMINT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ARCHIVEMINT_LOG_WARN_STACK" default:"false"`
	PublicURL    string `envconfig:"ARCHIVEMINT_PUBLIC_URL" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ARCHIVEMINT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ARCHIVEMINT_DB_DSN"`
	Driver string `envconfig:"ARCHIVEMINT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ARCHIVEMINT_DB_HOST"`
	LegacyPort     int    `envconfig:"ARCHIVEMINT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ARCHIVEMINT_DB_USER"`
	LegacyPassword string `envconfig:"ARCHIVEMINT_DB_PASSWORD"`
	LegacyName     string `envconfig:"ARCHIVEMINT_DB_NAME"`
	LegacySSLMode  string `envconfig:"ARCHIVEMINT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ARCHIVEMINT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ARCHIVEMINT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ARCHIVEMINT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ARCHIVEMINT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"ARCHIVEMINT_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ARCHIVEMINT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ARCHIVEMINT_REDIS_ADDR"`
	Password     string        `envconfig:"ARCHIVEMINT_REDIS_PASSWORD"`
	DB           int           `envconfig:"ARCHIVEMINT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ARCHIVEMINT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ARCHIVEMINT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ARCHIVEMINT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ARCHIVEMINT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ARCHIVEMINT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies tokens handed over by the external identity service.
// ExpirationMinutes only applies to operator tokens minted by archivectl.
type JWTConfig struct {
	Secret            string        `envconfig:"ARCHIVEMINT_JWT_SECRET" required:"true"`
	Issuer            string        `envconfig:"ARCHIVEMINT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int           `envconfig:"ARCHIVEMINT_JWT_EXPIRATION_MINUTES" default:"60"`
	Audience          string        `envconfig:"ARCHIVEMINT_JWT_AUDIENCE" default:"archivemint-api"`
	Leeway            time.Duration `envconfig:"ARCHIVEMINT_JWT_LEEWAY" default:"30s"`
}

// RateLimitConfig throttles asset registrations per user over a sliding window.
type RateLimitConfig struct {
	UploadWindow time.Duration `envconfig:"ARCHIVEMINT_RATE_LIMIT_UPLOAD_WINDOW" default:"1h"`
	UploadLimit  int           `envconfig:"ARCHIVEMINT_RATE_LIMIT_UPLOAD_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ARCHIVEMINT_AUTO_MIGRATE" default:"false"`
}

// QuotaConfig holds per-tier space limits. A negative value means unlimited.
type QuotaConfig struct {
	FreeDraft      int `envconfig:"ARCHIVEMINT_QUOTA_FREE_DRAFT" default:"25"`
	FreeArchived   int `envconfig:"ARCHIVEMINT_QUOTA_FREE_ARCHIVED" default:"5"`
	BetaDraft      int `envconfig:"ARCHIVEMINT_QUOTA_BETA_DRAFT" default:"100"`
	BetaArchived   int `envconfig:"ARCHIVEMINT_QUOTA_BETA_ARCHIVED" default:"50"`
	ProDraft       int `envconfig:"ARCHIVEMINT_QUOTA_PRO_DRAFT" default:"500"`
	ProArchived    int `envconfig:"ARCHIVEMINT_QUOTA_PRO_ARCHIVED" default:"250"`
	StudioDraft    int `envconfig:"ARCHIVEMINT_QUOTA_STUDIO_DRAFT" default:"-1"`
	StudioArchived int `envconfig:"ARCHIVEMINT_QUOTA_STUDIO_ARCHIVED" default:"-1"`
}

// PricingConfig lists mint price tiers as "<upper bound bytes>:<usd>" pairs in ascending
// order. Sizes at or above the last bound pay TopPriceUSD.
type PricingConfig struct {
	MintTiers   []string `envconfig:"ARCHIVEMINT_PRICING_MINT_TIERS" default:"10485760:2.99,52428800:4.99,104857600:9.99,262144000:19.99"`
	TopPriceUSD string   `envconfig:"ARCHIVEMINT_PRICING_TOP_PRICE_USD" default:"39.99"`
	Currency    string   `envconfig:"ARCHIVEMINT_PRICING_CURRENCY" default:"usd"`
}

type EntitlementsConfig struct {
	MonthlyFreeMints     int    `envconfig:"ARCHIVEMINT_ENTITLEMENTS_MONTHLY_FREE_MINTS" default:"10"`
	SubscriberDiscountPc int    `envconfig:"ARCHIVEMINT_ENTITLEMENTS_SUBSCRIBER_DISCOUNT_PERCENT" default:"50"`
	AnalysisPriceUSD     string `envconfig:"ARCHIVEMINT_ENTITLEMENTS_ANALYSIS_PRICE_USD" default:"0.99"`
}

type StripeConfig struct {
	APIKey            string        `envconfig:"ARCHIVEMINT_STRIPE_API_KEY"`
	Secret            string        `envconfig:"ARCHIVEMINT_STRIPE_SECRET"`
	Env               string        `envconfig:"ARCHIVEMINT_STRIPE_ENV" default:"test"`
	SuccessPath       string        `envconfig:"ARCHIVEMINT_STRIPE_SUCCESS_PATH" default:"/checkout/success"`
	CancelPath        string        `envconfig:"ARCHIVEMINT_STRIPE_CANCEL_PATH" default:"/checkout/cancel"`
	PlatformFeePc     int           `envconfig:"ARCHIVEMINT_STRIPE_PLATFORM_FEE_PERCENT" default:"10"`
	WebhookEventTTL   time.Duration `envconfig:"ARCHIVEMINT_STRIPE_WEBHOOK_EVENT_TTL" default:"720h"`
	PendingPaymentTTL time.Duration `envconfig:"ARCHIVEMINT_STRIPE_PENDING_PAYMENT_TTL" default:"720h"`
	WebhookTolerance  time.Duration `envconfig:"ARCHIVEMINT_STRIPE_WEBHOOK_TOLERANCE" default:"5m"`
	MaxNetworkRetries int64         `envconfig:"ARCHIVEMINT_STRIPE_MAX_NETWORK_RETRIES" default:"2"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type ArweaveConfig struct {
	NodeURL       string `envconfig:"ARCHIVEMINT_ARWEAVE_NODE_URL" default:"https://arweave.net"`
	GatewayURL    string `envconfig:"ARCHIVEMINT_ARWEAVE_GATEWAY_URL" default:"https://arweave.net"`
	WalletPath    string `envconfig:"ARCHIVEMINT_ARWEAVE_WALLET_PATH"`
	WalletAddress string `envconfig:"ARCHIVEMINT_ARWEAVE_WALLET_ADDRESS"`
	AppName       string `envconfig:"ARCHIVEMINT_ARWEAVE_APP_NAME" default:"ArchiveMint"`
}

type LedgerConfig struct {
	Enabled            bool              `envconfig:"ARCHIVEMINT_LEDGER_ENABLED" default:"false"`
	RPCURL             string            `envconfig:"ARCHIVEMINT_LEDGER_RPC_URL"`
	MinterKeyHex       string            `envconfig:"ARCHIVEMINT_LEDGER_MINTER_KEY"`
	TokenContract      string            `envconfig:"ARCHIVEMINT_LEDGER_TOKEN_CONTRACT"`
	MarketplaceAddress string            `envconfig:"ARCHIVEMINT_LEDGER_MARKETPLACE_ADDRESS"`
	RoyaltyRecipient   string            `envconfig:"ARCHIVEMINT_LEDGER_ROYALTY_RECIPIENT"`
	PaymentTokens      map[string]string `envconfig:"ARCHIVEMINT_LEDGER_PAYMENT_TOKENS"`
	ReceiptTimeout     time.Duration     `envconfig:"ARCHIVEMINT_LEDGER_RECEIPT_TIMEOUT" default:"3m"`
}

type PriceFeedConfig struct {
	BaseURL  string        `envconfig:"ARCHIVEMINT_PRICE_FEED_BASE_URL" default:"https://api.coingecko.com/api/v3"`
	AssetID  string        `envconfig:"ARCHIVEMINT_PRICE_FEED_ASSET_ID" default:"arweave"`
	APIKey   string        `envconfig:"ARCHIVEMINT_PRICE_FEED_API_KEY"`
	CacheTTL time.Duration `envconfig:"ARCHIVEMINT_PRICE_FEED_CACHE_TTL" default:"60s"`
}

type BalanceConfig struct {
	AvgCostPerMintUSD  string  `envconfig:"ARCHIVEMINT_BALANCE_AVG_COST_PER_MINT_USD" default:"0.05"`
	DefaultMintsPerDay float64 `envconfig:"ARCHIVEMINT_BALANCE_DEFAULT_MINTS_PER_DAY" default:"50"`
	WarningDays        float64 `envconfig:"ARCHIVEMINT_BALANCE_WARNING_DAYS" default:"7"`
	CriticalDays       float64 `envconfig:"ARCHIVEMINT_BALANCE_CRITICAL_DAYS" default:"1"`
	CriticalMints      int64   `envconfig:"ARCHIVEMINT_BALANCE_CRITICAL_MINTS" default:"5"`
	RefillTargetDays   float64 `envconfig:"ARCHIVEMINT_BALANCE_REFILL_TARGET_DAYS" default:"30"`
}

type MonitorConfig struct {
	Secret   string        `envconfig:"ARCHIVEMINT_MONITOR_SECRET"`
	Interval time.Duration `envconfig:"ARCHIVEMINT_MONITOR_INTERVAL" default:"1h"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"ARCHIVEMINT_CRON_INTERVAL" default:"15m"`
	LockTTL         time.Duration `envconfig:"ARCHIVEMINT_CRON_LOCK_TTL" default:"14m"`
	ConfirmSweepAge time.Duration `envconfig:"ARCHIVEMINT_CRON_CONFIRM_SWEEP_AGE" default:"30m"`
	ConfirmBatch    int           `envconfig:"ARCHIVEMINT_CRON_CONFIRM_BATCH" default:"100"`
}

type MintConfig struct {
	MinConfirmations    int           `envconfig:"ARCHIVEMINT_MINT_MIN_CONFIRMATIONS" default:"1"`
	ConfirmationTimeout time.Duration `envconfig:"ARCHIVEMINT_MINT_CONFIRMATION_TIMEOUT" default:"6h"`
	ConfirmPollDelay    time.Duration `envconfig:"ARCHIVEMINT_MINT_CONFIRM_POLL_DELAY" default:"2m"`
	DefaultRoyaltyBps   int           `envconfig:"ARCHIVEMINT_MINT_DEFAULT_ROYALTY_BPS" default:"500"`
	MaxRoyaltyBps       int           `envconfig:"ARCHIVEMINT_MINT_MAX_ROYALTY_BPS" default:"1000"`
	MaxContentBytes     int64         `envconfig:"ARCHIVEMINT_MINT_MAX_CONTENT_BYTES" default:"524288000"`
	LedgerByDefault     bool          `envconfig:"ARCHIVEMINT_MINT_LEDGER_BY_DEFAULT" default:"false"`
}

type ListingConfig struct {
	AllowUnconfirmed bool          `envconfig:"ARCHIVEMINT_LISTING_ALLOW_UNCONFIRMED" default:"false"`
	DefaultDuration  time.Duration `envconfig:"ARCHIVEMINT_LISTING_DEFAULT_DURATION" default:"720h"`
	MaxDuration      time.Duration `envconfig:"ARCHIVEMINT_LISTING_MAX_DURATION" default:"4380h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ARCHIVEMINT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ARCHIVEMINT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ARCHIVEMINT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"ARCHIVEMINT_GCS_BUCKET_NAME"`
}

type PubSubConfig struct {
	AlertTopic string `envconfig:"ARCHIVEMINT_PUBSUB_ALERT_TOPIC" default:"archivemint-operator-alerts"`
}

type WorkerConfig struct {
	Concurrency int `envconfig:"ARCHIVEMINT_WORKER_CONCURRENCY" default:"10"`
	MaxRetry    int `envconfig:"ARCHIVEMINT_WORKER_MAX_RETRY" default:"25"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
