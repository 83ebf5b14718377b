package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/archivemint-backend/internal/analysis"
	"github.com/angelmondragon/archivemint-backend/internal/assets"
	"github.com/angelmondragon/archivemint-backend/internal/balance"
	"github.com/angelmondragon/archivemint-backend/internal/entitlements"
	"github.com/angelmondragon/archivemint-backend/internal/listings"
	"github.com/angelmondragon/archivemint-backend/internal/mints"
	"github.com/angelmondragon/archivemint-backend/internal/payments"
	"github.com/angelmondragon/archivemint-backend/internal/quota"
	"github.com/angelmondragon/archivemint-backend/internal/users"
	pkgAuth "github.com/angelmondragon/archivemint-backend/pkg/auth"
	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/db/dbtest"
	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"github.com/angelmondragon/archivemint-backend/pkg/metrics"
)

type fixedWallet struct {
	balance *big.Float
	err     error
}

func (w *fixedWallet) Address() string { return "platform-wallet" }

func (w *fixedWallet) Balance(context.Context) (*big.Float, error) { return w.balance, w.err }

type fixedPrice struct{}

func (fixedPrice) USDPrice(context.Context, string) (decimal.Decimal, error) {
	return decimal.NewFromInt(10), nil
}

type allowAll struct{}

func (allowAll) SlidingWindowAllow(context.Context, string, int64, time.Duration) (bool, int64, error) {
	return true, 1, nil
}

type stubPayments struct {
	inputs []payments.CheckoutInput
}

func (s *stubPayments) CreateCheckout(_ context.Context, input payments.CheckoutInput) (*payments.CheckoutRef, error) {
	s.inputs = append(s.inputs, input)
	return &payments.CheckoutRef{ID: "cs_test", URL: "https://checkout.stripe.test/cs_test"}, nil
}

func (s *stubPayments) Reconcile(context.Context, *stripe.Event) error { return nil }

type stubMints struct {
	confirmed []uuid.UUID
}

func (s *stubMints) Start(_ context.Context, input mints.StartInput) (*mints.StartResult, error) {
	return &mints.StartResult{Outcome: mints.OutcomeStarted}, nil
}

func (s *stubMints) Confirm(_ context.Context, id uuid.UUID) (*models.NFT, error) {
	s.confirmed = append(s.confirmed, id)
	return &models.NFT{ID: id, Status: enums.NFTStatusAwaitingConfirmation}, mints.ErrStillPending
}

func (s *stubMints) Sync(context.Context, mints.SyncInput) (*mints.SyncResult, error) {
	return nil, errors.New("not used")
}

func (s *stubMints) Get(context.Context, uuid.UUID, uuid.UUID) (*models.NFT, error) {
	return nil, errors.New("not used")
}

type stubAnalysis struct{}

func (stubAnalysis) Authorize(_ context.Context, assetID, userID uuid.UUID) (*analysis.Grant, error) {
	return &analysis.Grant{AssetID: assetID, UserID: userID}, nil
}

type stubListings struct {
	listings.Service
	built []listings.BuildInput
}

func (s *stubListings) BuildListingTransaction(_ context.Context, input listings.BuildInput) (*listings.BuildResult, error) {
	s.built = append(s.built, input)
	return &listings.BuildResult{AssetID: input.AssetID}, nil
}

type fixture struct {
	handler  http.Handler
	cfg      *config.Config
	users    *users.Repository
	assets   *assets.Repository
	wallet   *fixedWallet
	payments *stubPayments
	mints    *stubMints
	listings *stubListings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	cfg := &config.Config{
		App:     config.AppConfig{Env: "test", PublicURL: "https://archivemint.test"},
		JWT:     config.JWTConfig{Secret: "secret", Issuer: "identity", ExpirationMinutes: 60},
		Monitor: config.MonitorConfig{Secret: "s3cret"},
	}

	userRepo := users.NewRepository(db)
	assetRepo := assets.NewRepository(db)
	mintRepo := mints.NewRepository(db)

	quotas, err := quota.NewManager(config.QuotaConfig{FreeDraft: 25, FreeArchived: 5}, userRepo, assetRepo)
	if err != nil {
		t.Fatalf("quota manager: %v", err)
	}
	pricing, err := entitlements.NewPricing(config.PricingConfig{MintTiers: []string{"10485760:2.99"}, TopPriceUSD: "9.99"})
	if err != nil {
		t.Fatalf("pricing: %v", err)
	}
	gate, err := entitlements.NewGate(entitlements.GateParams{
		Users:        userRepo,
		Mints:        mintRepo,
		Pricing:      pricing,
		Entitlements: config.EntitlementsConfig{MonthlyFreeMints: 10, SubscriberDiscountPc: 50, AnalysisPriceUSD: "0.99"},
	})
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	assetSvc, err := assets.NewService(assets.ServiceParams{
		Repo:         assetRepo,
		Quota:        quotas,
		Throttle:     allowAll{},
		UploadLimit:  20,
		UploadWindow: time.Hour,
		Logger:       logg,
	})
	if err != nil {
		t.Fatalf("asset service: %v", err)
	}

	wallet := &fixedWallet{balance: big.NewFloat(10)}
	reg := prometheus.NewRegistry()
	monitor, err := balance.NewMonitor(balance.MonitorParams{
		Wallet: wallet,
		Prices: fixedPrice{},
		Config: config.BalanceConfig{
			AvgCostPerMintUSD:  "0.05",
			DefaultMintsPerDay: 50,
			WarningDays:        7,
			CriticalDays:       1,
			CriticalMints:      5,
			RefillTargetDays:   30,
		},
		HealthTTL: time.Nanosecond,
		Metrics:   metrics.NewBalanceMetrics(reg),
		Logger:    logg,
	})
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}

	f := &fixture{
		cfg:      cfg,
		users:    userRepo,
		assets:   assetRepo,
		wallet:   wallet,
		payments: &stubPayments{},
		mints:    &stubMints{},
		listings: &stubListings{},
	}
	f.handler = NewRouter(RouterParams{
		Config:       cfg,
		Logger:       logg,
		Gatherer:     reg,
		HTTPMetrics:  metrics.NewHTTPMetrics(reg),
		Users:        userRepo,
		Assets:       assetSvc,
		Quota:        quotas,
		Entitlements: gate,
		Payments:     f.payments,
		Balance:      monitor,
		Mints:        f.mints,
		Analysis:     stubAnalysis{},
		Listings:     f.listings,
	})
	return f
}

func (f *fixture) seedUser(t *testing.T) *models.User {
	t.Helper()
	user := &models.User{Email: uuid.NewString() + "@archivemint.test"}
	if err := f.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func (f *fixture) token(t *testing.T, userID uuid.UUID, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(f.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: userID, Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (f *fixture) do(method, target, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("decode data: %v (%s)", err, envelope.Data)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(http.MethodGet, "/health/live", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/health/ready", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d", rec.Code)
	}

	f.do(http.MethodGet, "/api/v1/platform/status", "", "")
	rec := f.do(http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "archivemint_platform_mints_remaining") {
		t.Fatalf("expected balance gauges in metrics output")
	}
	if !strings.Contains(rec.Body.String(), `archivemint_http_requests_total{code="200",method="GET",route="/api/v1/platform/status"} 1`) {
		t.Fatalf("expected request counter labelled by route pattern")
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(http.MethodGet, "/api/v1/quota", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestPlatformStatusMapsHealthToHTTPStatus(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name    string
		balance *big.Float
		err     error
		code    int
		status  string
	}{
		{name: "healthy", balance: big.NewFloat(10), code: http.StatusOK, status: "healthy"},
		{name: "warning", balance: big.NewFloat(0.75), code: http.StatusOK, status: "warning"},
		{name: "critical", balance: big.NewFloat(0), code: http.StatusServiceUnavailable, status: "critical"},
		{name: "error", err: errors.New("gateway down"), code: http.StatusInternalServerError, status: "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.wallet.balance, f.wallet.err = tc.balance, tc.err

			head := f.do(http.MethodHead, "/api/v1/platform/status", "", "")
			if head.Code != tc.code {
				t.Fatalf("HEAD: expected %d got %d", tc.code, head.Code)
			}
			if head.Header().Get("X-Status") != tc.status {
				t.Fatalf("HEAD: expected X-Status %s got %s", tc.status, head.Header().Get("X-Status"))
			}
			if head.Body.Len() != 0 {
				t.Fatalf("HEAD must not carry a body")
			}

			get := f.do(http.MethodGet, "/api/v1/platform/status?avgMintsPerDay=50", "", "")
			if get.Code != tc.code {
				t.Fatalf("GET: expected %d got %d", tc.code, get.Code)
			}
			var doc map[string]any
			if err := json.Unmarshal(get.Body.Bytes(), &doc); err != nil {
				t.Fatalf("decode status: %v", err)
			}
			if doc["status"] != tc.status {
				t.Fatalf("GET: expected status %s got %v", tc.status, doc["status"])
			}
			for _, key := range []string{"balance", "estimates", "alert"} {
				if _, ok := doc[key]; !ok {
					t.Fatalf("GET: missing %s in %v", key, doc)
				}
			}
		})
	}

	f.wallet.balance, f.wallet.err = big.NewFloat(10), nil
	head := f.do(http.MethodHead, "/api/v1/platform/status", "", "")
	if head.Header().Get("X-Mints-Remaining") != "2000" || head.Header().Get("X-Days-Remaining") != "40.00" {
		t.Fatalf("unexpected estimate headers %v", head.Header())
	}
}

func TestPlatformMonitorRequiresSecret(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(http.MethodGet, "/api/v1/platform/monitor?avgMintsPerDay=20", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", rec.Code)
	}
	rec := f.do(http.MethodGet, "/api/v1/platform/monitor?avgMintsPerDay=20&secret=s3cret", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with secret, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Status") != "healthy" {
		t.Fatalf("unexpected status header %q", rec.Header().Get("X-Status"))
	}
	if rec := f.do(http.MethodGet, "/api/v1/platform/monitor?avgMintsPerDay=-3&secret=s3cret", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a negative rate, got %d", rec.Code)
	}
}

func TestAdminRoutesRequireOperator(t *testing.T) {
	f := newFixture(t)
	recordID := uuid.New()
	target := "/api/admin/v1/mints/" + recordID.String() + "/confirm"

	if rec := f.do(http.MethodPost, target, f.token(t, uuid.New(), enums.ActorRoleUser), ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a user token, got %d", rec.Code)
	}

	rec := f.do(http.MethodPost, target, f.token(t, uuid.New(), enums.ActorRoleOperator), "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 while pending, got %d (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Pending bool `json:"pending"`
	}
	decodeData(t, rec, &body)
	if !body.Pending || len(f.mints.confirmed) != 1 || f.mints.confirmed[0] != recordID {
		t.Fatalf("expected one pending confirmation of %s, got %+v", recordID, f.mints.confirmed)
	}
}

func TestAccountReportsTierAndRole(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)

	rec := f.do(http.MethodGet, "/api/v1/me", f.token(t, user.ID, enums.ActorRoleUser), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		ID             uuid.UUID      `json:"id"`
		Role           string         `json:"role"`
		Tier           enums.UserTier `json:"tier"`
		PayoutsEnabled bool           `json:"payoutsEnabled"`
	}
	decodeData(t, rec, &body)
	if body.ID != user.ID || body.Role != string(enums.ActorRoleUser) || body.Tier != enums.UserTierFree || body.PayoutsEnabled {
		t.Fatalf("unexpected account %+v", body)
	}

	if rec := f.do(http.MethodGet, "/api/v1/me", f.token(t, uuid.New(), enums.ActorRoleUser), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown account: expected 404 got %d", rec.Code)
	}
}

func TestRegisterThenCheckoutMint(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)
	token := f.token(t, user.ID, enums.ActorRoleUser)

	rec := f.do(http.MethodPost, "/api/v1/assets", token, `{
		"kind": "image",
		"name": "  Harbor at dawn ",
		"mimeType": "IMAGE/JPEG",
		"sizeBytes": 3145728,
		"storageUrl": "https://storage.googleapis.com/uploads/harbor.jpg"
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
	var asset models.Asset
	decodeData(t, rec, &asset)
	if asset.Name != "Harbor at dawn" || asset.MimeType != "image/jpeg" {
		t.Fatalf("unexpected asset %+v", asset)
	}

	rec = f.do(http.MethodGet, "/api/v1/quota", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("quota: expected 200 got %d", rec.Code)
	}
	var usage struct {
		Spaces []quota.Usage `json:"spaces"`
	}
	decodeData(t, rec, &usage)
	if len(usage.Spaces) != 2 || usage.Spaces[0].Used != 1 || usage.Spaces[0].Limit != 25 {
		t.Fatalf("unexpected usage %+v", usage.Spaces)
	}

	rec = f.do(http.MethodPost, "/api/v1/assets/"+asset.ID.String()+"/checkout", token, `{"action":"mint"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(f.payments.inputs) != 1 {
		t.Fatalf("expected one checkout session, got %d", len(f.payments.inputs))
	}
	got := f.payments.inputs[0]
	if got.Action != enums.ActionTypeMint || got.ResourceID != asset.ID || got.UserID != user.ID || got.Price.String() != "2.99" {
		t.Fatalf("unexpected checkout input %+v", got)
	}

	other := f.token(t, uuid.New(), enums.ActorRoleUser)
	if rec := f.do(http.MethodPost, "/api/v1/assets/"+asset.ID.String()+"/checkout", other, `{"action":"mint"}`); rec.Code != http.StatusForbidden && rec.Code != http.StatusNotFound {
		t.Fatalf("expected another user to be refused, got %d", rec.Code)
	}
}

func TestListingBuildRouteIsNotShadowedByListingID(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, uuid.New(), enums.ActorRoleUser)
	assetID := uuid.New()

	rec := f.do(http.MethodPost, "/api/v1/listings/onchain/build", token, `{
		"assetId": "`+assetID.String()+`",
		"price": "12.5",
		"currency": "USDC",
		"durationSeconds": 604800,
		"walletAddress": "0x00000000000000000000000000000000000000aa"
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(f.listings.built) != 1 {
		t.Fatalf("expected build to reach the service")
	}
	built := f.listings.built[0]
	if built.AssetID != assetID || built.Duration != 7*24*time.Hour || built.Price.String() != "12.5" {
		t.Fatalf("unexpected build input %+v", built)
	}
}

func (f *fixture) seedAsset(t *testing.T, ownerID uuid.UUID, status enums.ArchivalStatus) *models.Asset {
	t.Helper()
	asset := &models.Asset{
		OwnerID:        ownerID,
		ArchivalStatus: status,
		Kind:           enums.MediaKindImage,
		Name:           "Harbor at dawn",
		MimeType:       "image/jpeg",
		SizeBytes:      3 << 20,
		StorageURL:     "https://storage.googleapis.com/uploads/" + uuid.NewString() + ".jpg",
	}
	if err := f.assets.Create(context.Background(), asset); err != nil {
		t.Fatalf("create asset: %v", err)
	}
	return asset
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, rec.Body.String())
	}
	return envelope.Error.Code
}

func TestCheckoutForBetaUserOpensNoSession(t *testing.T) {
	f := newFixture(t)
	user := &models.User{Email: uuid.NewString() + "@archivemint.test", BetaAccess: true}
	if err := f.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	asset := f.seedAsset(t, user.ID, enums.ArchivalStatusNone)

	rec := f.do(http.MethodPost, "/api/v1/assets/"+asset.ID.String()+"/checkout", f.token(t, user.ID, enums.ActorRoleUser), `{"action":"mint"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Required    bool                  `json:"required"`
		Entitlement entitlements.Decision `json:"entitlement"`
		Checkout    *payments.CheckoutRef `json:"checkout"`
	}
	decodeData(t, rec, &body)
	if body.Required || body.Checkout != nil {
		t.Fatalf("beta mint must not require payment: %+v", body)
	}
	if body.Entitlement.Outcome != entitlements.OutcomeFreeBeta || body.Entitlement.Price != nil {
		t.Fatalf("unexpected entitlement %+v", body.Entitlement)
	}
	if len(f.payments.inputs) != 0 {
		t.Fatalf("expected no checkout session, got %d", len(f.payments.inputs))
	}
}

func TestCheckoutRefusesMintOfArchivedOrInFlightAsset(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)
	token := f.token(t, user.ID, enums.ActorRoleUser)

	for _, status := range []enums.ArchivalStatus{enums.ArchivalStatusArchived, enums.ArchivalStatusPending} {
		asset := f.seedAsset(t, user.ID, status)
		rec := f.do(http.MethodPost, "/api/v1/assets/"+asset.ID.String()+"/checkout", token, `{"action":"mint"}`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422 got %d (%s)", status, rec.Code, rec.Body.String())
		}
		if code := errorCode(t, rec); code != "STATE_CONFLICT" {
			t.Fatalf("%s: expected STATE_CONFLICT got %s", status, code)
		}
	}
	if len(f.payments.inputs) != 0 {
		t.Fatalf("expected no checkout session, got %d", len(f.payments.inputs))
	}
}

func TestCheckoutRefusesMintWhenArchivedSpaceIsFull(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)
	token := f.token(t, user.ID, enums.ActorRoleUser)
	for i := 0; i < 4; i++ {
		f.seedAsset(t, user.ID, enums.ArchivalStatusArchived)
	}

	asset := f.seedAsset(t, user.ID, enums.ArchivalStatusNone)
	rec := f.do(http.MethodPost, "/api/v1/assets/"+asset.ID.String()+"/checkout", token, `{"action":"mint"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("four of five archived: expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}

	f.seedAsset(t, user.ID, enums.ArchivalStatusArchived)
	rec = f.do(http.MethodPost, "/api/v1/assets/"+asset.ID.String()+"/checkout", token, `{"action":"mint"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("five of five archived: expected 403 got %d (%s)", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "QUOTA_EXCEEDED" {
		t.Fatalf("expected QUOTA_EXCEEDED got %s", code)
	}
	if len(f.payments.inputs) != 1 {
		t.Fatalf("expected only the first checkout session, got %d", len(f.payments.inputs))
	}

	rec = f.do(http.MethodPost, "/api/v1/assets/"+asset.ID.String()+"/checkout", token, `{"action":"analysis"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("analysis is not bound by the archived space: expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
}
