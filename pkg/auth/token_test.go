package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
)

func operatorConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "archivemint",
		ExpirationMinutes: 30,
		Audience:          "archivemint-api",
		Leeway:            30 * time.Second,
	}
}

func TestMintAndParseRoundTrip(t *testing.T) {
	cfg := operatorConfig()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: userID, Role: enums.ActorRoleOperator, JTI: " ops-1 "})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID())
	require.Equal(t, userID.String(), claims.Subject)
	require.Equal(t, enums.ActorRoleOperator, claims.Role)
	require.Equal(t, "ops-1", claims.ID)
	require.Equal(t, jwt.ClaimStrings{"archivemint-api"}, claims.Audience)
}

func TestParseRejects(t *testing.T) {
	cfg := operatorConfig()
	valid := func(mutate func(*config.JWTConfig), at time.Time) string {
		c := cfg
		if mutate != nil {
			mutate(&c)
		}
		token, err := MintAccessToken(c, at, AccessTokenPayload{UserID: uuid.New(), Role: enums.ActorRoleUser})
		require.NoError(t, err)
		return token
	}

	cases := map[string]string{
		"tampered signature": valid(nil, time.Now()) + "x",
		"expired":            valid(nil, time.Now().Add(-time.Hour)),
		"other issuer":       valid(func(c *config.JWTConfig) { c.Issuer = "someone-else" }, time.Now()),
		"other audience":     valid(func(c *config.JWTConfig) { c.Audience = "billing" }, time.Now()),
		"not yet valid":      valid(nil, time.Now().Add(5*time.Minute)),
	}
	for name, token := range cases {
		_, err := ParseAccessToken(cfg, token)
		require.Error(t, err, name)
	}
}

func TestParseAllowsClockSkewWithinLeeway(t *testing.T) {
	cfg := operatorConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(10*time.Second), AccessTokenPayload{UserID: uuid.New(), Role: enums.ActorRoleUser})
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, token)
	require.NoError(t, err)
}

func TestParseRejectsUnusableSubject(t *testing.T) {
	cfg := operatorConfig()
	for name, subject := range map[string]string{"missing": "", "not a uuid": "user-42", "nil uuid": uuid.Nil.String()} {
		claims := AccessTokenClaims{
			Role: enums.ActorRoleUser,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    cfg.Issuer,
				Subject:   subject,
				Audience:  jwt.ClaimStrings{cfg.Audience},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
		require.NoError(t, err)
		_, err = ParseAccessToken(cfg, signed)
		require.ErrorIs(t, err, ErrNoSubject, name)
	}
}

func TestParseRejectsTokenWithoutExpiry(t *testing.T) {
	cfg := operatorConfig()
	claims := AccessTokenClaims{
		Role: enums.ActorRoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   cfg.Issuer,
			Subject:  uuid.NewString(),
			Audience: jwt.ClaimStrings{cfg.Audience},
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, signed)
	require.Error(t, err)
}

func TestMintValidatesInput(t *testing.T) {
	cfg := operatorConfig()
	_, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New()})
	require.Error(t, err)

	_, err = MintAccessToken(cfg, time.Now(), AccessTokenPayload{Role: enums.ActorRoleUser})
	require.ErrorIs(t, err, ErrNoSubject)

	noSecret := cfg
	noSecret.Secret = ""
	_, err = MintAccessToken(noSecret, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.ActorRoleUser})
	require.ErrorIs(t, err, ErrMisconfigured)
}
