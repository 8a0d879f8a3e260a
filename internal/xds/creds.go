package xds

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// headerCredentials attaches a static header/token pair to every call.
type headerCredentials struct {
	header string
	token  string
}

func (c headerCredentials) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{c.header: c.token}, nil
}

func (c headerCredentials) RequireTransportSecurity() bool {
	return true
}

// jwtCredentials attaches a bearer JWT to every call.
type jwtCredentials struct {
	token string
}

func (c jwtCredentials) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + c.token}, nil
}

func (c jwtCredentials) RequireTransportSecurity() bool {
	return true
}

// EffectiveJwtLifetime returns the configured lifetime clamped to the
// token's own exp claim when that is sooner. The token is decoded without
// signature verification; the management server is the verifying party.
func EffectiveJwtLifetime(token string, lifetimeSeconds int) time.Duration {
	configured := time.Duration(lifetimeSeconds) * time.Second

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return configured
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return configured
	}
	untilExp := time.Until(exp.Time)
	if untilExp < 0 {
		return 0
	}
	if untilExp < configured {
		return untilExp
	}
	return configured
}
