package config

import (
	"strconv"
	"time"
)

type OAuthConfig interface {
	GetAuthCodeTTL() time.Duration
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetRefreshRotation() bool
	GetSigningSecret() string
	GetAudience() string
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetAuthCodeTTL() time.Duration {
	return getDuration("OAUTH_CODE_TTL", 10*time.Minute)
}

func (OAuth) GetAccessTokenExpiry() time.Duration {
	return getDuration("OAUTH_ACCESS_TOKEN_TTL", 24*time.Hour)
}

func (OAuth) GetRefreshTokenExpiry() time.Duration {
	return getDuration("OAUTH_REFRESH_TOKEN_TTL", 30*24*time.Hour)
}

// GetRefreshRotation reports whether a successful refresh invalidates the
// presented refresh token and issues a replacement. Defaults to on.
func (OAuth) GetRefreshRotation() bool {
	return GetEnv("OAUTH_REFRESH_ROTATION", "on") != "off"
}

func (OAuth) GetSigningSecret() string {
	return GetEnv("OAUTH_SIGNING_SECRET", "")
}

func (OAuth) GetAudience() string {
	return GetEnv("OAUTH_AUDIENCE", "mubarokah-api")
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
