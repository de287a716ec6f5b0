package config

import "strconv"

type SecurityConfig interface {
	// GetTrustedUserHeader names the header the session frontend sets with
	// the authenticated user ID. Empty disables the trusted-header
	// authenticator.
	GetTrustedUserHeader() string

	// Per-client request budgets for the resource endpoints, in requests
	// per minute.
	GetUserRateLimit() int
	GetUserDetailsRateLimit() int
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetTrustedUserHeader() string {
	return GetEnv("TRUSTED_USER_HEADER", "X-Authenticated-User")
}

func (Security) GetUserRateLimit() int {
	return getInt("RATE_LIMIT_USER", 100)
}

func (Security) GetUserDetailsRateLimit() int {
	return getInt("RATE_LIMIT_USER_DETAILS", 50)
}

func getInt(envVar string, defaultValue int) int {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return n
	}
	return defaultValue
}
