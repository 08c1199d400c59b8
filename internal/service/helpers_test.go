package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/Ambrosio03/TFG/internal/config"

	"github.com/shopspring/decimal"
)

const testSecret = "test_jwt_secret_32_chars_minimum!"

// pngDataURI is a 1x1 transparent PNG.
const pngDataURI = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

var ctx = context.Background()

func mustDecimal(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fourImages() []string { return []string{pngDataURI, pngDataURI, pngDataURI, pngDataURI} }

func intPtr(v int) *int { return &v }

func newTestCfg() *config.Config {
	return &config.Config{
		JWTSecret:          testSecret,
		JWTExpirationHours: 24,
		AuthRejectBlocked:  true,
	}
}

func fixedClock(t *testing.T) func() time.Time {
	t.Helper()
	now := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	return func() time.Time { return now }
}
