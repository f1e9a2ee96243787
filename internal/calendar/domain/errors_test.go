package domain_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassifyHTTPStatus(t *testing.T) {
	assert.Equal(t, domain.ErrAuthExpired, domain.ClassifyHTTPStatus(http.StatusUnauthorized))
	assert.Equal(t, domain.ErrPermissionDenied, domain.ClassifyHTTPStatus(http.StatusForbidden))
	assert.Equal(t, domain.ErrRateLimited, domain.ClassifyHTTPStatus(http.StatusTooManyRequests))
	assert.Equal(t, domain.ErrNetworkTimeout, domain.ClassifyHTTPStatus(http.StatusGatewayTimeout))
	assert.Equal(t, domain.ErrUnknown, domain.ClassifyHTTPStatus(http.StatusInternalServerError))
}

func TestProviderError_Is(t *testing.T) {
	cause := errors.New("HTTP 429")
	err := fmt.Errorf("fetch: %w", domain.NewProviderError(domain.ProviderGoogle, domain.ErrRateLimited, cause))

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, domain.ErrAuthExpired)
	assert.Equal(t, "rate_limited", domain.KindName(err))

	var pe *domain.ProviderError
	assert.True(t, errors.As(err, &pe))
	assert.True(t, pe.Retryable())
	assert.Contains(t, pe.Error(), "google")
}

func TestParseError_IsErrParse(t *testing.T) {
	err := &domain.ParseError{Provider: domain.ProviderLocal, ProviderEventID: "x", Field: "start"}
	assert.ErrorIs(t, err, domain.ErrParse)
	assert.Contains(t, err.Error(), "start")
}
