// Package infrastructure holds helpers shared by the provider adapters.
package infrastructure

import (
	"context"
	"errors"
	"net"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
)

// ClassifyTransportError maps an error from an HTTP round trip (no status
// received) into the provider failure taxonomy.
func ClassifyTransportError(provider domain.ProviderType, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return domain.NewProviderError(provider, domain.ErrNetworkTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return domain.NewProviderError(provider, domain.ErrUnknown, err)
}

// StatusError builds the ProviderError of a non-2xx response.
func StatusError(provider domain.ProviderType, status int, err error) error {
	return domain.NewProviderError(provider, domain.ClassifyHTTPStatus(status), err)
}
