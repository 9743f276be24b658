package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPProvider talks to a GoTrue-style identity endpoint:
//
//	GET    {base}/user                 with the end-user bearer token
//	DELETE {base}/admin/users/{id}     with the service key
type HTTPProvider struct {
	baseURL    string
	serviceKey string
	client     *http.Client
	br         *breaker
}

func NewHTTPProvider(baseURL, serviceKey string, timeoutMs, failThreshold, openForMs int) *HTTPProvider {
	if timeoutMs <= 0 {
		timeoutMs = 3000
	}

	if failThreshold <= 0 {
		failThreshold = 3
	}

	if openForMs <= 0 {
		openForMs = 15000
	}

	return &HTTPProvider{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		client:     &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:         newBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

var _ Provider = (*HTTPProvider)(nil)

func (p *HTTPProvider) Verify(ctx context.Context, token string) (Identity, error) {
	if !p.br.allow() {
		return Identity{}, ErrUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/user", nil)
	if err != nil {
		p.br.success() // request building is a caller bug, not provider health
		return Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := p.client.Do(req)
	if err != nil {
		p.br.failure()
		return Identity{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
		p.br.success()
		var ident Identity
		if err := json.NewDecoder(res.Body).Decode(&ident); err != nil {
			return Identity{}, fmt.Errorf("decode identity: %w", err)
		}
		if ident.Subject == "" {
			return Identity{}, fmt.Errorf("identity response missing subject")
		}
		return ident, nil
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		// the provider answered; the credential is just bad
		p.br.success()
		return Identity{}, ErrUnauthorized
	default:
		p.br.failure()
		return Identity{}, fmt.Errorf("identity verify: status=%d", res.StatusCode)
	}
}

// DeleteUser removes the subject at the provider. A 404 is treated as
// already deleted so the account-deletion path stays retryable.
func (p *HTTPProvider) DeleteUser(ctx context.Context, subject string) error {
	if !p.br.allow() {
		return ErrUnavailable
	}

	u := p.baseURL + "/admin/users/" + url.PathEscape(subject)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		p.br.success()
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.serviceKey)

	res, err := p.client.Do(req)
	if err != nil {
		p.br.failure()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode/100 == 2, res.StatusCode == http.StatusNotFound:
		p.br.success()
		return nil
	default:
		p.br.failure()
		return fmt.Errorf("identity delete user: status=%d", res.StatusCode)
	}
}
