package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/copperline-io/ferry/iox"
)

// DefaultLoginURL is the production login host.
const DefaultLoginURL = "https://login.salesforce.com"

// Session is an authenticated handle to the remote store. Owned by the
// SessionProvider; consumers only read it.
type Session struct {
	// AccessToken is the bearer token for API calls.
	AccessToken string
	// InstanceURL is the org-specific API host.
	InstanceURL string
	// IssuedAt is when the token was obtained.
	IssuedAt time.Time
}

// SessionProvider supplies and refreshes sessions. Implementations must be
// safe for use by a single run; the session is the one shared resource of
// a run and only the provider mutates it.
type SessionProvider interface {
	// Current returns a session, authenticating on first use.
	Current(ctx context.Context) (*Session, error)

	// Refresh discards any cached session and authenticates again.
	Refresh(ctx context.Context) (*Session, error)
}

// Credentials holds the OAuth username-password flow inputs.
// Loaded from the environment only; config files never carry secrets.
type Credentials struct {
	Username      string
	Password      string
	SecurityToken string
	ClientID      string
	ClientSecret  string
	LoginURL      string
}

// CredentialsFromEnv reads credentials from SALESFORCE_* environment
// variables. Returns an error wrapping ErrAuth when a required variable
// is missing.
func CredentialsFromEnv() (*Credentials, error) {
	creds := &Credentials{
		Username:      os.Getenv("SALESFORCE_USERNAME"),
		Password:      os.Getenv("SALESFORCE_PASSWORD"),
		SecurityToken: os.Getenv("SALESFORCE_SECURITY_TOKEN"),
		ClientID:      os.Getenv("SALESFORCE_CLIENT_ID"),
		ClientSecret:  os.Getenv("SALESFORCE_CLIENT_SECRET"),
		LoginURL:      os.Getenv("SALESFORCE_LOGIN_URL"),
	}
	if creds.LoginURL == "" {
		creds.LoginURL = DefaultLoginURL
	}

	var missing []string
	for _, v := range []struct{ name, value string }{
		{"SALESFORCE_USERNAME", creds.Username},
		{"SALESFORCE_PASSWORD", creds.Password},
		{"SALESFORCE_CLIENT_ID", creds.ClientID},
		{"SALESFORCE_CLIENT_SECRET", creds.ClientSecret},
	} {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing environment variables: %s", ErrAuth, strings.Join(missing, ", "))
	}

	return creds, nil
}

// OAuthSessionProvider authenticates via the OAuth username-password flow
// and caches the resulting session until Refresh is called.
type OAuthSessionProvider struct {
	creds  *Credentials
	client *http.Client

	mu      sync.Mutex
	current *Session
}

// NewOAuthSessionProvider creates a provider for the given credentials.
func NewOAuthSessionProvider(creds *Credentials, timeout time.Duration) *OAuthSessionProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OAuthSessionProvider{
		creds:  creds,
		client: &http.Client{Timeout: timeout},
	}
}

// Current implements SessionProvider.
func (p *OAuthSessionProvider) Current(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		return p.current, nil
	}
	return p.loginLocked(ctx)
}

// Refresh implements SessionProvider.
func (p *OAuthSessionProvider) Refresh(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = nil
	return p.loginLocked(ctx)
}

// loginLocked performs the token request. Caller holds p.mu.
func (p *OAuthSessionProvider) loginLocked(ctx context.Context) (*Session, error) {
	form := url.Values{
		"grant_type":    {"password"},
		"client_id":     {p.creds.ClientID},
		"client_secret": {p.creds.ClientSecret},
		"username":      {p.creds.Username},
		"password":      {p.creds.Password + p.creds.SecurityToken},
	}

	endpoint := strings.TrimSuffix(p.creds.LoginURL, "/") + "/services/oauth2/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: build token request: %v", ErrAuth, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: token request: %v", ErrAuth, err)
	}
	defer iox.DiscardClose(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read token response: %v", ErrAuth, err)
	}

	if resp.StatusCode != http.StatusOK {
		var tokenErr struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		_ = json.Unmarshal(body, &tokenErr)
		if tokenErr.Error != "" {
			return nil, fmt.Errorf("%w: %s: %s", ErrAuth, tokenErr.Error, tokenErr.Description)
		}
		return nil, fmt.Errorf("%w: token endpoint returned status %d", ErrAuth, resp.StatusCode)
	}

	var token struct {
		AccessToken string `json:"access_token"`
		InstanceURL string `json:"instance_url"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("%w: decode token response: %v", ErrAuth, err)
	}
	if token.AccessToken == "" || token.InstanceURL == "" {
		return nil, fmt.Errorf("%w: token response missing access_token or instance_url", ErrAuth)
	}

	p.current = &Session{
		AccessToken: token.AccessToken,
		InstanceURL: token.InstanceURL,
		IssuedAt:    time.Now(),
	}
	return p.current, nil
}

// Verify OAuthSessionProvider implements SessionProvider.
var _ SessionProvider = (*OAuthSessionProvider)(nil)

// StubSessionProvider is a test provider returning a fixed session and
// counting refreshes.
type StubSessionProvider struct {
	Session    *Session
	CurrentErr error
	RefreshErr error

	mu         sync.Mutex
	CurrentCnt int
	RefreshCnt int
}

// NewStubSessionProvider creates a stub with a placeholder session.
func NewStubSessionProvider() *StubSessionProvider {
	return &StubSessionProvider{
		Session: &Session{
			AccessToken: "stub-token",
			InstanceURL: "https://stub.example.com",
			IssuedAt:    time.Now(),
		},
	}
}

// Current implements SessionProvider.
func (p *StubSessionProvider) Current(_ context.Context) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CurrentCnt++
	if p.CurrentErr != nil {
		return nil, p.CurrentErr
	}
	return p.Session, nil
}

// Refresh implements SessionProvider.
func (p *StubSessionProvider) Refresh(_ context.Context) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RefreshCnt++
	if p.RefreshErr != nil {
		return nil, p.RefreshErr
	}
	return p.Session, nil
}

// Verify StubSessionProvider implements SessionProvider.
var _ SessionProvider = (*StubSessionProvider)(nil)
