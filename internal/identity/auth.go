package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/dbaas/internal/transport"
)

// AuthStrategy selects the credential envelope posted to identity.
type AuthStrategy string

const (
	AuthPassword AuthStrategy = "password"
	AuthAPIKey   AuthStrategy = "apikey"
)

// On305 controls what a 305 from identity means. The historical behavior is
// ambiguous: some deployments return a new identity endpoint to retry
// against, others the resolved service endpoint. Both are supported.
type On305 string

const (
	// On305RetryIdentity treats the Location header as a replacement
	// identity endpoint and retries the credential exchange against it.
	On305RetryIdentity On305 = "retry-identity"
	// On305UseAsEndpoint treats the Location header as the resolved
	// service endpoint and uses it verbatim.
	On305UseAsEndpoint On305 = "use-as-endpoint"
)

// Credential is the immutable tuple required to authenticate.
type Credential struct {
	AuthURL      string
	Username     string
	Secret       string
	Strategy     AuthStrategy
	ProjectID    string
	ProjectName  string
	Region       string
	ServiceType  string
	ServiceName  string
	EndpointKind EndpointKind
	// Token plus BypassURL skip the identity exchange entirely.
	Token     string
	BypassURL string
	Insecure  bool
	CABundle  string
}

// Session is the authenticated state produced by the identity exchange.
type Session struct {
	Token    string
	Endpoint string
	Kind     EndpointKind
	Catalog  *ServiceCatalog
}

// Transport converts the session into the value the HTTP transport signs with.
func (s *Session) Transport() transport.Session {
	return transport.Session{Token: s.Token, Endpoint: s.Endpoint}
}

type Authenticator struct {
	httpClient *http.Client
	on305      On305
	logger     zerolog.Logger
}

func NewAuthenticator(on305 On305, logger zerolog.Logger) *Authenticator {
	if on305 == "" {
		on305 = On305RetryIdentity
	}
	return &Authenticator{
		// Redirect-class responses are followed during the identity
		// exchange only; 305 is handled explicitly below because
		// net/http does not auto-follow it.
		httpClient: &http.Client{Timeout: 30 * time.Second},
		on305:      on305,
		logger:     logger.With().Str("component", "identity").Logger(),
	}
}

type passwordCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type apiKeyCredentials struct {
	Username string `json:"username"`
	APIKey   string `json:"apiKey"`
}

type authRequest struct {
	Auth struct {
		PasswordCredentials *passwordCredentials `json:"passwordCredentials,omitempty"`
		APIKeyCredentials   *apiKeyCredentials   `json:"RAX-KSKEY:apiKeyCredentials,omitempty"`
		TenantID            string               `json:"tenantId,omitempty"`
		TenantName          string               `json:"tenantName,omitempty"`
	} `json:"auth"`
}

type authResponse struct {
	Access struct {
		Token struct {
			ID string `json:"id"`
		} `json:"token"`
		ServiceCatalog []struct {
			Name      string `json:"name"`
			Type      string `json:"type"`
			Endpoints []struct {
				Region      string `json:"region"`
				PublicURL   string `json:"publicURL"`
				AdminURL    string `json:"adminURL"`
				InternalURL string `json:"internalURL"`
			} `json:"endpoints"`
		} `json:"serviceCatalog"`
	} `json:"access"`
	Endpoints []flatEndpoint `json:"endpoints"`
}

// Authenticate exchanges the credential for a session: post the credential
// envelope, extract the token and catalog, and resolve the service endpoint.
// A pre-obtained token with a bypass URL short-circuits the exchange.
func (a *Authenticator) Authenticate(ctx context.Context, cred Credential) (*Session, error) {
	if cred.BypassURL != "" && cred.Token != "" {
		return &Session{Token: cred.Token, Endpoint: cred.BypassURL, Kind: cred.EndpointKind}, nil
	}
	return a.exchange(ctx, cred, cred.AuthURL, true)
}

func (a *Authenticator) exchange(ctx context.Context, cred Credential, authURL string, allow305 bool) (*Session, error) {
	body, err := json.Marshal(buildAuthRequest(cred))
	if err != nil {
		return nil, fmt.Errorf("marshal auth request: %w", err)
	}

	url := strings.TrimRight(authURL, "/") + "/tokens"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	a.logger.Debug().Str("auth_url", url).Str("strategy", string(cred.Strategy)).Msg("authenticating")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &transport.Error{Kind: transport.KindConnectionError,
			Message: fmt.Sprintf("identity exchange: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transport.Error{Kind: transport.KindConnectionError,
			Message: fmt.Sprintf("read identity response: %v", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUseProxy:
		location := resp.Header.Get("Location")
		if location == "" {
			return nil, &transport.Error{Kind: transport.KindAuthorizationFailure,
				Status: resp.StatusCode, Message: "305 from identity without a Location header"}
		}
		if a.on305 == On305UseAsEndpoint {
			if cred.Token == "" {
				return nil, &transport.Error{Kind: transport.KindAuthorizationFailure,
					Status: resp.StatusCode,
					Message: "305 endpoint redirect requires a pre-obtained token"}
			}
			return &Session{Token: cred.Token, Endpoint: location, Kind: cred.EndpointKind}, nil
		}
		if !allow305 {
			return nil, &transport.Error{Kind: transport.KindAuthorizationFailure,
				Status: resp.StatusCode, Message: "identity redirected more than once"}
		}
		a.logger.Debug().Str("location", location).Msg("identity 305, retrying against new endpoint")
		return a.exchange(ctx, cred, location, false)

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		e := transport.ErrorFromResponse(resp.StatusCode, resp.Header, respBody)
		e.Kind = transport.KindAuthorizationFailure
		return nil, e

	case resp.StatusCode >= 300:
		return nil, transport.ErrorFromResponse(resp.StatusCode, resp.Header, respBody)
	}

	var decoded authResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, &transport.Error{Kind: transport.KindResponseFormatError,
			Status: resp.StatusCode, Message: fmt.Sprintf("undecodable identity response: %v", err)}
	}

	token := decoded.Access.Token.ID
	if token == "" {
		token = cred.Token
	}
	if token == "" {
		return nil, &transport.Error{Kind: transport.KindResponseFormatError,
			Status: resp.StatusCode, Message: "identity response carries no token"}
	}

	catalog := catalogFromResponse(&decoded)

	endpoint := cred.BypassURL
	if endpoint == "" {
		endpoint, err = ResolveEndpoint(catalog, cred.ServiceType, cred.ServiceName, cred.Region, cred.EndpointKind)
		if err != nil {
			return nil, err
		}
	}

	return &Session{Token: token, Endpoint: endpoint, Kind: cred.EndpointKind, Catalog: catalog}, nil
}

func buildAuthRequest(cred Credential) *authRequest {
	req := &authRequest{}
	if cred.Strategy == AuthAPIKey {
		req.Auth.APIKeyCredentials = &apiKeyCredentials{Username: cred.Username, APIKey: cred.Secret}
	} else {
		req.Auth.PasswordCredentials = &passwordCredentials{Username: cred.Username, Password: cred.Secret}
	}
	if cred.ProjectID != "" {
		req.Auth.TenantID = cred.ProjectID
	} else if cred.ProjectName != "" {
		req.Auth.TenantName = cred.ProjectName
	}
	return req
}

func catalogFromResponse(resp *authResponse) *ServiceCatalog {
	if len(resp.Access.ServiceCatalog) > 0 {
		catalog := &ServiceCatalog{}
		for _, s := range resp.Access.ServiceCatalog {
			svc := Service{Name: s.Name, Type: s.Type}
			for _, e := range s.Endpoints {
				svc.Endpoints = append(svc.Endpoints, Endpoint{
					Region:      e.Region,
					PublicURL:   e.PublicURL,
					AdminURL:    e.AdminURL,
					InternalURL: e.InternalURL,
				})
			}
			catalog.Services = append(catalog.Services, svc)
		}
		return catalog
	}
	return catalogFromFlat(resp.Endpoints)
}
