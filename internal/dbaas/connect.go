package dbaas

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/edvin/dbaas/internal/config"
	"github.com/edvin/dbaas/internal/identity"
	"github.com/edvin/dbaas/internal/transport"
)

// Connect authenticates against identity, resolves the service endpoint,
// and returns a ready client. The re-auth hook replays the same credential
// when the server rejects the session with a 401.
func Connect(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	kind, err := identity.ParseEndpointKind(cfg.EndpointType)
	if err != nil {
		return nil, transport.NewError(transport.KindValidationError, "%v", err)
	}

	secret, strategy := cfg.Secret()
	cred := identity.Credential{
		AuthURL:      cfg.AuthURL,
		Username:     cfg.Username,
		Secret:       secret,
		Strategy:     identity.AuthStrategy(strategy),
		ProjectID:    cfg.ProjectID,
		ProjectName:  cfg.ProjectName,
		Region:       cfg.Region,
		ServiceType:  cfg.ServiceType,
		ServiceName:  cfg.ServiceName,
		EndpointKind: kind,
		Token:        cfg.Token,
		BypassURL:    cfg.BypassURL,
		Insecure:     cfg.Insecure,
		CABundle:     cfg.CABundle,
	}

	auth := identity.NewAuthenticator(identity.On305(cfg.Auth305Behavior), logger)
	session, err := auth.Authenticate(ctx, cred)
	if err != nil {
		return nil, err
	}

	t, err := transport.New(transport.Options{
		Session: session.Transport(),
		Reauth: func(ctx context.Context) (transport.Session, error) {
			fresh, err := auth.Authenticate(ctx, cred)
			if err != nil {
				return transport.Session{}, err
			}
			return fresh.Transport(), nil
		},
		Retries:  cfg.Retries,
		Timeout:  cfg.Timeout,
		Insecure: cfg.Insecure,
		CABundle: cfg.CABundle,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	return New(t), nil
}
