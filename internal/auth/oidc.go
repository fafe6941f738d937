package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
)

// IDTokenVerifier verifies ID tokens for OIDC-type providers. Verification
// only applies when the provider config carries an issuer URL; OAuth2-only
// providers and deployments without discovery skip it.
type IDTokenVerifier struct {
	mu        sync.Mutex
	verifiers map[Provider]*oidc.IDTokenVerifier
}

// NewIDTokenVerifier creates an empty verifier; per-issuer discovery happens
// lazily on first use.
func NewIDTokenVerifier() *IDTokenVerifier {
	return &IDTokenVerifier{verifiers: make(map[Provider]*oidc.IDTokenVerifier)}
}

// Verify checks the raw ID token against the provider's issuer. A missing
// token or a non-OIDC provider is not an error.
func (v *IDTokenVerifier) Verify(ctx context.Context, pc ProviderConfig, rawIDToken string) error {
	if pc.Type != TypeOIDC || pc.IssuerURL == "" || rawIDToken == "" {
		return nil
	}

	verifier, err := v.verifierFor(ctx, pc)
	if err != nil {
		return fmt.Errorf("%w: oidc discovery: %v", ErrUpstream, err)
	}

	if _, err := verifier.Verify(ctx, rawIDToken); err != nil {
		return fmt.Errorf("%w: id token verification: %v", ErrUpstream, err)
	}
	return nil
}

func (v *IDTokenVerifier) verifierFor(ctx context.Context, pc ProviderConfig) (*oidc.IDTokenVerifier, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if verifier, ok := v.verifiers[pc.Provider]; ok {
		return verifier, nil
	}

	provider, err := oidc.NewProvider(ctx, pc.IssuerURL)
	if err != nil {
		return nil, err
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: pc.OAuth.ClientID})
	v.verifiers[pc.Provider] = verifier
	return verifier, nil
}
