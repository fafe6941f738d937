package auth

import (
	"strings"

	"golang.org/x/oauth2"
)

// Provider identifies an external OAuth2/OIDC identity source.
type Provider string

const (
	ProviderGoogle   Provider = "GOOGLE"
	ProviderFacebook Provider = "FACEBOOK"
	ProviderLine     Provider = "LINE"
	ProviderOkta     Provider = "OKTA"
	ProviderAuth0    Provider = "AUTH0"
)

// ProviderType distinguishes plain OAuth2 providers from OIDC ones.
type ProviderType string

const (
	TypeOAuth2 ProviderType = "OAUTH2"
	TypeOIDC   ProviderType = "OIDC"
)

// ParseProvider maps a URL path segment like "google" to a Provider.
func ParseProvider(slug string) (Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(slug)) {
	case "google":
		return ProviderGoogle, true
	case "facebook":
		return ProviderFacebook, true
	case "line":
		return ProviderLine, true
	case "okta":
		return ProviderOkta, true
	case "auth0":
		return ProviderAuth0, true
	default:
		return "", false
	}
}

// Slug returns the lowercase path form of the provider.
func (p Provider) Slug() string {
	return strings.ToLower(string(p))
}

// Credentials holds the per-provider secrets handed to the registry.
type Credentials struct {
	ClientID     string
	ClientSecret string
	IssuerURL    string
	Domain       string
	Audience     string
}

// ProviderConfig is the immutable runtime configuration of one provider.
type ProviderConfig struct {
	Provider        Provider
	Type            ProviderType
	OAuth           oauth2.Config
	UserInfoURL     string
	IssuerURL       string
	ExtraAuthParams map[string]string
}

// AuthCodeURL builds the provider authorize URL for the given redirect URI
// and state payload.
func (pc ProviderConfig) AuthCodeURL(redirectURI, state string) string {
	conf := pc.OAuth
	conf.RedirectURL = redirectURI

	opts := make([]oauth2.AuthCodeOption, 0, len(pc.ExtraAuthParams))
	for key, value := range pc.ExtraAuthParams {
		if value != "" {
			opts = append(opts, oauth2.SetAuthURLParam(key, value))
		}
	}

	return conf.AuthCodeURL(state, opts...)
}

// RegistryCredentials feeds NewRegistry; zero-value entries disable the
// corresponding provider.
type RegistryCredentials struct {
	Google   Credentials
	Facebook Credentials
	Line     Credentials
	Okta     Credentials
	Auth0    Credentials
}

// Registry resolves providers to their configuration. It is immutable for the
// process lifetime.
type Registry struct {
	providers map[Provider]ProviderConfig
}

// NewRegistry builds the registry from credentials, wiring in each provider's
// well-known endpoints. Providers without a client ID are left out and will
// resolve as unsupported.
func NewRegistry(creds RegistryCredentials) *Registry {
	r := &Registry{providers: make(map[Provider]ProviderConfig)}

	if creds.Google.ClientID != "" {
		r.providers[ProviderGoogle] = ProviderConfig{
			Provider: ProviderGoogle,
			Type:     TypeOAuth2,
			OAuth: oauth2.Config{
				ClientID:     creds.Google.ClientID,
				ClientSecret: creds.Google.ClientSecret,
				Endpoint: oauth2.Endpoint{
					AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
					TokenURL: "https://oauth2.googleapis.com/token",
				},
				Scopes: []string{"openid", "email", "profile"},
			},
			UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
		}
	}

	if creds.Facebook.ClientID != "" {
		r.providers[ProviderFacebook] = ProviderConfig{
			Provider: ProviderFacebook,
			Type:     TypeOAuth2,
			OAuth: oauth2.Config{
				ClientID:     creds.Facebook.ClientID,
				ClientSecret: creds.Facebook.ClientSecret,
				Endpoint: oauth2.Endpoint{
					AuthURL:  "https://www.facebook.com/v19.0/dialog/oauth",
					TokenURL: "https://graph.facebook.com/v19.0/oauth/access_token",
				},
				Scopes: []string{"email", "public_profile"},
			},
			UserInfoURL: "https://graph.facebook.com/me?fields=id,name,email,picture",
		}
	}

	if creds.Line.ClientID != "" {
		r.providers[ProviderLine] = ProviderConfig{
			Provider: ProviderLine,
			Type:     TypeOAuth2,
			OAuth: oauth2.Config{
				ClientID:     creds.Line.ClientID,
				ClientSecret: creds.Line.ClientSecret,
				Endpoint: oauth2.Endpoint{
					AuthURL:  "https://access.line.me/oauth2/v2.1/authorize",
					TokenURL: "https://api.line.me/oauth2/v2.1/token",
				},
				Scopes: []string{"openid", "profile"},
			},
			UserInfoURL: "https://api.line.me/v2/profile",
		}
	}

	if creds.Okta.ClientID != "" && creds.Okta.IssuerURL != "" {
		issuer := strings.TrimSuffix(creds.Okta.IssuerURL, "/")
		r.providers[ProviderOkta] = ProviderConfig{
			Provider: ProviderOkta,
			Type:     TypeOIDC,
			OAuth: oauth2.Config{
				ClientID:     creds.Okta.ClientID,
				ClientSecret: creds.Okta.ClientSecret,
				Endpoint: oauth2.Endpoint{
					AuthURL:  issuer + "/v1/authorize",
					TokenURL: issuer + "/v1/token",
				},
				Scopes: []string{"openid", "profile", "email"},
			},
			UserInfoURL: issuer + "/v1/userinfo",
			IssuerURL:   issuer,
		}
	}

	if creds.Auth0.ClientID != "" && creds.Auth0.Domain != "" {
		base := "https://" + creds.Auth0.Domain
		r.providers[ProviderAuth0] = ProviderConfig{
			Provider: ProviderAuth0,
			Type:     TypeOIDC,
			OAuth: oauth2.Config{
				ClientID:     creds.Auth0.ClientID,
				ClientSecret: creds.Auth0.ClientSecret,
				Endpoint: oauth2.Endpoint{
					AuthURL:  base + "/authorize",
					TokenURL: base + "/oauth/token",
				},
				Scopes: []string{"openid", "profile", "email"},
			},
			UserInfoURL:     base + "/userinfo",
			IssuerURL:       base + "/",
			ExtraAuthParams: map[string]string{"audience": creds.Auth0.Audience},
		}
	}

	return r
}

// NewStaticRegistry builds a registry from explicit provider configurations.
// Used by tests to point providers at local fakes.
func NewStaticRegistry(configs ...ProviderConfig) *Registry {
	r := &Registry{providers: make(map[Provider]ProviderConfig, len(configs))}
	for _, pc := range configs {
		r.providers[pc.Provider] = pc
	}
	return r
}

// Lookup returns the configuration for a provider, or false when the provider
// is unknown or disabled.
func (r *Registry) Lookup(p Provider) (ProviderConfig, bool) {
	pc, ok := r.providers[p]
	return pc, ok
}

// Enabled lists the providers available in this deployment.
func (r *Registry) Enabled() []Provider {
	out := make([]Provider, 0, len(r.providers))
	for p := range r.providers {
		out = append(out, p)
	}
	return out
}
