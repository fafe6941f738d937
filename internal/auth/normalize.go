package auth

import (
	"fmt"
	"strings"
)

// Profile is the canonical identity tuple extracted from a provider's raw
// userinfo payload. ProviderAccountID is the only field guaranteed present.
type Profile struct {
	ProviderAccountID string
	Email             string
	Name              string
	LastName          string
	Picture           string
}

// profileMapping declares, per provider, where each canonical field lives in
// the raw profile. Keys are tried in order; dotted keys descend into nested
// objects (e.g. Facebook's picture.data.url).
type profileMapping struct {
	accountID []string
	email     []string
	name      []string
	lastName  []string
	picture   []string
}

var profileMappings = map[Provider]profileMapping{
	ProviderGoogle: {
		accountID: []string{"sub", "id"},
		email:     []string{"email"},
		name:      []string{"given_name", "givenName", "name"},
		lastName:  []string{"family_name", "familyName"},
		picture:   []string{"picture"},
	},
	ProviderFacebook: {
		accountID: []string{"id"},
		email:     []string{"email"},
		name:      []string{"name"},
		picture:   []string{"picture.data.url"},
	},
	ProviderLine: {
		accountID: []string{"userId", "sub"},
		name:      []string{"displayName"},
		picture:   []string{"pictureUrl"},
	},
	ProviderOkta: {
		accountID: []string{"sub"},
		email:     []string{"email"},
		name:      []string{"name", "preferred_username"},
		picture:   []string{"picture"},
	},
	ProviderAuth0: {
		accountID: []string{"sub"},
		email:     []string{"email"},
		name:      []string{"name", "nickname"},
		picture:   []string{"picture"},
	},
}

// Normalize maps a provider's raw profile into the canonical Profile. It is
// total over the five known providers; anything else is rejected.
func Normalize(provider Provider, raw map[string]any) (Profile, error) {
	mapping, ok := profileMappings[provider]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}

	accountID := firstString(raw, mapping.accountID)
	if accountID == "" {
		return Profile{}, fmt.Errorf("%w: profile missing account identifier", ErrUpstream)
	}

	return Profile{
		ProviderAccountID: accountID,
		Email:             firstString(raw, mapping.email),
		Name:              firstString(raw, mapping.name),
		LastName:          firstString(raw, mapping.lastName),
		Picture:           firstString(raw, mapping.picture),
	}, nil
}

// DisplayName derives the display name for a freshly created user: normalized
// name, then email, then a "<provider>:<accountID>" placeholder.
func (p Profile) DisplayName(provider Provider) string {
	if p.Name != "" {
		return p.Name
	}
	if p.Email != "" {
		return p.Email
	}
	return fmt.Sprintf("%s:%s", provider.Slug(), p.ProviderAccountID)
}

func firstString(raw map[string]any, keys []string) string {
	for _, key := range keys {
		if value := stringAt(raw, key); value != "" {
			return value
		}
	}
	return ""
}

func stringAt(raw map[string]any, dottedKey string) string {
	current := any(raw)
	for _, part := range strings.Split(dottedKey, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current, ok = obj[part]
		if !ok {
			return ""
		}
	}
	value, _ := current.(string)
	return value
}
