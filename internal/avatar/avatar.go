package avatar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	cacheTTL      = 24 * time.Hour
	fetchTimeout  = 5 * time.Second
	maxImageBytes = 2 << 20

	// MaxAgeSeconds is the client-side cache lifetime, matching cacheTTL.
	MaxAgeSeconds = 86400
)

// defaultAvatar is served when a user has no picture or the upstream fetch
// fails.
const defaultAvatar = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 64 64">` +
	`<rect width="64" height="64" rx="32" fill="#cbd5e1"/>` +
	`<circle cx="32" cy="24" r="11" fill="#64748b"/>` +
	`<path d="M10 58c2-13 10-19 22-19s20 6 22 19z" fill="#64748b"/>` +
	`</svg>`

// Image is a fetched avatar ready to serve.
type Image struct {
	Data        []byte
	ContentType string
}

// Service proxies user profile pictures, caching fetched bytes for a day so
// repeated page loads do not hammer the providers.
type Service struct {
	cache  *gocache.Cache
	client *http.Client
}

// NewService creates the avatar Service.
func NewService() *Service {
	return &Service{
		cache:  gocache.New(cacheTTL, 10*time.Minute),
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// Default returns the built-in fallback avatar.
func Default() Image {
	return Image{Data: []byte(defaultAvatar), ContentType: "image/svg+xml"}
}

// Resolve returns the avatar for the given picture URL, from cache when
// fresh. An empty URL or any upstream failure yields the default avatar;
// serving a fallback beats failing the page.
func (s *Service) Resolve(ctx context.Context, pictureURL string) Image {
	if pictureURL == "" {
		return Default()
	}

	if cached, ok := s.cache.Get(pictureURL); ok {
		return cached.(Image)
	}

	img, err := s.fetch(ctx, pictureURL)
	if err != nil {
		return Default()
	}

	s.cache.SetDefault(pictureURL, img)
	return img
}

func (s *Service) fetch(ctx context.Context, url string) (Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Image{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Image{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Image{}, fmt.Errorf("avatar fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return Image{}, err
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}

	return Image{Data: data, ContentType: contentType}, nil
}
