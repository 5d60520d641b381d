package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"zoom-ingest/config"
)

// CreatorResolver maps a meeting host id to the creator identity recordings
// are filed under. The webhook calls it once per event.
type CreatorResolver interface {
	ResolveCreator(ctx context.Context, hostID string) (string, error)
}

type zoomDirectory struct {
	baseURL string
	token   string
	client  *http.Client
}

type staticResolver struct {
	creator string
}

// NewCreatorResolver builds a resolver from config: the platform's user API
// when a token is configured, otherwise the fixed default creator.
func NewCreatorResolver(cfg *config.Zoom) CreatorResolver {
	if cfg.Token == "" {
		return &staticResolver{creator: cfg.DefaultCreator}
	}
	return &zoomDirectory{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		token:   cfg.Token,
		client:  http.DefaultClient,
	}
}

func (s *staticResolver) ResolveCreator(ctx context.Context, hostID string) (string, error) {
	if s.creator == "" {
		return "", fmt.Errorf("no creator configured for host %s", hostID)
	}
	return s.creator, nil
}

func (z *zoomDirectory) ResolveCreator(ctx context.Context, hostID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, z.baseURL+"/users/"+hostID, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+z.token)

	resp, err := z.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("user lookup returned status %d", resp.StatusCode)
	}

	var user struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", err
	}
	if user.Email == "" {
		return "", fmt.Errorf("user %s has no email", hostID)
	}
	return user.Email, nil
}
