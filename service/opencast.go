package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/icholy/digest"
	"github.com/rs/zerolog"

	"zoom-ingest/config"
)

// Opencast is the media platform's catalog and ingest surface, consumed as an
// opaque external service.
type Opencast interface {
	EnsureSeries(ctx context.Context, creator, title string) (string, error)
	Ingest(ctx context.Context, pkg *MediaPackage) error
}

// MediaPackage is one recording submitted to the ingest endpoint.
type MediaPackage struct {
	Title    string
	Creator  string
	SeriesID string
	Flavor   string
	Filename string
	Body     io.Reader
}

type opencastClient struct {
	baseURL string
	client  *http.Client
}

func NewOpencast(cfg *config.Opencast) Opencast {
	return &opencastClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		client: &http.Client{
			Transport: &digest.Transport{
				Username: cfg.User,
				Password: cfg.Password,
			},
		},
	}
}

type seriesList struct {
	Results []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"results"`
}

// EnsureSeries returns the id of the series titled title, creating it when no
// such series exists yet. The created series grants the creator read/write
// through per-user roles.
func (o *opencastClient) EnsureSeries(ctx context.Context, creator, title string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/admin-ng/series/series.json", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Requested-Auth", "Digest")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("series lookup returned status %d", resp.StatusCode)
	}

	var list seriesList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return "", err
	}
	for _, s := range list.Results {
		if s.Title == title {
			zerolog.Ctx(ctx).Debug().Str("series_id", s.ID).Str("title", title).Msg("series found")
			return s.ID, nil
		}
	}

	return o.createSeries(ctx, creator, title)
}

func (o *opencastClient) createSeries(ctx context.Context, creator, title string) (string, error) {
	metadata := []map[string]interface{}{{
		"label":  "Opencast Series DublinCore",
		"flavor": "dublincore/series",
		"fields": []map[string]interface{}{
			{"id": "title", "value": title},
			{"id": "creator", "value": []string{creator}},
		},
	}}
	acl := []map[string]interface{}{
		{"allow": true, "action": "write", "role": "ROLE_AAI_USER_" + creator},
		{"allow": true, "action": "read", "role": "ROLE_AAI_USER_" + creator},
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	aclJSON, err := json.Marshal(acl)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("metadata", string(metadataJSON))
	form.Set("acl", string(aclJSON))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/series", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Requested-Auth", "Digest")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("series creation returned status %d", resp.StatusCode)
	}

	var created struct {
		Identifier string `json:"identifier"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", err
	}

	zerolog.Ctx(ctx).Info().Str("series_id", created.Identifier).Str("title", title).Msg("series created")
	return created.Identifier, nil
}

// Ingest streams the media package as multipart form data to
// /ingest/addMediaPackage. EnsureSeries always runs first in the transfer
// flow, so the digest challenge is already cached by the transport and the
// streamed body is not consumed by an unauthenticated first attempt.
func (o *opencastClient) Ingest(ctx context.Context, pkg *MediaPackage) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeMediaPackage(mw, pkg)
		if closeErr := mw.Close(); err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/ingest/addMediaPackage", pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Requested-Auth", "Digest")

	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("ingest returned status %d", resp.StatusCode)
	}
	return nil
}

func writeMediaPackage(mw *multipart.Writer, pkg *MediaPackage) error {
	fields := map[string]string{
		"title":    pkg.Title,
		"creator":  pkg.Creator,
		"isPartOf": pkg.SeriesID,
		"flavor":   pkg.Flavor,
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return err
		}
	}

	part, err := mw.CreateFormFile("body", pkg.Filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, pkg.Body)
	return err
}
