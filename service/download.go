package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Downloader fetches a recording file from the meeting platform. The access
// token travels as a query credential, the way the platform's download links
// expect it.
type Downloader interface {
	Fetch(ctx context.Context, downloadURL, token string) (io.ReadCloser, error)
}

type httpDownloader struct {
	client *http.Client
}

func NewDownloader() Downloader {
	return &httpDownloader{client: http.DefaultClient}
}

func (d *httpDownloader) Fetch(ctx context.Context, downloadURL, token string) (io.ReadCloser, error) {
	u, err := url.Parse(downloadURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
