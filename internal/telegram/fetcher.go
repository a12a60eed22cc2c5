// Package telegram downloads user uploads through the Bot API file
// endpoints. It is the only place the bot token is used.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

type Fetcher struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewFetcher(token string) *Fetcher {
	return &Fetcher{
		token:   token,
		baseURL: "https://api.telegram.org",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type getFileResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		FilePath string `json:"file_path"`
	} `json:"result"`
}

// Fetch resolves the file id to a download path and streams the file to
// destPath.
func (f *Fetcher) Fetch(ctx context.Context, fileID, destPath string) error {
	endpoint := fmt.Sprintf("%s/bot%s/getFile?file_id=%s", f.baseURL, f.token, url.QueryEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("resolve file: %w", err)
	}
	defer resp.Body.Close()

	var meta getFileResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return fmt.Errorf("decode file metadata: %w", err)
	}
	if !meta.OK || meta.Result.FilePath == "" {
		return fmt.Errorf("file %s not available", fileID)
	}

	downloadURL := fmt.Sprintf("%s/file/bot%s/%s", f.baseURL, f.token, meta.Result.FilePath)
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return err
	}
	download, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("download file: %w", err)
	}
	defer download.Body.Close()
	if download.StatusCode != http.StatusOK {
		return fmt.Errorf("download file: status %d", download.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, download.Body); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}
