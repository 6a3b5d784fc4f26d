package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"switchpac/internal/logger"
	"switchpac/internal/publishers"
)

type Publisher struct {
	// retryDelay defaults to one second.
	retryDelay time.Duration
}

type githubFileRequest struct {
	Message string `json:"message"`
	Content string `json:"content"` // Base64 encoded content
	Sha     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type githubFileResponse struct {
	Sha     string `json:"sha"`
	Content string `json:"content"`
}

func (p *Publisher) Publish(script string, config map[string]interface{}) error {
	token := publishers.String(config, "token")
	owner := publishers.String(config, "owner")
	repo := publishers.String(config, "repo")
	path := publishers.String(config, "path")
	branch := publishers.String(config, "branch")
	msg := publishers.String(config, "message")

	apiBase := publishers.String(config, "api_url")
	if apiBase == "" {
		apiBase = "https://api.github.com"
	}
	apiBase = strings.TrimRight(apiBase, "/")

	timeout := publishers.Duration(config, publishers.ParamTimeout, 30*time.Second)
	retries := publishers.Int(config, publishers.ParamRetries, 0)

	if token == "" || owner == "" || repo == "" || path == "" {
		return fmt.Errorf("git publisher requires token, owner, repo, and path")
	}
	if msg == "" {
		msg = "Update PAC script [switchpac]"
	}

	path = strings.TrimPrefix(path, "/")
	apiURL := fmt.Sprintf("%s/repos/%s/%s/contents/%s", apiBase, owner, repo, path)

	client := &http.Client{Timeout: timeout}
	if proxyStr := publishers.String(config, publishers.ParamProxyURL); proxyStr != "" {
		if u, err := url.Parse(proxyStr); err == nil {
			client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
			logger.L().Debugf("Git Publisher using proxy: %s", proxyStr)
		}
	}

	// 1. Get existing SHA
	var existing githubFileResponse
	found := false
	err := p.retry(retries, "Fetching file info", func() error {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, apiURL, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/vnd.github.v3+json")
		if branch != "" {
			q := req.URL.Query()
			q.Add("ref", branch)
			req.URL.RawQuery = q.Encode()
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			if err := json.NewDecoder(resp.Body).Decode(&existing); err != nil {
				return fmt.Errorf("failed to parse git response: %w", err)
			}
			found = true
			return nil
		case http.StatusNotFound:
			return nil
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	})
	if err != nil {
		return fmt.Errorf("git fetch failed after retries: %w", err)
	}

	if found {
		if sameContent(existing.Content, script) {
			logger.L().Infof("Git: %s is already up to date", path)
			return nil
		}
		logger.L().Debugf("Git: File exists (SHA: %s), updating...", existing.Sha)
	} else {
		logger.L().Debugf("Git: File not found, creating new...")
	}

	// 2. Upload File (PUT)
	jsonBody, _ := json.Marshal(githubFileRequest{
		Message: msg,
		Content: base64.StdEncoding.EncodeToString([]byte(script)),
		Sha:     existing.Sha,
		Branch:  branch,
	})

	err = p.retry(retries, "Uploading file", func() error {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodPut, apiURL, bytes.NewReader(jsonBody))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/vnd.github.v3+json")

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(bodyBytes))
	})
	if err != nil {
		return fmt.Errorf("git upload failed after retries: %w", err)
	}
	return nil
}

func (p *Publisher) retry(retries int, what string, fn func() error) error {
	delay := p.retryDelay
	if delay == 0 {
		delay = time.Second
	}
	var err error
	for i := 0; i <= retries; i++ {
		logger.L().Debugf("Git: %s (Attempt %d/%d)", what, i+1, retries+1)
		if err = fn(); err == nil {
			return nil
		}
		if i < retries {
			time.Sleep(delay)
		}
	}
	return err
}

// sameContent compares the API's base64 content, which is wrapped at 60
// columns, with the script about to be uploaded.
func sameContent(encoded, script string) bool {
	if encoded == "" {
		return false
	}
	encoded = strings.ReplaceAll(encoded, "\n", "")
	data, err := base64.StdEncoding.DecodeString(encoded)
	return err == nil && string(data) == script
}

func init() {
	publishers.Register("github", func() publishers.Publisher { return &Publisher{} })
}
