package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// ScriptLoader checks that the gateway's client script can be fetched.
// A successful load is remembered; a failed one is retried on the next call.
type ScriptLoader struct {
	url    string
	client *http.Client

	mu     sync.Mutex
	loaded bool
}

func NewScriptLoader(url string, client *http.Client) *ScriptLoader {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &ScriptLoader{url: url, client: client}
}

func (l *ScriptLoader) URL() string {
	return l.url
}

func (l *ScriptLoader) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return fmt.Errorf("build script request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch gateway script: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetch gateway script: unexpected status %d", resp.StatusCode)
	}

	l.loaded = true
	return nil
}

// StaticLoader is a Loader with a fixed result, for environments without network access.
type StaticLoader struct {
	Err error
}

func (s StaticLoader) Load(context.Context) error {
	return s.Err
}
