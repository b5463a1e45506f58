package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seatsync/seatsync/client"
)

// localAPI talks to the state API of a running `seatsync run`.
type localAPI struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newLocalAPI(baseURL, token string) *localAPI {
	return &localAPI{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// send performs a request and returns the raw status and body. Transport
// failures are the only errors.
func (l *localAPI) send(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, l.baseURL+"/api/v1"+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if l.token != "" {
		req.Header.Set("Authorization", "Bearer "+l.token)
	}
	// The session adopts this ID, so errors printed here match its log.
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("is `seatsync run` running? %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// do decodes a 2xx body into out; other statuses become *client.APIError.
func (l *localAPI) do(ctx context.Context, method, path string, body, out any) error {
	status, data, err := l.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	if status >= 400 {
		apiErr := &client.APIError{StatusCode: status}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Code = "unknown"
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
