// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

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

	"github.com/AleutianAI/Patchmind/pkg/logging"
	"github.com/AleutianAI/Patchmind/services/refinery/datatypes"
)

// apiClient talks to the refinery service's HTTP API.
type apiClient struct {
	baseURL string
	http    *http.Client
	logger  *logging.Logger
}

func newAPIClient(baseURL string, logger *logging.Logger) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

// do issues one request and decodes the JSON response into out (when out
// is non-nil). Non-2xx responses are returned as errors carrying the
// server's error body.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("api request", "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (HTTP %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) createSession(ctx context.Context, owner string, demoMode bool) (*datatypes.Session, error) {
	var session datatypes.Session
	body := map[string]any{"owner": owner, "demo_mode": demoMode}
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *apiClient) getSession(ctx context.Context, id string) (*datatypes.Session, error) {
	var session datatypes.Session
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+id, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *apiClient) listSessions(ctx context.Context) ([]string, error) {
	var out struct {
		SessionIDs []string `json:"session_ids"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out.SessionIDs, nil
}

func (c *apiClient) deleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/sessions/"+id, nil, nil)
}

func (c *apiClient) attachRack(ctx context.Context, id string, rack *datatypes.Rack) error {
	return c.do(ctx, http.MethodPost, "/v1/sessions/"+id+"/rack", rack, nil)
}

func (c *apiClient) attachPatch(ctx context.Context, id string, patch *datatypes.Patch) error {
	return c.do(ctx, http.MethodPost, "/v1/sessions/"+id+"/patch", patch, nil)
}

func (c *apiClient) refine(ctx context.Context, id, feedback string) (*datatypes.RefinementResult, error) {
	var result datatypes.RefinementResult
	body := map[string]string{"feedback": feedback}
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+id+"/refine", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *apiClient) undo(ctx context.Context, id string) (*datatypes.Patch, error) {
	var out struct {
		CurrentPatch *datatypes.Patch `json:"current_patch"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+id+"/undo", nil, &out); err != nil {
		return nil, err
	}
	return out.CurrentPatch, nil
}

func (c *apiClient) clear(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/v1/sessions/"+id+"/clear", nil, nil)
}

func (c *apiClient) stats(ctx context.Context) (int, error) {
	var out struct {
		ActiveSessions int `json:"active_sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/stats", nil, &out); err != nil {
		return 0, err
	}
	return out.ActiveSessions, nil
}
