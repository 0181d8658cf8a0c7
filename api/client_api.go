// client_api.go - API-Methoden des Clients
// Enthaelt: List, Refresh, Show, Activate, Deactivate, Timers, Version
package api

import (
	"context"
	"net/http"
)

// Heartbeat prueft ob der Server erreichbar ist
func (c *Client) Heartbeat(ctx context.Context) error {
	if err := c.do(ctx, http.MethodHead, "/", nil, nil); err != nil {
		return err
	}
	return nil
}

// List fragt alle registrierten Adapter ab
func (c *Client) List(ctx context.Context) (*ListResponse, error) {
	var resp ListResponse
	if err := c.do(ctx, http.MethodGet, "/api/adapters", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh stoesst einen neuen Verzeichnis-Scan an und listet danach
func (c *Client) Refresh(ctx context.Context) (*ListResponse, error) {
	var resp ListResponse
	if err := c.do(ctx, http.MethodPost, "/api/adapters/refresh", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Show liefert Details zu einem einzelnen Adapter
func (c *Client) Show(ctx context.Context, req *ShowRequest) (*ShowResponse, error) {
	var resp ShowResponse
	if err := c.do(ctx, http.MethodPost, "/api/show", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Activate setzt das aktive Adapter-Set
func (c *Client) Activate(ctx context.Context, req *ActivateRequest) (*ActivateResponse, error) {
	var resp ActivateResponse
	if err := c.do(ctx, http.MethodPost, "/api/activate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Deactivate entfernt alle aktiven Adapter
func (c *Client) Deactivate(ctx context.Context) (*ActivateResponse, error) {
	var resp ActivateResponse
	if err := c.do(ctx, http.MethodPost, "/api/deactivate", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Timers fragt die Phasen-Zeiten der Engine ab
func (c *Client) Timers(ctx context.Context) (*TimersResponse, error) {
	var resp TimersResponse
	if err := c.do(ctx, http.MethodGet, "/api/timers", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Version gibt die Server-Version zurueck
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp VersionResponse
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}
