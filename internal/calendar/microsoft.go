package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/teemow/calconnect/internal/integration"
)

// DefaultGraphBaseURL is the Microsoft Graph root.
const DefaultGraphBaseURL = "https://graph.microsoft.com"

// maxGraphPages guards against a provider returning a nextLink cycle.
const maxGraphPages = 50

type graphLister struct {
	baseURL string
	client  *http.Client
}

type graphCalendarPage struct {
	Value []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

func (g *graphLister) list(ctx context.Context, accessToken string) ([]Entry, error) {
	base, err := url.Parse(g.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse graph base url: %w", err)
	}
	next := strings.TrimRight(g.baseURL, "/") + "/v1.0/me/calendars"
	entries := []Entry{}

	for page := 0; next != ""; page++ {
		if page == maxGraphPages {
			return nil, graphFailure(fmt.Errorf("more than %d pages of calendars", maxGraphPages))
		}
		p, err := g.fetch(ctx, next, accessToken)
		if err != nil {
			return nil, err
		}
		for _, c := range p.Value {
			entries = append(entries, Entry{ID: c.ID, Summary: c.Name})
		}
		next = p.NextLink
		if next != "" && !sameOrigin(base, next) {
			// The access token is only ever sent to the configured Graph host.
			return nil, graphFailure(fmt.Errorf("nextLink leaves %s", base.Host))
		}
	}
	return entries, nil
}

func sameOrigin(base *url.URL, raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == base.Scheme && strings.EqualFold(u.Host, base.Host)
}

func graphFailure(err error) *integration.Error {
	return integration.NewError(integration.CodeProviderAPIFailure, "Failed to list Outlook calendars", err)
}

func (g *graphLister) fetch(ctx context.Context, url, accessToken string) (*graphCalendarPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, graphFailure(fmt.Errorf("graph returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var page graphCalendarPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode graph response: %w", err)
	}
	return &page, nil
}

func (g *graphLister) defaultSelection(entries []Entry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}
