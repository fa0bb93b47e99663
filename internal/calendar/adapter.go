package calendar

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/teemow/calconnect/internal/instrumentation"
	"github.com/teemow/calconnect/internal/integration"
	"github.com/teemow/calconnect/internal/logging"
)

// Entry is one calendar as returned by a provider.
type Entry struct {
	ID      string
	Summary string
}

// lister fetches the raw calendar list for one provider.
type lister interface {
	list(ctx context.Context, accessToken string) ([]Entry, error)
	// defaultSelection is used when no selection has been saved yet.
	defaultSelection(entries []Entry) []string
}

// Config configures an Adapter. Zero values target the production APIs.
type Config struct {
	// GoogleEndpoint overrides the Calendar v3 base URL.
	GoogleEndpoint string
	// GraphBaseURL overrides https://graph.microsoft.com.
	GraphBaseURL string
	HTTPClient   *http.Client
	Timeout      time.Duration
	Metrics      *instrumentation.Metrics
	Logger       *slog.Logger
}

// Adapter normalizes provider calendar listings.
type Adapter struct {
	listers map[integration.Provider]lister
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// NewAdapter creates an Adapter for every provider.
func NewAdapter(cfg Config) *Adapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.GraphBaseURL == "" {
		cfg.GraphBaseURL = DefaultGraphBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Adapter{
		listers: map[integration.Provider]lister{
			integration.ProviderGoogle:    &googleLister{endpoint: cfg.GoogleEndpoint, client: cfg.HTTPClient, timeout: cfg.Timeout},
			integration.ProviderMicrosoft: &graphLister{baseURL: cfg.GraphBaseURL, client: cfg.HTTPClient},
			integration.ProviderZoom:      zoomLister{},
		},
		metrics: cfg.Metrics,
		logger:  logging.WithComponent(cfg.Logger, "calendar"),
	}
}

// ListCalendars returns the calendars of in, using accessToken, with the
// Selected flag derived from the stored selection or the provider default.
func (a *Adapter) ListCalendars(ctx context.Context, in *integration.Integration, accessToken string) ([]integration.CalendarSummary, error) {
	p, err := integration.ProviderFor(in.AppType)
	if err != nil {
		return nil, err
	}
	l, ok := a.listers[p]
	if !ok {
		return nil, integration.NewError(integration.CodeUnsupportedAppType, "Unsupported app type", nil)
	}

	ctx, span := instrumentation.StartProviderSpan(ctx, string(p), instrumentation.OperationListCalendars)
	start := time.Now()
	entries, err := l.list(ctx, accessToken)
	instrumentation.EndSpan(span, err)
	a.metrics.RecordProviderCall(ctx, string(p), instrumentation.OperationListCalendars,
		instrumentation.StatusOf(err), time.Since(start))
	if err != nil {
		a.logger.WarnContext(ctx, "listing calendars failed", logging.Provider(p), logging.Err(err))
		if _, typed := integration.AsError(err); typed {
			return nil, err
		}
		return nil, integration.NewError(integration.CodeProviderAPIFailure, "Failed to list calendars", err)
	}

	return Select(entries, in.Metadata, l.defaultSelection), nil
}

// Select marks entries as selected. A stored selection, even an empty one,
// wins over the provider default.
func Select(entries []Entry, meta integration.Metadata, defaults func([]Entry) []string) []integration.CalendarSummary {
	ids, ok := meta.SelectedCalendarIDs()
	if !ok {
		ids = defaults(entries)
	}
	chosen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		chosen[id] = struct{}{}
	}

	out := make([]integration.CalendarSummary, 0, len(entries))
	for _, e := range entries {
		_, sel := chosen[e.ID]
		out = append(out, integration.CalendarSummary{ID: e.ID, Summary: e.Summary, Selected: sel})
	}
	return out
}

type zoomLister struct{}

func (zoomLister) list(context.Context, string) ([]Entry, error) { return []Entry{}, nil }

func (zoomLister) defaultSelection([]Entry) []string { return nil }
