package integration

import (
	"fmt"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

var providers = map[AppType]Provider{
	AppGoogleMeetAndCalendar: ProviderGoogle,
	AppZoomMeeting:           ProviderZoom,
	AppOutlookCalendar:       ProviderMicrosoft,
	AppMicrosoftTeams:        ProviderMicrosoft,
}

var categories = map[AppType]Category{
	AppGoogleMeetAndCalendar: CategoryCalendarAndVideoConferencing,
	AppZoomMeeting:           CategoryVideoConferencing,
	AppOutlookCalendar:       CategoryCalendar,
	AppMicrosoftTeams:        CategoryVideoConferencing,
}

var titles = map[AppType]string{
	AppGoogleMeetAndCalendar: "Google Meet & Calendar",
	AppZoomMeeting:           "Zoom",
	AppOutlookCalendar:       "Outlook Calendar",
	AppMicrosoftTeams:        "Microsoft Teams",
}

// Default scopes requested per provider.
var (
	GoogleScopes = []string{
		"https://www.googleapis.com/auth/calendar.events",
		"https://www.googleapis.com/auth/calendar.readonly",
	}
	MicrosoftScopes = []string{
		"offline_access",
		"User.Read",
		"Calendars.ReadWrite",
		"OnlineMeetings.ReadWrite",
	}
)

// Zoom OAuth endpoints.
const (
	ZoomAuthURL  = "https://zoom.us/oauth/authorize"
	ZoomTokenURL = "https://zoom.us/oauth/token"
)

// ProviderFor returns the provider behind appType.
func ProviderFor(appType AppType) (Provider, error) {
	p, ok := providers[appType]
	if !ok {
		return "", unsupported(appType)
	}
	return p, nil
}

// CategoryFor returns the category of appType.
func CategoryFor(appType AppType) (Category, error) {
	c, ok := categories[appType]
	if !ok {
		return "", unsupported(appType)
	}
	return c, nil
}

// TitleFor returns the display title of appType.
func TitleFor(appType AppType) (string, error) {
	t, ok := titles[appType]
	if !ok {
		return "", unsupported(appType)
	}
	return t, nil
}

// IsMicrosoft reports whether appType authenticates against Microsoft.
func IsMicrosoft(appType AppType) bool {
	return providers[appType] == ProviderMicrosoft
}

func unsupported(appType AppType) *Error {
	return NewError(CodeUnsupportedAppType, "Unsupported app type", fmt.Errorf("app type %q", appType))
}

// Credentials are the per-provider OAuth client settings supplied by configuration.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// AuthURL, TokenURL and Scopes fall back to provider defaults when empty.
	AuthURL  string
	TokenURL string
	Scopes   []string
}

// Endpoint is the resolved OAuth client configuration for one provider.
type Endpoint struct {
	Provider     Provider
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	Scopes       []string
}

// Registry resolves app types to provider endpoints.
type Registry struct {
	endpoints map[Provider]Endpoint
}

// NewRegistry builds a registry from per-provider credentials and verifies it is
// total over AllAppTypes.
func NewRegistry(creds map[Provider]Credentials) (*Registry, error) {
	r := &Registry{endpoints: make(map[Provider]Endpoint, 3)}

	msEndpoint := microsoft.AzureADEndpoint("common")
	defaults := map[Provider]Endpoint{
		ProviderGoogle: {
			AuthURL:  google.Endpoint.AuthURL,
			TokenURL: google.Endpoint.TokenURL,
			Scopes:   GoogleScopes,
		},
		ProviderZoom: {
			AuthURL:  ZoomAuthURL,
			TokenURL: ZoomTokenURL,
		},
		ProviderMicrosoft: {
			AuthURL:  msEndpoint.AuthURL,
			TokenURL: msEndpoint.TokenURL,
			Scopes:   MicrosoftScopes,
		},
	}

	for p, def := range defaults {
		c := creds[p]
		ep := Endpoint{
			Provider:     p,
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURI:  c.RedirectURI,
			AuthURL:      firstNonEmpty(c.AuthURL, def.AuthURL),
			TokenURL:     firstNonEmpty(c.TokenURL, def.TokenURL),
			Scopes:       def.Scopes,
		}
		if len(c.Scopes) > 0 {
			ep.Scopes = append([]string{}, c.Scopes...)
		}
		r.endpoints[p] = ep
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks that every AppType resolves to a provider, category, title and endpoint.
func (r *Registry) Validate() error {
	for _, at := range AllAppTypes() {
		p, ok := providers[at]
		if !ok {
			return fmt.Errorf("registry: no provider for %s", at)
		}
		if _, ok := categories[at]; !ok {
			return fmt.Errorf("registry: no category for %s", at)
		}
		if _, ok := titles[at]; !ok {
			return fmt.Errorf("registry: no title for %s", at)
		}
		if _, ok := r.endpoints[p]; !ok {
			return fmt.Errorf("registry: no endpoint for provider %s", p)
		}
	}
	return nil
}

// EndpointFor returns the OAuth endpoint for appType.
func (r *Registry) EndpointFor(appType AppType) (Endpoint, error) {
	p, err := ProviderFor(appType)
	if err != nil {
		return Endpoint{}, err
	}
	return r.endpoints[p], nil
}

// Summaries returns the catalog with connection status filled in from connected.
func Summaries(connected map[AppType]bool) []IntegrationSummary {
	out := make([]IntegrationSummary, 0, len(providers))
	for _, at := range AllAppTypes() {
		out = append(out, IntegrationSummary{
			Provider:    providers[at],
			Title:       titles[at],
			AppType:     at,
			Category:    categories[at],
			IsConnected: connected[at],
		})
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
