package integration

import (
	"encoding/json"
	"time"
)

// AppType identifies a connectable third-party app.
type AppType string

const (
	AppGoogleMeetAndCalendar AppType = "GOOGLE_MEET_AND_CALENDAR"
	AppZoomMeeting           AppType = "ZOOM_MEETING"
	AppOutlookCalendar       AppType = "OUTLOOK_CALENDAR"
	AppMicrosoftTeams        AppType = "MICROSOFT_TEAMS"
)

// AllAppTypes returns every supported AppType in catalog order.
func AllAppTypes() []AppType {
	return []AppType{
		AppGoogleMeetAndCalendar,
		AppZoomMeeting,
		AppOutlookCalendar,
		AppMicrosoftTeams,
	}
}

// ParseAppType converts raw input into an AppType.
func ParseAppType(s string) (AppType, error) {
	for _, at := range AllAppTypes() {
		if string(at) == s {
			return at, nil
		}
	}
	return "", NewError(CodeUnsupportedAppType, "Invalid appType: "+s, nil)
}

// Provider is the OAuth authority behind an AppType.
type Provider string

const (
	ProviderGoogle    Provider = "GOOGLE"
	ProviderZoom      Provider = "ZOOM"
	ProviderMicrosoft Provider = "MICROSOFT"
)

// Category describes what an app offers to the scheduling product.
type Category string

const (
	CategoryCalendar                     Category = "CALENDAR"
	CategoryVideoConferencing            Category = "VIDEO_CONFERENCING"
	CategoryCalendarAndVideoConferencing Category = "CALENDAR_AND_VIDEO_CONFERENCING"
)

// Metadata keys with a documented meaning. Other keys are preserved as-is.
const (
	MetaSelectedCalendarIDs = "selectedCalendarIds"
	MetaScope               = "scope"
	MetaTokenType           = "token_type"
)

// Metadata is the free-form bag stored alongside an integration.
type Metadata map[string]any

// SelectedCalendarIDs returns the stored selection. ok is false when the key is
// absent, which callers must distinguish from an explicitly empty selection.
func (m Metadata) SelectedCalendarIDs() (ids []string, ok bool) {
	raw, ok := m[MetaSelectedCalendarIDs]
	if !ok || raw == nil {
		return nil, false
	}
	switch v := raw.(type) {
	case []string:
		return append([]string{}, v...), true
	case []any:
		ids = make([]string, 0, len(v))
		for _, item := range v {
			if s, isStr := item.(string); isStr {
				ids = append(ids, s)
			}
		}
		return ids, true
	}
	return nil, false
}

// WithSelectedCalendarIDs returns a copy of m with only the selection replaced.
func (m Metadata) WithSelectedCalendarIDs(ids []string) Metadata {
	out := m.Clone()
	if ids == nil {
		ids = []string{}
	}
	out[MetaSelectedCalendarIDs] = append([]string{}, ids...)
	return out
}

// Clone returns a shallow copy that is safe to mutate at the top level.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Integration is one user's connection to one AppType.
// At most one exists per (UserID, AppType).
type Integration struct {
	ID           string
	UserID       string
	Provider     Provider
	Category     Category
	AppType      AppType
	AccessToken  string
	RefreshToken string
	// ExpiryDate is epoch milliseconds; nil means unknown and is treated as expired.
	ExpiryDate  *int64
	Metadata    Metadata
	IsConnected bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// Version increases on every successful save and guards concurrent writers.
	Version int64
}

// Clone returns a deep enough copy for read-modify-write cycles.
func (i *Integration) Clone() *Integration {
	if i == nil {
		return nil
	}
	out := *i
	if i.ExpiryDate != nil {
		exp := *i.ExpiryDate
		out.ExpiryDate = &exp
	}
	if i.Metadata != nil {
		out.Metadata = i.Metadata.Clone()
	}
	return &out
}

// CalendarSummary is the provider-neutral shape of one calendar.
type CalendarSummary struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	Selected bool   `json:"selected"`
}

// IntegrationSummary is one catalog row as shown to a user.
type IntegrationSummary struct {
	Provider    Provider `json:"provider"`
	Title       string   `json:"title"`
	AppType     AppType  `json:"app_type"`
	Category    Category `json:"category"`
	IsConnected bool     `json:"isConnected"`
}

// EncodeMetadata serializes metadata for storage. A nil map encodes as "{}".
func EncodeMetadata(m Metadata) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// DecodeMetadata parses stored metadata. Empty input yields an empty map.
func DecodeMetadata(b []byte) (Metadata, error) {
	m := Metadata{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// MillisPtr converts t to epoch milliseconds.
func MillisPtr(t time.Time) *int64 {
	ms := t.UnixMilli()
	return &ms
}
