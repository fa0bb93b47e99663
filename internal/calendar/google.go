package calendar

import (
	"context"
	"net/http"
	"time"

	calendarv3 "google.golang.org/api/calendar/v3"

	"github.com/teemow/calconnect/internal/google"
)

// googlePrimary is the Calendar API alias for the user's main calendar.
const googlePrimary = "primary"

type googleLister struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
}

func (g *googleLister) list(ctx context.Context, accessToken string) ([]Entry, error) {
	svc, err := google.NewCalendarService(ctx, accessToken, google.ClientOptions{
		Endpoint:   g.endpoint,
		HTTPClient: g.client,
		Timeout:    g.timeout,
	})
	if err != nil {
		return nil, err
	}

	entries := []Entry{}
	err = svc.CalendarList.List().Context(ctx).Pages(ctx, func(page *calendarv3.CalendarList) error {
		for _, item := range page.Items {
			entries = append(entries, Entry{ID: item.Id, Summary: item.Summary})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (g *googleLister) defaultSelection([]Entry) []string {
	return []string{googlePrimary}
}
