package oauth

import (
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"github.com/teemow/calconnect/internal/integration"
)

// providerFlow captures what differs between providers. The set is closed:
// flowFor has one case per integration.Provider.
type providerFlow interface {
	authStyle() oauth2.AuthStyle
	authCodeOptions(ep integration.Endpoint) []oauth2.AuthCodeOption
	exchangeOptions(ep integration.Endpoint) []oauth2.AuthCodeOption
}

type googleFlow struct{}

func (googleFlow) authStyle() oauth2.AuthStyle { return oauth2.AuthStyleInParams }

func (googleFlow) authCodeOptions(integration.Endpoint) []oauth2.AuthCodeOption {
	return []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	}
}

func (googleFlow) exchangeOptions(integration.Endpoint) []oauth2.AuthCodeOption { return nil }

// zoomFlow authenticates the client with HTTP Basic on the token endpoint.
type zoomFlow struct{}

func (zoomFlow) authStyle() oauth2.AuthStyle { return oauth2.AuthStyleInHeader }

func (zoomFlow) authCodeOptions(integration.Endpoint) []oauth2.AuthCodeOption { return nil }

func (zoomFlow) exchangeOptions(integration.Endpoint) []oauth2.AuthCodeOption { return nil }

// microsoftFlow sends client credentials and scope in the form body.
type microsoftFlow struct{}

func (microsoftFlow) authStyle() oauth2.AuthStyle { return oauth2.AuthStyleInParams }

func (microsoftFlow) authCodeOptions(integration.Endpoint) []oauth2.AuthCodeOption { return nil }

func (microsoftFlow) exchangeOptions(ep integration.Endpoint) []oauth2.AuthCodeOption {
	return []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("scope", strings.Join(ep.Scopes, " "))}
}

func flowFor(p integration.Provider) providerFlow {
	switch p {
	case integration.ProviderGoogle:
		return googleFlow{}
	case integration.ProviderZoom:
		return zoomFlow{}
	case integration.ProviderMicrosoft:
		return microsoftFlow{}
	}
	// Registry validation at startup rules this out.
	panic(fmt.Sprintf("oauth: no flow for provider %q", p))
}

func oauth2Config(ep integration.Endpoint, flow providerFlow) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     ep.ClientID,
		ClientSecret: ep.ClientSecret,
		RedirectURL:  ep.RedirectURI,
		Scopes:       ep.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   ep.AuthURL,
			TokenURL:  ep.TokenURL,
			AuthStyle: flow.authStyle(),
		},
	}
}
