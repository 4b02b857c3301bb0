package twitter

import (
	"encoding/json"
	"fmt"
	"net/url"
)

const (
	twitterBase   = "https://x.com/i/api/graphql"
	twitterAPIURL = "https://api.twitter.com"
)

// BearerToken is the public web-app bearer token.
const BearerToken = "AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"

// Endpoint holds the operation ID and name of a GraphQL query.
type Endpoint struct {
	ID   string
	Name string
}

// URL returns the full URL for this endpoint.
func (e Endpoint) URL() string {
	return fmt.Sprintf("%s/%s/%s", twitterBase, e.ID, e.Name)
}

// Operations used by the provider.
var (
	userByScreenName = Endpoint{ID: "1VOOyvKkiI3FMmkeDNxM9A", Name: "UserByScreenName"}
	followers        = Endpoint{ID: "Elc_-qTARceHpztqhI9PQA", Name: "Followers"}
)

// gqlFeatures returns the feature flags the user queries are served with.
func gqlFeatures() map[string]any {
	return map[string]any{
		"hidden_profile_subscriptions_enabled":                              true,
		"profile_label_improvements_pcf_label_in_post_enabled":              false,
		"responsive_web_graphql_exclude_directive_enabled":                  true,
		"responsive_web_graphql_skip_user_profile_image_extensions_enabled": false,
		"responsive_web_graphql_timeline_navigation_enabled":                true,
		"rweb_tipjar_consumption_enabled":                                   true,
		"subscriptions_verification_info_is_identity_verified_enabled":      true,
		"subscriptions_verification_info_verified_since_enabled":            true,
		"highlights_tweets_tab_ui_enabled":                                  true,
		"creator_subscriptions_tweet_preview_api_enabled":                   true,
		"verified_phone_label_enabled":                                      false,
	}
}

// graphQLURL encodes variables and features onto the endpoint URL.
func graphQLURL(ep Endpoint, variables map[string]any) string {
	v, _ := json.Marshal(variables)
	f, _ := json.Marshal(gqlFeatures())
	q := url.Values{}
	q.Set("variables", string(v))
	q.Set("features", string(f))
	return ep.URL() + "?" + q.Encode()
}
