package twitter

import (
	"context"
	"errors"
	"strconv"
	"strings"

	reach "github.com/anatolykoptev/go-reach"
)

const followersPageSize = 100

// FetchProfile fetches a user profile by handle.
func (c *Client) FetchProfile(ctx context.Context, handle string) (reach.Profile, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	variables := map[string]any{
		"screen_name":              handle,
		"withSafetyModeUserFields": true,
	}
	body, err := c.doGET(ctx, "profile", handle, userByScreenName, graphQLURL(userByScreenName, variables))
	if err != nil {
		return reach.Profile{}, err
	}
	p, err := parseUserByScreenName(body)
	if err != nil {
		kind := reach.ErrProvider
		if errors.Is(err, errUserMissing) {
			kind = reach.ErrNotFound
		}
		return reach.Profile{}, reach.NewProviderError("profile", handle, kind, err)
	}
	return p, nil
}

// FetchFollowers fetches the followers of userID page by page, in the order
// the API lists them. A limit of zero fetches every page.
func (c *Client) FetchFollowers(ctx context.Context, userID int64, limit int) ([]reach.Profile, error) {
	id := strconv.FormatInt(userID, 10)
	var users []reach.Profile
	var cursor string

	for page := 0; ; page++ {
		if page > 0 {
			if err := c.cfg.PagePacer.Pace(ctx); err != nil {
				return nil, err
			}
		}

		count := followersPageSize
		if limit > 0 {
			count = min(followersPageSize, limit-len(users))
		}
		variables := map[string]any{
			"userId":                 id,
			"count":                  count,
			"includePromotedContent": false,
		}
		if cursor != "" {
			variables["cursor"] = cursor
		}

		body, err := c.doGET(ctx, "followers", id, followers, graphQLURL(followers, variables))
		if err != nil {
			return nil, err
		}
		batch, nextCursor, err := parseUserList(body)
		if err != nil {
			return nil, reach.NewProviderError("followers", id, reach.ErrProvider, err)
		}
		users = append(users, batch...)

		if nextCursor == "" || len(batch) == 0 || (limit > 0 && len(users) >= limit) {
			break
		}
		cursor = nextCursor
	}

	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}
