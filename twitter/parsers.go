package twitter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	reach "github.com/anatolykoptev/go-reach"
)

// errUserMissing marks responses for accounts that do not exist or are
// unavailable (suspended, deactivated).
var errUserMissing = errors.New("user unavailable")

// parseUserByScreenName parses the UserByScreenName GraphQL response.
func parseUserByScreenName(body []byte) (reach.Profile, error) {
	var raw struct {
		Data struct {
			User struct {
				Result *userResult `json:"result"`
			} `json:"user"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return reach.Profile{}, fmt.Errorf("unmarshal UserByScreenName: %w", err)
	}
	if raw.Data.User.Result == nil {
		if len(raw.Errors) > 0 {
			return reach.Profile{}, fmt.Errorf("twitter API error: %s", raw.Errors[0].Message)
		}
		return reach.Profile{}, errUserMissing
	}
	return parseUserResult(*raw.Data.User.Result)
}

// parseUserList parses a Followers response page and its bottom cursor.
func parseUserList(body []byte) ([]reach.Profile, string, error) {
	var raw struct {
		Data struct {
			User struct {
				Result struct {
					Timeline struct {
						Timeline timelineObj `json:"timeline"`
					} `json:"timeline"`
				} `json:"result"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, "", fmt.Errorf("unmarshal user list: %w", err)
	}
	users, cursor := extractUsersFromTimeline(raw.Data.User.Result.Timeline.Timeline)
	return users, cursor, nil
}

// --- Timeline types ---

type timelineObj struct {
	Instructions []timelineInstruction `json:"instructions"`
}

type timelineInstruction struct {
	Type    string          `json:"type"`
	Entries []timelineEntry `json:"entries"`
	Entry   *timelineEntry  `json:"entry"`
}

type timelineEntry struct {
	EntryID string          `json:"entryId"`
	Content timelineContent `json:"content"`
}

type timelineContent struct {
	EntryType   string          `json:"entryType"`
	TypeName    string          `json:"__typename"`
	ItemContent json.RawMessage `json:"itemContent"`
	Value       string          `json:"value"`
	CursorType  string          `json:"cursorType"`
}

// userResult covers both the legacy layout and the newer one that moves the
// handle into "core" and the protected flag into "privacy".
type userResult struct {
	TypeName string `json:"__typename"`
	RestID   string `json:"rest_id"`
	Legacy   struct {
		Name           string `json:"name"`
		ScreenName     string `json:"screen_name"`
		FollowersCount int    `json:"followers_count"`
		FriendsCount   int    `json:"friends_count"`
		Protected      bool   `json:"protected"`
	} `json:"legacy"`
	Core struct {
		Name       string `json:"name"`
		ScreenName string `json:"screen_name"`
	} `json:"core"`
	Privacy struct {
		Protected bool `json:"protected"`
	} `json:"privacy"`
}

// --- Extraction helpers ---

func extractUsersFromTimeline(tl timelineObj) ([]reach.Profile, string) {
	var users []reach.Profile
	var nextCursor string

	for _, instruction := range tl.Instructions {
		entries := instruction.Entries
		if instruction.Entry != nil {
			entries = append(entries, *instruction.Entry)
		}
		for _, entry := range entries {
			if entry.Content.EntryType == "TimelineTimelineCursor" || entry.Content.TypeName == "TimelineTimelineCursor" {
				if entry.Content.CursorType == "Bottom" || strings.Contains(entry.EntryID, "cursor-bottom") {
					nextCursor = entry.Content.Value
				}
				continue
			}
			if entry.Content.ItemContent == nil {
				continue
			}
			var item struct {
				TypeName    string `json:"__typename"`
				UserResults struct {
					Result userResult `json:"result"`
				} `json:"user_results"`
			}
			if err := json.Unmarshal(entry.Content.ItemContent, &item); err != nil {
				continue
			}
			if item.TypeName != "TimelineUser" {
				continue
			}
			u, err := parseUserResult(item.UserResults.Result)
			if err != nil {
				slog.Debug("skip user parse error", slog.String("entry", entry.EntryID), slog.Any("error", err))
				continue
			}
			users = append(users, u)
		}
	}
	return users, nextCursor
}

func parseUserResult(r userResult) (reach.Profile, error) {
	if r.TypeName == "UserUnavailable" {
		return reach.Profile{}, errUserMissing
	}
	if r.RestID == "" {
		return reach.Profile{}, fmt.Errorf("empty user rest_id (typename=%s)", r.TypeName)
	}
	id, err := strconv.ParseInt(r.RestID, 10, 64)
	if err != nil {
		return reach.Profile{}, fmt.Errorf("user rest_id %q: %w", r.RestID, err)
	}

	handle := r.Legacy.ScreenName
	if handle == "" {
		handle = r.Core.ScreenName
	}
	name := r.Legacy.Name
	if name == "" {
		name = r.Core.Name
	}
	return reach.Profile{
		ID:             id,
		Handle:         handle,
		DisplayName:    name,
		FollowerCount:  r.Legacy.FollowersCount,
		FollowingCount: r.Legacy.FriendsCount,
		Private:        r.Legacy.Protected || r.Privacy.Protected,
	}, nil
}
