package twitter

import (
	"encoding/json"
	"strconv"
	"time"

	reach "github.com/anatolykoptev/go-reach"
)

// errorClass categorizes Twitter API error responses for targeted handling.
type errorClass int

const (
	errNone          errorClass = iota
	errBanned                   // 88: rate limit abuse
	errSuspended                // 64: account suspended
	errLocked                   // 326: account locked
	errCSRF                     // 353: csrf token mismatch
	errAuthExpired              // 32: could not authenticate
	errBlocked                  // 161: blocked from performing action
	errNotAuthorized            // 179, 219: not authorized
	errInternal                 // 131: Twitter internal error
	errUserNotFound             // 50, 63: user not found or suspended
)

// classifyError inspects a response body for known Twitter error codes.
func classifyError(body []byte) errorClass {
	var errResp struct {
		Errors []struct {
			Code int `json:"code"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &errResp) != nil || len(errResp.Errors) == 0 {
		return errNone
	}

	for _, e := range errResp.Errors {
		switch e.Code {
		case 88:
			return errBanned
		case 64:
			return errSuspended
		case 326:
			return errLocked
		case 353:
			return errCSRF
		case 32:
			return errAuthExpired
		case 161:
			return errBlocked
		case 179, 219:
			return errNotAuthorized
		case 131:
			return errInternal
		case 50, 63:
			return errUserNotFound
		}
	}
	return errNone
}

// kind maps an error class to the reach error taxonomy. Everything that says
// the session itself is unusable is an auth failure; nothing here re-logs in.
func (c errorClass) kind() error {
	switch c {
	case errBanned, errSuspended, errLocked, errAuthExpired, errBlocked, errNotAuthorized:
		return reach.ErrAuth
	case errUserNotFound:
		return reach.ErrNotFound
	default:
		return reach.ErrProvider
	}
}

func (c errorClass) String() string {
	switch c {
	case errNone:
		return "none"
	case errBanned:
		return "banned"
	case errSuspended:
		return "suspended"
	case errLocked:
		return "locked"
	case errCSRF:
		return "csrf"
	case errAuthExpired:
		return "auth expired"
	case errBlocked:
		return "blocked"
	case errNotAuthorized:
		return "not authorized"
	case errInternal:
		return "internal"
	case errUserNotFound:
		return "user not found"
	}
	return "class " + strconv.Itoa(int(c))
}

// parseRateLimitReset parses the X-Rate-Limit-Reset unix timestamp header.
// Falls back to 15 minutes from now if missing or invalid.
func parseRateLimitReset(v string) time.Time {
	if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(ts, 0)
	}
	return time.Now().Add(15 * time.Minute)
}
