package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	reach "github.com/anatolykoptev/go-reach"
)

// ErrChallenge means the login flow asked for a challenge (CAPTCHA, denial)
// that cannot be answered here. Log in through a browser and seed the session.
var ErrChallenge = errors.New("login challenge cannot be completed automatically")

// Login restores the persisted session, or seeds it from AuthToken/CT0, or
// runs the login flow. Failures are *reach.ProviderError of kind ErrAuth.
func (c *Client) Login(ctx context.Context) error {
	user := c.sess.username

	authToken, ct0, err := loadSession(c.cfg.SessionDir, user, c.cfg.SessionTTL)
	if err != nil {
		slog.Warn("error loading session", slog.String("user", user), slog.Any("error", err))
	}
	if authToken != "" && ct0 != "" {
		c.sess.SetCredentials(authToken, ct0)
		slog.Info("loaded session from disk", slog.String("user", user))
		return nil
	}

	if c.cfg.AuthToken != "" && c.cfg.CT0 != "" {
		c.sess.SetCredentials(c.cfg.AuthToken, c.cfg.CT0)
		slog.Info("using provided credentials", slog.String("user", user))
		c.persist()
		return nil
	}

	if c.cfg.Password == "" {
		return reach.NewProviderError("login", user, reach.ErrAuth, errors.New("no saved session and no password"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.LoginTimeout)
	defer cancel()
	if err := c.login(ctx); err != nil {
		return reach.NewProviderError("login", user, reach.ErrAuth, err)
	}
	c.persist()
	return nil
}

// Logout forgets the session in memory and on disk.
func (c *Client) Logout() error {
	c.sess.SetCredentials("", "")
	err := os.Remove(sessionPath(sessionDir(c.cfg.SessionDir), c.sess.username))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// login performs the multi-step login flow.
func (c *Client) login(ctx context.Context) error {
	user := c.sess.username
	slog.Info("logging in", slog.String("user", user))

	guestToken, err := c.getGuestToken()
	if err != nil {
		return fmt.Errorf("get guest token: %w", err)
	}

	fr, err := c.submitFlowStep(guestToken, twitterAPIURL+"/1.1/onboarding/task.json?flow_name=login", loginFlowPayload)
	if err != nil {
		return fmt.Errorf("init login flow: %w", err)
	}

	for round := 0; round < 10 && len(fr.Subtasks) > 0; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		subtaskID := fr.Subtasks[0].SubtaskID
		slog.Debug("login subtask", slog.String("user", user), slog.String("subtask", subtaskID))

		var input string
		switch subtaskID {
		case "LoginJsInstrumentationSubtask":
			input = `"js_instrumentation":{"response":"{\"rf\":{\"a\":\"b\"},\"s\":\"s\"}","link":"next_link"}`

		case "LoginEnterUserIdentifierSSO":
			input = fmt.Sprintf(`"settings_list":{"setting_responses":[{"key":"user_identifier","response_data":{"text_data":{"result":%q}}}],"link":"next_link"}`, user)

		case "LoginEnterPassword":
			input = fmt.Sprintf(`"enter_password":{"password":%q,"link":"next_link"}`, c.cfg.Password)

		case "LoginEnterAlternateIdentifierSubtask":
			input = fmt.Sprintf(`"enter_text":{"text":%q,"link":"next_link"}`, user)

		case "LoginTwoFactorAuthChallenge", "LoginAcid":
			code, err := c.secondFactor(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", subtaskID, err)
			}
			input = fmt.Sprintf(`"enter_text":{"text":%q,"link":"next_link"}`, code)

		case "LoginArkoseChallenge", "LoginArkoseCaptcha", "LoginEnterRecaptcha", "DenyLoginSubtask":
			return fmt.Errorf("%s: %w", subtaskID, ErrChallenge)

		case "LoginSuccessSubtask", "AccountDuplicationCheck":
			slog.Debug("login flow complete", slog.String("user", user), slog.String("terminal", subtaskID))
			return c.adoptLoginCookies()

		default:
			slog.Warn("unknown login subtask, skipping", slog.String("user", user), slog.String("subtask", subtaskID))
			input = `"action_list":{"link":"next_link"}`
		}

		payload := fmt.Sprintf(`{"flow_token":%q,"subtask_inputs":[{"subtask_id":%q,%s}]}`, fr.FlowToken, subtaskID, input)
		fr, err = c.submitFlowStep(guestToken, twitterAPIURL+"/1.1/onboarding/task.json", payload)
		if err != nil {
			return fmt.Errorf("login subtask %s: %w", subtaskID, err)
		}
	}
	return c.adoptLoginCookies()
}

// secondFactor produces a verification code from the TOTP secret or, when
// none is configured, from the interactive prompt.
func (c *Client) secondFactor(ctx context.Context) (string, error) {
	if c.cfg.TOTPSecret != "" {
		code, err := totp.GenerateCode(c.cfg.TOTPSecret, time.Now())
		if err != nil {
			return "", fmt.Errorf("TOTP code generation: %w", err)
		}
		slog.Info("submitting TOTP code", slog.String("user", c.sess.username))
		return code, nil
	}
	if c.cfg.TwoFactorCode != nil {
		code, err := c.cfg.TwoFactorCode(ctx)
		if err != nil {
			return "", err
		}
		if code = strings.TrimSpace(code); code == "" {
			return "", errors.New("empty verification code")
		}
		return code, nil
	}
	return "", errors.New("verification code required but no TOTP secret or prompt configured")
}

// adoptLoginCookies copies the session cookies set during the flow.
func (c *Client) adoptLoginCookies() error {
	authToken := c.cookie("auth_token")
	if authToken == "" {
		return errors.New("login completed but no auth_token in cookies")
	}
	ct0 := c.cookie("ct0")
	if ct0 == "" {
		ct0 = GenerateCT0()
	}
	c.sess.SetCredentials(authToken, ct0)
	slog.Info("login successful", slog.String("user", c.sess.username))
	return nil
}

func (c *Client) cookie(name string) string {
	for _, origin := range []string{twitterAPIURL, "https://x.com", "https://twitter.com"} {
		if v := c.bc.GetCookieValue(origin, name); v != "" {
			return v
		}
	}
	return ""
}

// getGuestToken fetches a guest token for the login flow.
func (c *Client) getGuestToken() (string, error) {
	headers := map[string]string{
		"authorization": "Bearer " + BearerToken,
		"content-type":  "application/json",
		"user-agent":    c.sess.userAgent,
	}
	body, _, status, err := c.bc.DoWithHeaderOrder("POST", twitterAPIURL+"/1.1/guest/activate.json", headers, nil, twitterHeaderOrder)
	if err != nil {
		return "", err
	}
	if status != 200 {
		return "", fmt.Errorf("guest token: HTTP %d", status)
	}
	var resp struct {
		GuestToken string `json:"guest_token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if resp.GuestToken == "" {
		return "", errors.New("empty guest token in response")
	}
	return resp.GuestToken, nil
}

type flowResponse struct {
	FlowToken string        `json:"flow_token"`
	Subtasks  []flowSubtask `json:"subtasks"`
}

type flowSubtask struct {
	SubtaskID string `json:"subtask_id"`
}

func parseFlowResponse(body []byte) (*flowResponse, error) {
	var fr flowResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return nil, fmt.Errorf("parse flow response: %w", err)
	}
	if fr.FlowToken == "" {
		return nil, fmt.Errorf("empty flow_token in response: %s", truncateBytes(body, 200))
	}
	return &fr, nil
}

func (c *Client) submitFlowStep(guestToken, urlStr, payload string) (*flowResponse, error) {
	body, _, status, err := c.bc.DoWithHeaderOrder("POST", urlStr,
		loginFlowHeaders(guestToken, c.sess.userAgent),
		strings.NewReader(payload),
		twitterHeaderOrder,
	)
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, fmt.Errorf("flow step HTTP %d: %s", status, truncateBytes(body, 300))
	}
	return parseFlowResponse(body)
}

// loginFlowPayload starts flow_name=login with the subtask versions the web
// client advertises.
const loginFlowPayload = `{"input_flow_data":{"flow_context":{"debug_overrides":{},"start_location":{"location":"splash_screen"}}},"subtask_versions":{"action_list":2,"alert_dialog":1,"app_download_cta":1,"check_logged_in_account":1,"choice_selection":3,"contacts_live_sync_permission_prompt":0,"cta":7,"email_verification":2,"end_flow":1,"enter_date":1,"enter_email":2,"enter_password":5,"enter_phone":2,"enter_recaptcha":1,"enter_text":5,"enter_username":2,"generic_urt":3,"in_app_notification":1,"interest_picker":3,"js_instrumentation":1,"menu_dialog":1,"notifications_permission_prompt":2,"open_account":2,"open_home_timeline":1,"open_link":1,"phone_verification":4,"privacy_options":1,"security_key":3,"select_avatar":4,"select_banner":2,"settings_list":7,"show_code":1,"sign_up":2,"sign_up_review":4,"tweet_selection_urt":1,"update_users":1,"upload_media":1,"user_recommendations_list":4,"user_recommendations_urt":1,"wait_spinner":3,"web_modal":1}}`
