package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	reach "github.com/anatolykoptev/go-reach"
	"github.com/anatolykoptev/go-reach/twitter"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in interactively and save the provider session",
	Long: `Runs the provider login flow, asking on the terminal for the password
(when neither it nor the auth_token/ct0 cookies are configured) and for a
verification code when the account has two-factor authentication. The
session file is then reused by "reachd serve".`,
	RunE: runLogin,
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cfg, err := reach.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	pc := providerConfig(cfg, nil)
	if pc.Username == "" {
		if pc.Username, err = prompt(in, out, "Username: "); err != nil {
			return err
		}
	}
	if pc.Password == "" && (pc.AuthToken == "" || pc.CT0 == "") {
		if pc.Password, err = prompt(in, out, "Password: "); err != nil {
			return err
		}
	}
	pc.TwoFactorCode = func(context.Context) (string, error) {
		return prompt(in, out, "Verification code: ")
	}

	client, err := twitter.NewClient(pc)
	if err != nil {
		return err
	}
	if err := client.Logout(); err != nil {
		slog.Warn("could not remove previous session", slog.Any("error", err))
	}
	if err := client.Login(cmd.Context()); err != nil {
		if errors.Is(err, twitter.ErrChallenge) {
			return fmt.Errorf("%w: log in through a browser and set provider.auth_token and provider.ct0 (REACH_AUTH_TOKEN, REACH_CT0) from its cookies", err)
		}
		return err
	}
	fmt.Fprintf(out, "Session saved for %s\n", client.Username())
	return nil
}

// prompt writes label and reads one trimmed line.
func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(line), nil
}
