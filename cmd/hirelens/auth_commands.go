package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hirelens/internal/auth"
	"hirelens/internal/logging"
)

const loginTimeout = 5 * time.Minute

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var provider string
	var pasteOnly bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the scoring service",
		Long: "Prints the provider sign-in URL and waits for the callback token. " +
			"The token is accepted from the local callback listener or from a pasted callback URL.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			client, err := ctx.scoringClient(false)
			if err != nil {
				return err
			}
			authCtx, err := ctx.authContext()
			if err != nil {
				return err
			}
			if strings.TrimSpace(provider) == "" {
				provider = cfg.Auth.Provider
			}

			waitCtx, cancel := context.WithTimeout(cmd.Context(), loginTimeout)
			defer cancel()

			authURL, err := client.AuthURL(waitCtx, provider)
			if err != nil {
				return fmt.Errorf("request sign-in url: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Open this URL to sign in with %s:\n\n  %s\n\n", provider, authURL)

			var listener *auth.CallbackListener
			if !pasteOnly {
				listener, err = auth.NewCallbackListener(cfg.Auth.CallbackBind, logger)
				if err != nil {
					logging.WarnWithContext(logger, "callback listener unavailable", "callback_listen_failed",
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "paste the callback URL instead"),
					)
				} else {
					defer listener.Close()
					fmt.Fprintf(out, "Waiting for the callback on %s\n", listener.URL())
				}
			}
			fmt.Fprintln(out, "Or paste the callback URL (or token) here and press Enter:")

			token, err := awaitToken(waitCtx, listener, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := authCtx.Set(token, provider); err != nil {
				return fmt.Errorf("store token: %w", err)
			}

			name := "User"
			if claims, err := auth.ParseClaims(token); err == nil {
				name = claims.DisplayName()
			}
			fmt.Fprintf(out, "Signed in as %s\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Sign-in provider (google or github)")
	cmd.Flags().BoolVar(&pasteOnly, "paste", false, "Skip the local callback listener and read the callback URL from stdin")
	return cmd
}

// awaitToken returns the first token from the callback listener or from a
// pasted line on in. A nil listener reads from in only.
func awaitToken(ctx context.Context, listener *auth.CallbackListener, in io.Reader) (string, error) {
	type result struct {
		token string
		err   error
	}
	pasted := make(chan result, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			token, err := auth.ParseCallback(line)
			if errors.Is(err, auth.ErrNoToken) {
				continue
			}
			pasted <- result{token: token, err: err}
			return
		}
		if listener == nil {
			pasted <- result{err: auth.ErrNoToken}
		}
	}()

	var callback <-chan string
	if listener != nil {
		ch := make(chan string, 1)
		go func() {
			if token, err := listener.Wait(ctx); err == nil {
				ch <- token
			}
		}()
		callback = ch
	}

	select {
	case token := <-callback:
		return token, nil
	case r := <-pasted:
		return r.token, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("login: %w", ctx.Err())
	}
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			authCtx, err := ctx.authContext()
			if err != nil {
				return err
			}
			if err := authCtx.Clear(); err != nil {
				return fmt.Errorf("clear token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			authCtx, err := ctx.authContext()
			if err != nil {
				return err
			}
			if _, ok := authCtx.Token(); !ok {
				return errNotLoggedIn
			}

			out := cmd.OutOrStdout()
			if claims, err := authCtx.Claims(); err == nil {
				fmt.Fprintf(out, "Name:    %s\n", claims.DisplayName())
				if claims.Email != "" {
					fmt.Fprintf(out, "Email:   %s\n", claims.Email)
				}
				if !claims.ExpiresAt.IsZero() {
					fmt.Fprintf(out, "Expires: %s\n", formatTimestamp(claims.ExpiresAt))
				}
				fmt.Fprintf(out, "Expired: %s\n", yesNo(claims.Expired(time.Now())))
			}
			if offline {
				return nil
			}

			client, err := ctx.scoringClient(true)
			if err != nil {
				return err
			}
			user, err := client.Me(cmd.Context())
			if err != nil {
				return fmt.Errorf("verify session: %w", err)
			}
			fmt.Fprintf(out, "User ID: %s\n", user.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Only decode the stored token; do not contact the service")
	return cmd
}

func newQuestionsCommand(ctx *commandContext) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Fetch a batch of practice questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.scoringClient(true)
			if err != nil {
				return err
			}
			if count <= 0 {
				count = cfg.Interview.QuestionCount
			}
			questions, err := client.Questions(cmd.Context(), count)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, q := range questions {
				fmt.Fprintf(out, "%d. %s\n", i+1, q)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of questions (defaults to interview.question_count)")
	return cmd
}
