package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tyemirov/tsession/pkg/notify"
	"github.com/tyemirov/tsession/pkg/pageguard"
	"github.com/tyemirov/tsession/pkg/sessionclient"
	"github.com/tyemirov/tsession/pkg/sessionstore"
	"go.uber.org/zap"
)

var errSessionRequired = errors.New("sessionctl: no valid session, run `sessionctl login`")

// commandNavigator treats each command as a page. Navigation cannot leave the
// current process, so it tells the user which command to run next.
type commandNavigator struct {
	page   string
	writer io.Writer
}

func (navigator *commandNavigator) CurrentPath() string {
	return navigator.page
}

func (navigator *commandNavigator) Navigate(path string) {
	_, _ = fmt.Fprintf(navigator.writer, "-> %s (run `sessionctl login`)\n", path)
	navigator.page = path
}

type sessionRuntime struct {
	settings  ClientSettings
	logger    *zap.Logger
	client    *sessionclient.Client
	presenter *notify.Presenter
	navigator *commandNavigator
	closers   []func()
}

func (runtime *sessionRuntime) Close() {
	for index := len(runtime.closers) - 1; index >= 0; index-- {
		runtime.closers[index]()
	}
}

// openSession builds a client for the command acting as the given page; an
// empty page means the login page.
var openSession = func(command *cobra.Command, page string) (*sessionRuntime, error) {
	settings, settingsErr := LoadClientSettings()
	if settingsErr != nil {
		return nil, settingsErr
	}
	logger, loggerErr := newLogger(settings.LogLevel)
	if loggerErr != nil {
		return nil, loggerErr
	}
	runtime := &sessionRuntime{settings: settings, logger: logger}
	runtime.closers = append(runtime.closers, func() { _ = logger.Sync() })

	store, storeErr := sessionstore.Open(commandContext(command), settings.StoreURL)
	if storeErr != nil {
		runtime.Close()
		return nil, storeErr
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		runtime.closers = append(runtime.closers, func() { _ = closer.Close() })
	}

	runtime.presenter = notify.NewPresenter(notify.NewTerminalSurface(command.ErrOrStderr()), notify.DefaultDismissAfter)
	runtime.closers = append(runtime.closers, runtime.presenter.Dismiss)
	if page == "" {
		page = settings.LoginPath
	}
	runtime.navigator = &commandNavigator{page: page, writer: command.ErrOrStderr()}

	client, clientErr := sessionclient.New(sessionclient.Config{
		APIBase:         settings.APIBase,
		Store:           store,
		Navigator:       runtime.navigator,
		Notifier:        runtime.presenter,
		Logger:          logger,
		LoginPath:       settings.LoginPath,
		RefreshInterval: settings.RefreshInterval,
		RedirectDelay:   settings.RedirectDelay,
	})
	if clientErr != nil {
		runtime.Close()
		return nil, clientErr
	}
	runtime.client = client
	runtime.closers = append(runtime.closers, client.Close)
	return runtime, nil
}

func commandContext(command *cobra.Command) context.Context {
	if ctx := command.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// guardPage runs the page-load check and waits for its outcome.
func guardPage(command *cobra.Command, runtime *sessionRuntime) error {
	guard := pageguard.New(runtime.client, runtime.navigator, pageguard.NewTerminalProfileView(command.OutOrStdout()), runtime.logger)
	outcome := <-guard.OnPageLoad(commandContext(command))
	runtime.logger.Debug("page guard finished",
		zap.String("code", "sessionctl.guard"),
		zap.String("page", runtime.navigator.page),
		zap.Stringer("outcome", outcome))
	switch outcome {
	case pageguard.OutcomeVerified, pageguard.OutcomeSkipped:
		return nil
	default:
		return errSessionRequired
	}
}

func newLoginCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(command *cobra.Command, arguments []string) error {
			email, _ := command.Flags().GetString("email")
			password, _ := command.Flags().GetString("password")
			if strings.TrimSpace(email) == "" || password == "" {
				return errors.New("sessionctl.login: --email and --password are required")
			}
			runtime, err := openSession(command, "")
			if err != nil {
				return err
			}
			defer runtime.Close()

			profile, loginErr := runtime.client.Login(commandContext(command), email, password)
			if loginErr != nil {
				runtime.presenter.Show(loginErr.Error(), notify.SeverityError)
				return loginErr
			}
			runtime.presenter.Show("Login realizado com sucesso", notify.SeveritySuccess)
			pageguard.NewTerminalProfileView(command.OutOrStdout()).ShowProfile(pageguard.NewProfileCard(profile))
			return nil
		},
	}
	command.Flags().String("email", "", "Account email")
	command.Flags().String("password", "", "Account password")
	return command
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session locally and on the server",
		RunE: func(command *cobra.Command, arguments []string) error {
			runtime, err := openSession(command, "/logout")
			if err != nil {
				return err
			}
			defer runtime.Close()
			runtime.client.Logout(commandContext(command))
			return nil
		},
	}
}

func newWhoAmICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Verify the stored session and show the signed-in user",
		RunE: func(command *cobra.Command, arguments []string) error {
			runtime, err := openSession(command, "/whoami")
			if err != nil {
				return err
			}
			defer runtime.Close()
			if err := guardPage(command, runtime); err != nil {
				return err
			}
			if runtime.client.RequireAdmin() {
				_, _ = fmt.Fprintln(command.OutOrStdout(), "role: administrator")
			}
			return nil
		},
	}
}

func newRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the stored credential now",
		RunE: func(command *cobra.Command, arguments []string) error {
			runtime, err := openSession(command, "/refresh")
			if err != nil {
				return err
			}
			defer runtime.Close()
			if !runtime.client.RequireAuth() {
				runtime.client.RedirectToLogin()
				return errSessionRequired
			}
			if _, refreshErr := runtime.client.RefreshCredential(commandContext(command)); refreshErr != nil {
				runtime.client.RedirectToLogin()
				return refreshErr
			}
			runtime.presenter.Show("Sessão renovada", notify.SeveritySuccess)
			return nil
		},
	}
}

func newCallCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "call <path>",
		Short: "Send an authorized request and print the JSON response",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			method, _ := command.Flags().GetString("method")
			data, _ := command.Flags().GetString("data")
			headerPairs, _ := command.Flags().GetStringArray("header")

			header, headerErr := parseHeaders(headerPairs)
			if headerErr != nil {
				return headerErr
			}
			runtime, err := openSession(command, "/call")
			if err != nil {
				return err
			}
			defer runtime.Close()
			if err := guardPage(command, runtime); err != nil {
				return err
			}

			options := &sessionclient.RequestOptions{Method: strings.ToUpper(method), Header: header}
			if data != "" {
				options.Body = strings.NewReader(data)
			}
			var response json.RawMessage
			callErr := runtime.client.APICall(commandContext(command), arguments[0], options, &response)
			if errors.Is(callErr, sessionclient.ErrSessionExpired) {
				runtime.client.RedirectToLogin()
				return callErr
			}
			if callErr != nil {
				runtime.presenter.Show(callErr.Error(), notify.SeverityError)
				return callErr
			}
			return printJSON(command.OutOrStdout(), response)
		},
	}
	command.Flags().String("method", http.MethodGet, "HTTP method")
	command.Flags().String("data", "", "Request body")
	command.Flags().StringArray("header", nil, "Extra header as Name: value (repeatable)")
	return command
}

func parseHeaders(pairs []string) (http.Header, error) {
	header := http.Header{}
	for _, pair := range pairs {
		name, value, found := strings.Cut(pair, ":")
		if !found || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("sessionctl.call: invalid header %q", pair)
		}
		header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return header, nil
}

func printJSON(writer io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(decoded)
}
