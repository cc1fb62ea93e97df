// Package app wires configuration, the wallet vault, the swap service and
// the sentinel into the walletd command tree.
package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ggonzalez94/walletd/internal/config"
	werr "github.com/ggonzalez94/walletd/internal/errors"
	"github.com/ggonzalez94/walletd/internal/execution"
	"github.com/ggonzalez94/walletd/internal/gateway"
	"github.com/ggonzalez94/walletd/internal/httpx"
	"github.com/ggonzalez94/walletd/internal/model"
	"github.com/ggonzalez94/walletd/internal/out"
	"github.com/ggonzalez94/walletd/internal/registry"
	"github.com/ggonzalez94/walletd/internal/router"
	"github.com/ggonzalez94/walletd/internal/schema"
	"github.com/ggonzalez94/walletd/internal/sentinel"
	"github.com/ggonzalez94/walletd/internal/swap"
	"github.com/ggonzalez94/walletd/internal/vault"
	"github.com/ggonzalez94/walletd/internal/version"
	"github.com/ggonzalez94/walletd/internal/wallet"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner   *Runner
	flags    config.GlobalFlags
	settings config.Settings
	log      zerolog.Logger
	root     *cobra.Command

	wallets *wallet.Service
	swaps   *swap.Service
	router  *router.Router

	storeCloser io.Closer
	stopSweep   func()
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	err = normalizeRunError(err)
	state.close()
	if err == nil {
		return 0
	}
	state.renderError(err)
	return werr.ExitCode(err)
}

func (s *runtimeState) close() {
	if s.stopSweep != nil {
		s.stopSweep()
	}
	if s.storeCloser != nil {
		_ = s.storeCloser.Close()
	}
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.Name,
		Short: "Session wallet daemon for Base",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "help", "version", "schema":
				return nil
			}
			return s.initServices()
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return werr.Wrap(werr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&s.flags.Env, "env", "", "Runtime environment (development or production)")
	cmd.PersistentFlags().StringVar(&s.flags.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&s.flags.Listen, "listen", "", "Gateway listen address")
	cmd.PersistentFlags().StringVar(&s.flags.DBPath, "db", "", "SQLite wallet store path (empty keeps wallets in memory)")
	cmd.PersistentFlags().StringVar(&s.flags.RPCURL, "rpc-url", "", "Base JSON-RPC endpoint")
	cmd.PersistentFlags().StringVar(&s.flags.MaxFeeGwei, "max-fee-gwei", "", "Cap on max fee per gas")
	cmd.PersistentFlags().StringVar(&s.flags.MaxPriorityFeeGwei, "max-priority-fee-gwei", "", "Cap on priority fee per gas")
	cmd.PersistentFlags().StringVar(&s.flags.EnableIntents, "enable-intents", "", "Allowlist of routable intents (comma-separated)")

	cmd.AddCommand(s.newServeCommand())
	cmd.AddCommand(s.newActionCommand())
	cmd.AddCommand(s.newWalletCommand())
	cmd.AddCommand(s.newBalanceCommand())
	cmd.AddCommand(s.newQuoteCommand())
	cmd.AddCommand(s.newSwapCommand())
	cmd.AddCommand(s.newSendCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// initServices builds the shared service graph once per invocation.
func (s *runtimeState) initServices() error {
	if s.router != nil {
		return nil
	}

	settings, err := config.Load(s.flags)
	if err != nil {
		return werr.Wrap(werr.CodeUsage, "load configuration", err)
	}
	s.settings = settings

	log, err := buildLogger(settings, s.runner.stderr)
	if err != nil {
		return err
	}
	s.log = log

	v, err := s.buildVault(settings)
	if err != nil {
		return err
	}

	var store wallet.Store
	if settings.DBPath == "" {
		store = wallet.NewMemoryStore()
	} else {
		db, err := wallet.OpenSQLite(settings.DBPath)
		if err != nil {
			return werr.Wrap(werr.CodeInternal, "open wallet store", err)
		}
		store = db
		s.storeCloser = db
	}

	rpcURL := settings.RPCURL
	if rpcURL == "" {
		rpcURL = registry.DefaultRPC
	}

	s.wallets = wallet.NewService(store, v, rpcURL, log)

	httpClient := httpx.New(settings.HTTPTimeout, settings.Retries)
	aggregator := swap.NewAggregator(httpClient, settings.AggregatorURL, settings.AggregatorKey)

	execOpts := execution.DefaultOptions()
	execOpts.MaxFeeGwei = settings.MaxFeeGwei
	execOpts.MaxPriorityFeeGwei = settings.MaxPriorityFeeGwei

	s.swaps = swap.NewService(s.wallets, aggregator, execOpts, log)

	screen := sentinel.New()
	for _, entry := range settings.Denylist {
		screen.Deny(entry.Address, entry.Reason)
	}

	s.router = router.New(router.Config{
		Wallets:        s.wallets,
		Swaps:          s.swaps,
		Screen:         screen,
		RPCURL:         rpcURL,
		ExecOpts:       execOpts,
		Logger:         log,
		EnabledIntents: settings.EnableIntents,
	})
	return nil
}

func (s *runtimeState) buildVault(settings config.Settings) (*vault.Vault, error) {
	key, err := settings.EncryptionKey()
	if err != nil {
		return nil, werr.Wrap(werr.CodeUsage, "load configuration", err)
	}
	if len(key) == 32 {
		v, err := vault.New(key)
		if err != nil {
			return nil, werr.Wrap(werr.CodeInternal, "init vault", err)
		}
		return v, nil
	}
	if settings.Production() {
		return nil, werr.New(werr.CodeUsage, "WALLET_ENCRYPTION_KEY is required in production")
	}
	s.log.Warn().Msg("WALLET_ENCRYPTION_KEY not set, using a throwaway development key")
	return vault.NewInsecureDev(), nil
}

func buildLogger(settings config.Settings, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(settings.LogLevel)
	if err != nil {
		return zerolog.Logger{}, werr.Wrap(werr.CodeUsage, "parse log level", err)
	}
	var sink io.Writer = w
	if !settings.Production() {
		sink = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(sink).Level(level).With().Timestamp().Logger(), nil
}

// dispatch routes one action through the same pipeline the gateway uses and
// renders the envelope. The envelope carries handler failures; a non-nil
// return here means rendering itself broke.
func (s *runtimeState) dispatch(cmd *cobra.Command, intent string, params map[string]any, sessionID, message string) error {
	action := model.ParsedAction{Intent: intent, Params: params, Confidence: 1}
	result := s.router.ExecuteAction(cmd.Context(), action, message, sessionID)
	return out.Render(s.runner.stdout, result, s.settings.OutputMode)
}

func (s *runtimeState) newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP action gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s.stopSweep = s.swaps.StartCacheSweeper(time.Minute)
			srv := gateway.New(gateway.Config{
				Router:        s.router,
				Logger:        s.log,
				RatePerSecond: s.settings.RatePerSecond,
				RateBurst:     s.settings.RateBurst,
			})
			return srv.Run(ctx, s.settings.Listen)
		},
	}
}

func (s *runtimeState) newActionCommand() *cobra.Command {
	var (
		session    string
		message    string
		intent     string
		paramsJSON string
	)
	cmd := &cobra.Command{
		Use:   "action",
		Short: "Route one classified action",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{}
			if strings.TrimSpace(paramsJSON) != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return werr.Wrap(werr.CodeUsage, "parse --params", err)
				}
			}
			return s.dispatch(cmd, intent, params, session, message)
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Session identifier")
	cmd.Flags().StringVar(&message, "message", "", "Raw user message for prompt screening")
	cmd.Flags().StringVar(&intent, "intent", "", "Classified intent")
	cmd.Flags().StringVar(&paramsJSON, "params", "", "Intent parameters as a JSON object")
	_ = cmd.MarkFlagRequired("intent")
	return cmd
}

func (s *runtimeState) newWalletCommand() *cobra.Command {
	root := &cobra.Command{Use: "wallet", Short: "Session wallet commands"}
	var session string
	root.PersistentFlags().StringVar(&session, "session", "", "Session identifier")

	create := &cobra.Command{
		Use:   "create",
		Short: "Create (or fetch) the wallet bound to a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.dispatch(cmd, model.IntentCreateWallet, nil, session, "")
		},
	}
	address := &cobra.Command{
		Use:   "address",
		Short: "Show the session wallet address",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.dispatch(cmd, model.IntentAddress, nil, session, "")
		},
	}

	export := &cobra.Command{Use: "export", Short: "Two-step private key export"}
	exportRequest := &cobra.Command{
		Use:   "request",
		Short: "Open the export confirmation window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.dispatch(cmd, model.IntentExportKey, nil, session, "")
		},
	}
	exportConfirm := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm a pending export and reveal the key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.dispatch(cmd, model.IntentConfirmExport, nil, session, "")
		},
	}
	export.AddCommand(exportRequest, exportConfirm)

	root.AddCommand(create, address, export)
	return root
}

func (s *runtimeState) newBalanceCommand() *cobra.Command {
	var (
		session string
		token   string
	)
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the session wallet balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{}
			if token != "" {
				params["token"] = token
			}
			return s.dispatch(cmd, model.IntentBalance, params, session, "")
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Session identifier")
	cmd.Flags().StringVar(&token, "token", "", "Token symbol or address (default ETH)")
	return cmd
}

func (s *runtimeState) newQuoteCommand() *cobra.Command {
	var (
		from   string
		to     string
		amount string
		fresh  bool
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Fetch an indicative swap quote",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{"from": from, "to": to, "amount": amount, "bypassCache": fresh}
			return s.dispatch(cmd, model.IntentQuote, params, "", "")
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Token to sell")
	cmd.Flags().StringVar(&to, "to", "", "Token to buy")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount to sell, in token units")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Bypass the quote cache")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (s *runtimeState) newSwapCommand() *cobra.Command {
	var (
		session string
		from    string
		to      string
		amount  string
	)
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Execute a swap from the session wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{"from": from, "to": to, "amount": amount}
			return s.dispatch(cmd, model.IntentSwap, params, session, "")
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Session identifier")
	cmd.Flags().StringVar(&from, "from", "", "Token to sell")
	cmd.Flags().StringVar(&to, "to", "", "Token to buy")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount to sell, in token units")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (s *runtimeState) newSendCommand() *cobra.Command {
	var (
		session string
		to      string
		amount  string
		token   string
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send ETH or an ERC-20 from the session wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{"to": to, "amount": amount}
			if token != "" {
				params["token"] = token
			}
			return s.dispatch(cmd, model.IntentSend, params, session, "")
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Session identifier")
	cmd.Flags().StringVar(&to, "to", "", "Recipient address")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount to send, in token units")
	cmd.Flags().StringVar(&token, "token", "", "Token symbol or address (default ETH)")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the machine-readable action catalog and CLI surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{
				"intents":  schema.Catalog(),
				"commands": schema.Describe(s.root),
			}
			enc := json.NewEncoder(s.runner.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		},
	}
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print walletd version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Version)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) renderError(err error) {
	mode := s.settings.OutputMode
	if mode != "json" && mode != "plain" {
		mode = "json"
	}
	message := err.Error()
	if typed, ok := werr.As(err); ok {
		message = typed.Message
		if typed.Cause != nil {
			message = fmt.Sprintf("%s: %v", typed.Message, typed.Cause)
		}
	}
	result := model.ActionResult{
		Success: false,
		Message: message,
		Data: map[string]any{
			"code": werr.ExitCode(err),
			"type": errorType(err),
		},
	}
	_ = out.Render(s.runner.stderr, result, mode)
}

func errorType(err error) string {
	typed, ok := werr.As(err)
	if !ok {
		return "internal_error"
	}
	switch typed.Code {
	case werr.CodeUsage:
		return "usage_error"
	case werr.CodeAuth:
		return "auth_error"
	case werr.CodeRateLimited:
		return "rate_limited"
	case werr.CodeUnavailable:
		return "upstream_unavailable"
	case werr.CodeValidation:
		return "validation_error"
	case werr.CodeNotFound:
		return "not_found"
	case werr.CodeIntegrity:
		return "integrity_error"
	case werr.CodeBlocked:
		return "blocked"
	case werr.CodeTimeout:
		return "timeout"
	default:
		return "internal_error"
	}
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := werr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return werr.Wrap(werr.CodeUsage, "invalid command input", err)
	}
	return werr.Wrap(werr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
