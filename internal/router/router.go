// Package router is the top-level orchestrator: every inbound action passes
// the security screens, gets a session wallet provisioned, and dispatches to
// its intent handler. Handlers never propagate errors upward; every path
// produces an ActionResult.
package router

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	werr "github.com/ggonzalez94/walletd/internal/errors"
	"github.com/ggonzalez94/walletd/internal/execution"
	"github.com/ggonzalez94/walletd/internal/model"
	"github.com/ggonzalez94/walletd/internal/policy"
	"github.com/ggonzalez94/walletd/internal/registry"
	"github.com/ggonzalez94/walletd/internal/sentinel"
	"github.com/ggonzalez94/walletd/internal/swap"
	"github.com/ggonzalez94/walletd/internal/wallet"
)

type handlerFunc func(ctx context.Context, req request) model.ActionResult

type request struct {
	action      model.ParsedAction
	userMessage string
	sessionID   string
}

type Config struct {
	Wallets  *wallet.Service
	Swaps    *swap.Service
	Screen   *sentinel.Screen
	RPCURL   string
	ExecOpts execution.Options
	Logger   zerolog.Logger

	// EnabledIntents restricts dispatch to the listed intents when non-empty.
	EnabledIntents []string
}

type Router struct {
	wallets  *wallet.Service
	swaps    *swap.Service
	screen   *sentinel.Screen
	rpcURL   string
	execOpts execution.Options
	log      zerolog.Logger
	enabled  []string
	handlers map[string]handlerFunc
}

func New(cfg Config) *Router {
	r := &Router{
		wallets:  cfg.Wallets,
		swaps:    cfg.Swaps,
		screen:   cfg.Screen,
		rpcURL:   cfg.RPCURL,
		execOpts: cfg.ExecOpts,
		log:      cfg.Logger.With().Str("component", "router").Logger(),
		enabled:  cfg.EnabledIntents,
	}
	r.handlers = map[string]handlerFunc{
		model.IntentCreateWallet:  r.handleCreateWallet,
		model.IntentAddress:       r.handleAddress,
		model.IntentBalance:       r.handleBalance,
		model.IntentQuote:         r.handleQuote,
		model.IntentSwap:          r.handleSwap,
		model.IntentSend:          r.handleSend,
		model.IntentExportKey:     r.handleExportKey,
		model.IntentConfirmExport: r.handleConfirmExport,
		model.IntentVerify:        r.handleVerify,
		model.IntentHelp:          r.handleHelp,
	}
	return r
}

// ExecuteAction runs the pipeline in its mandatory order: prompt screen,
// action screen, wallet auto-provision, dispatch. A prompt block wins over
// everything else; an action-screen warning is prepended to the handler's
// message. The router itself never retries and its only side effect is
// wallet provisioning.
func (r *Router) ExecuteAction(ctx context.Context, action model.ParsedAction, userMessage, sessionID string) model.ActionResult {
	if userMessage != "" {
		if verdict := sentinel.ScreenPrompt(userMessage); !verdict.Allowed {
			r.log.Warn().
				Strs("reasons", verdict.Reasons).
				Str("intent", action.Intent).
				Msg("prompt blocked")
			return blockedResult(model.ReasonPromptInjection, verdict.Reasons)
		}
	}

	var warning string
	addresses, tokenAddress := extractAddresses(action.Params)
	if len(addresses) > 0 || tokenAddress != "" {
		verdict := r.screen.ScreenAction(sentinel.ActionInput{
			UserMessage:  userMessage,
			Intent:       action.Intent,
			Addresses:    addresses,
			TokenAddress: tokenAddress,
			Chain:        registry.ChainSlug,
		})
		switch verdict.Risk {
		case sentinel.RiskBlock:
			r.log.Warn().
				Strs("reasons", verdict.Reasons).
				Str("intent", action.Intent).
				Msg("action blocked")
			return blockedResult(model.ReasonSentinelScreen, verdict.Reasons)
		case sentinel.RiskWarning:
			warning = "Warning: " + strings.Join(verdict.Reasons, "; ")
		}
	}

	if err := policy.CheckIntentAllowed(r.enabled, action.Intent); err != nil {
		r.log.Info().Str("intent", action.Intent).Msg("intent disabled")
		return failure(werr.UserMessage(err))
	}

	if sessionID != "" {
		if _, err := r.wallets.Create(ctx, sessionID); err != nil {
			r.log.Error().Err(err).Msg("wallet auto-provision failed")
			return failure("Could not prepare a wallet for this session. Try again.")
		}
	}

	handler, ok := r.handlers[action.Intent]
	if !ok {
		handler = r.handleUnknown
	}
	result := handler(ctx, request{action: action, userMessage: userMessage, sessionID: sessionID})
	if warning != "" {
		result.Message = warning + "\n\n" + result.Message
	}
	return result
}

func blockedResult(reason string, reasons []string) model.ActionResult {
	return model.ActionResult{
		Success: false,
		Message: "Request blocked: " + strings.Join(reasons, "; "),
		Data: map[string]any{
			model.DataKeyBlocked: true,
			model.DataKeyReason:  reason,
		},
	}
}

func failure(message string) model.ActionResult {
	return model.ActionResult{Success: false, Message: message}
}
