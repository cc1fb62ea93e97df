// Package sentinel screens inbound requests before any handler runs: raw
// user text for manipulation patterns, and structured action parameters for
// risky targets. Verdicts are computed from fixed tables, so identical
// inputs always produce identical verdicts.
package sentinel

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ggonzalez94/walletd/internal/model"
	"github.com/ggonzalez94/walletd/internal/registry"
)

// Risk orders action verdicts from benign to fatal. Block always stops
// execution; warning lets it proceed with the reasons surfaced to the user.
type Risk string

const (
	RiskOK      Risk = "ok"
	RiskWarning Risk = "warning"
	RiskBlock   Risk = "block"
)

type PromptVerdict struct {
	Allowed bool
	Reasons []string
}

type ActionVerdict struct {
	Allowed bool
	Risk    Risk
	Reasons []string
}

// ActionInput is the structured view of an action handed to ScreenAction.
// Addresses holds every address-shaped value found in the action params;
// TokenAddress is set when the action names a token by address.
type ActionInput struct {
	UserMessage  string
	Intent       string
	Addresses    []string
	TokenAddress string
	Chain        string
}

var promptChecks = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`(?i)(ignore|disregard|forget)\s+((all|the)\s+)?(previous|prior|above|earlier|your)\s+(instructions|prompts|rules|messages|training)`),
		"attempts to override prior instructions"},
	{regexp.MustCompile(`(?i)(reveal|show|print|repeat|output|leak)\b.{0,40}\b(system\s+prompt|hidden\s+(instructions|prompt))`),
		"probes for the system prompt"},
	{regexp.MustCompile(`(?i)\bnew\s+instructions\s*:`),
		"injects replacement instructions"},
	{regexp.MustCompile(`(?i)\b(developer|god|admin|sudo)\s+mode\b`),
		"requests a privileged mode"},
	{regexp.MustCompile(`(?i)\bjailbreak`),
		"uses jailbreak language"},
	{regexp.MustCompile(`(?i)(you\s+are\s+now|pretend\s+(to\s+be|you\s+are)|act\s+as\s+if\s+you\s+have\s+no)\b`),
		"attempts a role override"},
	{regexp.MustCompile(`(?i)(override|disable|bypass)\s+(your\s+)?(safety|security|screening|checks)`),
		"asks to bypass safety checks"},
	{regexp.MustCompile(`(?i)send\s+(all|everything|the\s+entire)\b.{0,40}\b(funds?|balance|wallet)`),
		"demands draining the wallet"},
}

// ScreenPrompt inspects raw user text for instruction-override language.
// It runs before everything else; a failed verdict short-circuits the
// whole pipeline.
func ScreenPrompt(rawText string) PromptVerdict {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return PromptVerdict{Allowed: true}
	}
	var reasons []string
	for _, check := range promptChecks {
		if check.re.MatchString(text) {
			reasons = append(reasons, check.reason)
		}
	}
	return PromptVerdict{Allowed: len(reasons) == 0, Reasons: reasons}
}

// Burn targets: anything sent here is gone.
const (
	zeroAddress = "0x0000000000000000000000000000000000000000"
	deadAddress = "0x000000000000000000000000000000000000dead"
)

// Screen holds the address reputation tables used by ScreenAction. The
// denylist is seeded with burn addresses and can be extended from config.
type Screen struct {
	denylist map[string]string // lowercase address -> why it is blocked
}

func New() *Screen {
	s := &Screen{denylist: make(map[string]string)}
	s.Deny(zeroAddress, "burn address, funds sent here are unrecoverable")
	s.Deny(deadAddress, "burn address, funds sent here are unrecoverable")
	return s
}

// Deny adds an address to the blocklist.
func (s *Screen) Deny(address, reason string) {
	s.denylist[strings.ToLower(strings.TrimSpace(address))] = reason
}

// ScreenAction applies reputation and heuristic checks to the addresses an
// action touches. Verdict severity is a total order: any block reason wins
// over warnings, warnings win over ok.
func (s *Screen) ScreenAction(in ActionInput) ActionVerdict {
	var blocks, warnings []string

	for _, addr := range in.Addresses {
		norm := strings.ToLower(strings.TrimSpace(addr))
		if reason, ok := s.denylist[norm]; ok {
			blocks = append(blocks, fmt.Sprintf("address %s is blocked: %s", addr, reason))
			continue
		}
		// Transfers aimed at a token contract burn the funds; wallets are
		// not contracts.
		if in.Intent == model.IntentSend {
			if tok, ok := registry.LookupByAddress(norm); ok && !tok.Native() {
				blocks = append(blocks, fmt.Sprintf("address %s is the %s token contract, not a wallet", addr, tok.Symbol))
			}
		}
	}

	if in.TokenAddress != "" {
		norm := strings.ToLower(strings.TrimSpace(in.TokenAddress))
		if reason, ok := s.denylist[norm]; ok {
			blocks = append(blocks, fmt.Sprintf("token %s is blocked: %s", in.TokenAddress, reason))
		} else if _, ok := registry.LookupByAddress(norm); !ok {
			warnings = append(warnings, fmt.Sprintf("token %s is not on the verified token list, trade at your own risk", in.TokenAddress))
		}
	}

	switch {
	case len(blocks) > 0:
		return ActionVerdict{Allowed: false, Risk: RiskBlock, Reasons: append(blocks, warnings...)}
	case len(warnings) > 0:
		return ActionVerdict{Allowed: true, Risk: RiskWarning, Reasons: warnings}
	default:
		return ActionVerdict{Allowed: true, Risk: RiskOK}
	}
}
