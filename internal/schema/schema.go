// Package schema publishes walletd's action surface in machine-readable
// form so agent integrations can discover intents without reading source.
package schema

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ggonzalez94/walletd/internal/model"
)

type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

type Action struct {
	Intent       string  `json:"intent"`
	Description  string  `json:"description"`
	NeedsSession bool    `json:"needsSession"`
	Params       []Param `json:"params,omitempty"`
}

// Catalog lists every routable intent with its parameter contract. The
// entries mirror the router's decoders; a drifted entry is a bug.
func Catalog() []Action {
	return []Action{
		{
			Intent:       model.IntentCreateWallet,
			Description:  "Create the wallet bound to this session, or return the existing one.",
			NeedsSession: true,
		},
		{
			Intent:       model.IntentAddress,
			Description:  "Return the session wallet address.",
			NeedsSession: true,
		},
		{
			Intent:       model.IntentBalance,
			Description:  "Return the session wallet balance for ETH or a token.",
			NeedsSession: true,
			Params: []Param{
				{Name: "token", Type: "string", Description: "Token symbol or address; omit for ETH."},
			},
		},
		{
			Intent:      model.IntentQuote,
			Description: "Fetch an indicative swap quote without executing.",
			Params: []Param{
				{Name: "from", Type: "string", Required: true, Description: "Token to sell."},
				{Name: "to", Type: "string", Required: true, Description: "Token to buy."},
				{Name: "amount", Type: "string", Required: true, Description: "Amount to sell, in token units."},
				{Name: "bypassCache", Type: "bool", Description: "Bypass the quote cache."},
			},
		},
		{
			Intent:       model.IntentSwap,
			Description:  "Execute a swap from the session wallet and wait for confirmation.",
			NeedsSession: true,
			Params: []Param{
				{Name: "from", Type: "string", Required: true, Description: "Token to sell."},
				{Name: "to", Type: "string", Required: true, Description: "Token to buy."},
				{Name: "amount", Type: "string", Required: true, Description: "Amount to sell, in token units."},
			},
		},
		{
			Intent:       model.IntentSend,
			Description:  "Send ETH or an ERC-20 from the session wallet.",
			NeedsSession: true,
			Params: []Param{
				{Name: "to", Type: "string", Required: true, Description: "Recipient address."},
				{Name: "amount", Type: "string", Required: true, Description: "Amount to send, in token units."},
				{Name: "token", Type: "string", Description: "Token symbol or address; omit for ETH."},
			},
		},
		{
			Intent:       model.IntentExportKey,
			Description:  "Open the two-minute window for confirming a private key export.",
			NeedsSession: true,
		},
		{
			Intent:       model.IntentConfirmExport,
			Description:  "Confirm a pending export and reveal the private key once.",
			NeedsSession: true,
		},
		{
			Intent:      model.IntentVerify,
			Description: "Identity verification boundary; points at the companion app flow.",
		},
		{
			Intent:      model.IntentHelp,
			Description: "List available actions.",
		},
	}
}

// CommandSchema describes the CLI surface for the same audience.
type CommandSchema struct {
	Path        string          `json:"path"`
	Use         string          `json:"use"`
	Short       string          `json:"short"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
}

type FlagSchema struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Usage   string `json:"usage"`
	Default string `json:"default,omitempty"`
}

func Describe(cmd *cobra.Command) CommandSchema {
	s := CommandSchema{
		Path:  strings.TrimSpace(cmd.CommandPath()),
		Use:   cmd.Use,
		Short: cmd.Short,
		Flags: collectFlags(cmd),
	}
	for _, sub := range cmd.Commands() {
		if sub.Hidden {
			continue
		}
		s.Subcommands = append(s.Subcommands, Describe(sub))
	}
	return s
}

func collectFlags(cmd *cobra.Command) []FlagSchema {
	items := []FlagSchema{}
	cmd.NonInheritedFlags().VisitAll(func(f *pflag.Flag) {
		items = append(items, FlagSchema{
			Name:    f.Name,
			Type:    f.Value.Type(),
			Usage:   f.Usage,
			Default: f.DefValue,
		})
	})
	return items
}
