// Package policy enforces the operator's intent allowlist. An empty list
// leaves every action enabled.
package policy

import (
	"strings"

	werr "github.com/ggonzalez94/walletd/internal/errors"
	"github.com/ggonzalez94/walletd/internal/model"
)

func CheckIntentAllowed(enabled []string, intent string) error {
	if len(enabled) == 0 {
		return nil
	}
	// Informational intents stay reachable so the agent can still explain
	// what it cannot do.
	if intent == model.IntentHelp || intent == model.IntentUnknown {
		return nil
	}
	norm := normalize(intent)
	for _, allowed := range enabled {
		if normalize(allowed) == norm {
			return nil
		}
	}
	return werr.Newf(werr.CodeBlocked, "The %s action is disabled by the operator.", intent)
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
