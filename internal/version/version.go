package version

import "fmt"

var (
	Name      = "walletd"
	Version   = "0.1.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func Long() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// UserAgent identifies walletd on outbound HTTP requests.
func UserAgent() string {
	return fmt.Sprintf("%s/%s", Name, Version)
}
