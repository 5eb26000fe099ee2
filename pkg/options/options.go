package options

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/pflag"
)

// IOptions is implemented by every option group so that commands can
// validate and register them uniformly.
type IOptions interface {
	// Validate validates all the required options.
	Validate() []error

	// AddFlags adds flags to the specified FlagSet object.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// ValidateAddress takes an address as "host:port" and checks that the port is
// a valid number. An empty host means all interfaces.
func ValidateAddress(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%q is not a valid address: %w", addr, err)
	}

	if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("%q: port must be a number between 0 and 65535", addr)
	}

	return nil
}

// flagName returns "<prefix>.<name>", where prefix is the first non-empty
// entry of prefixes or def when none is given.
func flagName(def, name string, prefixes []string) string {
	for _, p := range prefixes {
		if p != "" {
			return p + "." + name
		}
	}
	return def + "." + name
}
