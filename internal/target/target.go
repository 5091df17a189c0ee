// Package target models the identity of one server in the fleet.
package target

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is the SSH port used when the run configuration does not set one
const DefaultPort = 22

// Target represents a parsed server specification of the form "user@host"
type Target struct {
	User     string // SSH username (the principal)
	Host     string // Hostname or IP address
	Port     int    // SSH port number, shared by the whole run
	Original string // Original server specification string
}

// String returns the "user@host" identity the target was parsed from
func (t Target) String() string {
	return t.User + "@" + t.Host
}

// Address returns the host:port pair used for dialing
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// ParseServerSpec parses a single server specification in the format "user@host".
// The specification must contain exactly one '@' with a non-empty value on each side.
func ParseServerSpec(spec string, port int) (Target, error) {
	spec = strings.TrimSpace(spec)
	target := Target{
		Original: spec,
		Port:     port,
	}

	if spec == "" {
		return target, fmt.Errorf("empty server specification")
	}

	if n := strings.Count(spec, "@"); n != 1 {
		return target, fmt.Errorf("invalid server specification %q: expected exactly one '@', found %d", spec, n)
	}

	parts := strings.SplitN(spec, "@", 2)
	target.User = parts[0]
	target.Host = parts[1]

	if err := ValidateTarget(target); err != nil {
		return target, fmt.Errorf("invalid server specification %q: %w", spec, err)
	}

	return target, nil
}

// ParseServers parses an ordered list of server specifications, keeping their order.
// The first malformed entry aborts parsing.
func ParseServers(specs []string, port int) ([]Target, error) {
	targets := make([]Target, 0, len(specs))

	for i, spec := range specs {
		target, err := ParseServerSpec(spec, port)
		if err != nil {
			return nil, fmt.Errorf("error parsing server %d: %w", i+1, err)
		}
		targets = append(targets, target)
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("no servers found in inventory")
	}

	return targets, nil
}

// ValidateTarget validates a target for correctness
func ValidateTarget(target Target) error {
	if target.User == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if target.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if strings.ContainsAny(target.Host, " \t/") {
		return fmt.Errorf("host %q contains invalid characters", target.Host)
	}
	if target.Port < 1 || target.Port > 65535 {
		return fmt.Errorf("port number %d out of valid range (1-65535)", target.Port)
	}
	return nil
}
