package connector

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConnected is wrapped by ConnectionError when a connector without mock
// fallback is queried while it has no live session.
var ErrNotConnected = errors.New("connector not connected")

// ConfigurationError reports required credentials that were not supplied.
type ConfigurationError struct {
	Connector string
	Missing   []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: missing required credentials: %s", e.Connector, strings.Join(e.Missing, ", "))
}

// ConnectionError wraps a network, auth or driver failure during connect,
// query or probe.
type ConnectionError struct {
	Connector string
	Op        string
	Err       error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Connector, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Credential is a named configuration value required to open a session.
type Credential struct {
	Name  string
	Value string
}

// RequireCredentials returns a *ConfigurationError naming every empty
// credential, or nil when all are present.
func RequireCredentials(connector string, creds ...Credential) error {
	var missing []string
	for _, c := range creds {
		if strings.TrimSpace(c.Value) == "" {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return &ConfigurationError{Connector: connector, Missing: missing}
	}
	return nil
}
