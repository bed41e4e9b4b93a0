// Package autostart registers the controller to start with the user session.
package autostart

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ValueName is the name of the login entry.
const ValueName = "nguctl"

// ErrUnsupported is returned on platforms without a login entry mechanism.
var ErrUnsupported = errors.New("autostart: unsupported platform")

// Command builds the command line stored in the login entry: the current
// executable running serve, with the given config file when set.
func Command(configPath string) (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("autostart: executable path: %w", err)
	}
	return commandLine(exe, configPath), nil
}

func commandLine(exe, configPath string) string {
	args := []string{quote(exe), "serve"}
	if configPath != "" {
		args = append(args, "--config", quote(configPath))
	}
	return strings.Join(args, " ")
}

func quote(s string) string {
	if strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}

// Enable installs or replaces the login entry.
func Enable(configPath string) error {
	cmd, err := Command(configPath)
	if err != nil {
		return err
	}
	return enable(cmd)
}

// Disable removes the login entry. Removing a missing entry is not an error.
func Disable() error {
	return disable()
}

// Status returns the stored command line, or "" when no entry exists.
func Status() (string, error) {
	return status()
}
