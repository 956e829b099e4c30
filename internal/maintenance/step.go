// SPDX-License-Identifier: MIT
// Package maintenance runs the ordered post-sync scripts.
package maintenance

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Mode selects the privilege a step runs with.
type Mode string

const (
	ModeUser Mode = "user"
	ModeRoot Mode = "root"
)

// Step is one maintenance script invocation.
type Step struct {
	Name   string   `yaml:"name"`
	Mode   Mode     `yaml:"mode"`
	Script string   `yaml:"script"`
	Args   []string `yaml:"args,omitempty"`
}

// Validate checks that the step can be executed.
func (s Step) Validate() error {
	if strings.TrimSpace(s.Script) == "" {
		return errors.New("script is required")
	}
	switch s.Mode {
	case "", ModeUser, ModeRoot:
	default:
		return fmt.Errorf("invalid mode %q (expected user or root)", s.Mode)
	}
	return nil
}

// DisplayName is the step name, falling back to the script's base name.
func (s Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return filepath.Base(s.Script)
}

// Escalates reports whether the step runs through sudo.
func (s Step) Escalates() bool {
	return s.Mode == ModeRoot
}

// Command returns the argv for the step.
func (s Step) Command() []string {
	argv := append([]string{s.Script}, s.Args...)
	if s.Escalates() {
		return append([]string{"sudo", "--"}, argv...)
	}
	return argv
}
