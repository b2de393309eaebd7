// Package factory resolves provider interpreters by name.
package factory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agentduel/agentduel/providers"
	"github.com/agentduel/agentduel/providers/anthropic"
	"github.com/agentduel/agentduel/providers/gemini"
	"github.com/agentduel/agentduel/providers/openai"
)

// New returns the interpreter for the named upstream runtime.
func New(name string) (providers.Interpreter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "anthropic":
		return anthropic.New(), nil
	case "openai":
		return openai.New(), nil
	case "gemini":
		return gemini.New(), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q (use one of: %s)", name, strings.Join(Names(), ", "))
	}
}

// Names lists the supported provider names, sorted.
func Names() []string {
	names := []string{"anthropic", "gemini", "openai"}
	sort.Strings(names)
	return names
}
