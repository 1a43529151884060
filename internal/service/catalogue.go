package service

import (
	"sort"
	"strings"

	"github.com/quickserve/dispatch-api/internal/config"
	"github.com/quickserve/dispatch-api/internal/domain"
)

// Catalogue resolves user-supplied service names to canonical service types.
type Catalogue struct {
	canonical map[string]string // lower-cased name -> canonical spelling
	aliases   map[string]string // lower-cased alias -> canonical
}

// NewCatalogue builds a Catalogue from the matching settings.
func NewCatalogue(cfg config.MatchingConfig) *Catalogue {
	c := &Catalogue{
		canonical: make(map[string]string, len(cfg.ServiceTypes)),
		aliases:   make(map[string]string, len(cfg.ServiceAliases)),
	}
	for _, t := range cfg.ServiceTypes {
		if t = strings.TrimSpace(t); t != "" {
			c.canonical[strings.ToLower(t)] = t
		}
	}
	for alias, target := range cfg.ServiceAliases {
		c.aliases[strings.ToLower(strings.TrimSpace(alias))] = strings.TrimSpace(target)
	}
	return c
}

// Canonical returns the canonical form of name. Aliases are applied first;
// the result must then be in the catalogue unless the catalogue is empty.
func (c *Catalogue) Canonical(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.NewValidationError("service_type", "is required", nil)
	}
	if target, ok := c.aliases[strings.ToLower(name)]; ok {
		name = target
	}
	if len(c.canonical) == 0 {
		return name, nil
	}
	if canon, ok := c.canonical[strings.ToLower(name)]; ok {
		return canon, nil
	}
	return "", domain.NewValidationError("service_type", "unknown service type "+name, nil)
}

// Types returns the canonical service types in alphabetical order.
func (c *Catalogue) Types() []string {
	out := make([]string, 0, len(c.canonical))
	for _, t := range c.canonical {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
