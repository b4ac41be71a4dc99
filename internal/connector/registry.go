package connector

import (
	"fmt"
	"sort"
	"strings"
)

// Constructor creates a Connector for one provider.
type Constructor func() Connector

var registry = map[string]Constructor{}

// Register makes a provider available by name. Providers register from init;
// registering the same name twice is a programming error and panics.
func Register(name string, ctor Constructor) {
	if ctor == nil {
		panic("connector: Register constructor is nil for " + name)
	}
	if _, dup := registry[name]; dup {
		panic("connector: Register called twice for " + name)
	}
	registry[name] = ctor
}

// Get returns the constructor registered under name. The error for an
// unknown name lists the providers that are available.
func Get(name string) (Constructor, error) {
	ctor, ok := registry[name]
	if !ok {
		known := Providers()
		if len(known) == 0 {
			return nil, fmt.Errorf("unknown connector provider %q: none registered", name)
		}
		return nil, fmt.Errorf("unknown connector provider %q (available: %s)", name, strings.Join(known, ", "))
	}
	return ctor, nil
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
