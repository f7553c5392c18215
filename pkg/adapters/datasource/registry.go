package datasource

import (
	"sort"
	"strings"
	"sync"
)

// AdapterInfo describes a registered adapter for UI discovery.
type AdapterInfo struct {
	Type        string `json:"type"`         // "mysql", "postgresql", "sqlserver", "oracle"
	DisplayName string `json:"display_name"` // "MySQL", "Microsoft SQL Server"
	Description string `json:"description"`
	DefaultPort int    `json:"default_port"`
}

// Registration contains info plus the constructor for one engine.
type Registration struct {
	Info AdapterInfo
	// Aliases are extra type names resolving to this adapter, e.g. "postgres", "kingbase".
	Aliases []string
	New     func(config map[string]any, opts Options) (Connector, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration) // keyed by canonical type
	aliases    = make(map[string]string)       // alias -> canonical type
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()

	canonical := normalizeType(reg.Info.Type)
	registry[canonical] = reg
	aliases[canonical] = canonical
	for _, alias := range reg.Aliases {
		aliases[normalizeType(alias)] = canonical
	}
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// Lookup resolves a type name or alias, case-insensitively and ignoring
// surrounding spaces.
func Lookup(dsType string) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	canonical, ok := aliases[normalizeType(dsType)]
	if !ok {
		return Registration{}, false
	}
	reg, ok := registry[canonical]
	return reg, ok
}

// CanonicalType returns the registered type for a name or alias, or "" if unknown.
func CanonicalType(dsType string) string {
	reg, ok := Lookup(dsType)
	if !ok {
		return ""
	}
	return reg.Info.Type
}

// IsRegistered checks if an adapter type or alias is available.
func IsRegistered(dsType string) bool {
	_, ok := Lookup(dsType)
	return ok
}

func normalizeType(dsType string) string {
	return strings.ToLower(strings.TrimSpace(dsType))
}
