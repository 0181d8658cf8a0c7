// config_utils.go - Utility-Funktionen und Export fuer Konfiguration
//
// Dieses Modul enthaelt:
// - BoolWithDefault/Bool: Boolean-Getter mit Default-Wert
// - String: String-Getter
// - Uint: Integer-Getter mit Default-Wert
// - EnvVar: Struktur fuer Environment-Variablen-Info
// - AsMap: Gibt alle Konfigurationen als Map zurueck
// - Values: Gibt alle Konfigurationswerte als String-Map zurueck
package envconfig

import (
	"fmt"
	"log/slog"
	"strconv"
)

// BoolWithDefault gibt eine Funktion zurueck, die einen Bool mit Default-Wert liest
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool gibt eine Funktion zurueck, die einen Bool liest (Default: false)
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// String gibt eine Funktion zurueck, die einen String liest
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// Uint gibt eine Funktion zurueck, die einen uint mit Default-Wert liest
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
// Enthaelt Namen, aktuelle Werte und Beschreibungen
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"LORAPATCH_DEBUG":              {"LORAPATCH_DEBUG", LogLevel(), "Show additional debug information (e.g. LORAPATCH_DEBUG=1)"},
		"LORAPATCH_HOST":               {"LORAPATCH_HOST", Host(), "IP Address for the lorapatch server (default 127.0.0.1:11435)"},
		"LORAPATCH_ADAPTERS":           {"LORAPATCH_ADAPTERS", AdaptersDir(), "The path to the adapters directory"},
		"LORAPATCH_PIPELINE":           {"LORAPATCH_PIPELINE", PipelinePath(), "The path to the base model safetensors file"},
		"LORAPATCH_ORIGINS":            {"LORAPATCH_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},
		"LORAPATCH_CACHE_LIMIT":        {"LORAPATCH_CACHE_LIMIT", CacheLimit(), "Maximum number of parsed adapters kept in memory (default: 4)"},
		"LORAPATCH_PREFERRED_NAME":     {"LORAPATCH_PREFERRED_NAME", PreferredName(), "Adapter lookup policy: alias or filename (default: alias)"},
		"LORAPATCH_LOW_MEMORY":         {"LORAPATCH_LOW_MEMORY", LowMemory(), "Patch weights in place without a snapshot"},
		"LORAPATCH_OFFLOAD_BACKUP":     {"LORAPATCH_OFFLOAD_BACKUP", OffloadBackup(), "Move weight snapshots to host memory"},
		"LORAPATCH_OFFLOAD_MODE":       {"LORAPATCH_OFFLOAD_MODE", OffloadMode(), "Pipeline offload mode: none, model or sequential (default: none)"},
		"LORAPATCH_FUSE":               {"LORAPATCH_FUSE", Fuse(), "Fuse adapters irreversibly without backups"},
		"LORAPATCH_DEFAULT_MULTIPLIER": {"LORAPATCH_DEFAULT_MULTIPLIER", DefaultMultiplier(), "Default adapter strength (default: 1.0)"},
		"LORAPATCH_MAX_WORKERS":        {"LORAPATCH_MAX_WORKERS", MaxWorkers(), "Worker pool size for directory scans"},
	}
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
