// config.go - Haupt-Konfigurationsfunktionen fuer lorapatch
//
// Dieses Modul enthaelt:
// - Host: Gibt Scheme und Host zurueck (LORAPATCH_HOST)
// - AdaptersDir: Gibt Adapter-Verzeichnis zurueck (LORAPATCH_ADAPTERS)
// - AllowedOrigins: Gibt erlaubte Origins zurueck (LORAPATCH_ORIGINS)
// - LogLevel: Gibt Log-Level zurueck (LORAPATCH_DEBUG)
// - CacheLimit: Maximale Anzahl geparster Adapter im Speicher
// - PreferredName: Namenspolitik fuer Adapter-Lookups (alias|filename)
// - LowMemory/OffloadBackup/OffloadMode/Fuse: Patch-Engine-Optionen
// - DefaultMultiplier: Standard-Staerke fuer Adapter
// - MaxWorkers: Worker-Pool-Groesse fuer Verzeichnis-Scans
//
// Utility-Funktionen sind in config_utils.go ausgelagert.
package envconfig

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Host gibt Scheme und Host zurueck
// Konfigurierbar via LORAPATCH_HOST
// Default: http://127.0.0.1:11435
func Host() *url.URL {
	defaultPort := "11435"

	s := strings.TrimSpace(Var("LORAPATCH_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}
	if host == "" {
		host = "127.0.0.1"
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// AdaptersDir gibt das Adapter-Verzeichnis zurueck
// Konfigurierbar via LORAPATCH_ADAPTERS
// Default: $HOME/.lorapatch/adapters
func AdaptersDir() string {
	if s := Var("LORAPATCH_ADAPTERS"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	return filepath.Join(home, ".lorapatch", "adapters")
}

// PipelinePath gibt den Pfad des Basis-Modells zurueck
// Konfigurierbar via LORAPATCH_PIPELINE
func PipelinePath() string {
	return Var("LORAPATCH_PIPELINE")
}

// AllowedOrigins gibt erlaubte Origins zurueck
// Konfigurierbar via LORAPATCH_ORIGINS (komma-separiert)
// Enthaelt Standard-Origins fuer localhost
func AllowedOrigins() (origins []string) {
	if s := Var("LORAPATCH_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	// Standard-Origins fuer localhost
	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	origins = append(origins,
		"app://*",
		"file://*",
		"tauri://*",
		"vscode-webview://*",
		"vscode-file://*",
	)

	return origins
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via LORAPATCH_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("LORAPATCH_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// PreferredName gibt die Namenspolitik fuer Adapter-Lookups zurueck
// Konfigurierbar via LORAPATCH_PREFERRED_NAME
// Werte: "alias" (Default) oder "filename"
func PreferredName() string {
	if s := Var("LORAPATCH_PREFERRED_NAME"); s == "filename" {
		return "filename"
	}
	return "alias"
}

// OffloadMode gibt den Offload-Modus der Pipeline zurueck
// Konfigurierbar via LORAPATCH_OFFLOAD_MODE
// Werte: "none" (Default), "model", "sequential"
func OffloadMode() string {
	switch s := Var("LORAPATCH_OFFLOAD_MODE"); s {
	case "model", "sequential":
		return s
	default:
		return "none"
	}
}

// DefaultMultiplier gibt die Standard-Staerke fuer Adapter zurueck
// Konfigurierbar via LORAPATCH_DEFAULT_MULTIPLIER
// Default: 1.0
func DefaultMultiplier() float64 {
	if s := Var("LORAPATCH_DEFAULT_MULTIPLIER"); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		slog.Warn("invalid multiplier, using default", "value", s)
	}
	return 1.0
}

// MaxWorkers gibt die Worker-Pool-Groesse fuer Verzeichnis-Scans zurueck
// Konfigurierbar via LORAPATCH_MAX_WORKERS
// Default: Anzahl CPUs, mindestens 2
func MaxWorkers() int {
	n := Uint("LORAPATCH_MAX_WORKERS", 0)()
	if n > 0 {
		return int(n)
	}
	return max(runtime.NumCPU(), 2)
}

var (
	// CacheLimit begrenzt die Anzahl geparster Adapter im Speicher (LORAPATCH_CACHE_LIMIT)
	CacheLimit = Uint("LORAPATCH_CACHE_LIMIT", 4)

	// LowMemory erzwingt In-Place-Patching ohne Gewichts-Snapshot (LORAPATCH_LOW_MEMORY)
	LowMemory = Bool("LORAPATCH_LOW_MEMORY")

	// OffloadBackup verschiebt Gewichts-Snapshots in den Host-Speicher (LORAPATCH_OFFLOAD_BACKUP)
	OffloadBackup = Bool("LORAPATCH_OFFLOAD_BACKUP")

	// Fuse aktiviert einmalige, nicht umkehrbare Anwendung ohne Backup (LORAPATCH_FUSE)
	Fuse = Bool("LORAPATCH_FUSE")
)

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
