// engine.go - Kompositions- und Patch-Engine (Zustand und Konstruktion)
//
// Dieses Modul enthaelt:
// - Options: Konfigurationsflaeche der Engine
// - Request/netSig: Aktivierungs-Requests und Layer-Signaturen
// - LayerState: Backup + aktuell eingefaltete Signatur pro Layer
// - Engine: Langlebiger Kontext, dem alle Operationen gehoeren
//
// Die Engine ist nicht nebenlaeufig: Gewichts-Mutation auf einem
// geteilten Basis-Modell ist exklusiv, der Aufrufer serialisiert.
package lora

import (
	"errors"
	"slices"

	"github.com/7blacky7/lorapatch/envconfig"
	"github.com/7blacky7/lorapatch/ml"
	"github.com/7blacky7/lorapatch/pipeline"
)

// Options ist die Konfigurationsflaeche der Patch-Engine
type Options struct {
	// AdaptersDir ist das Scan-Verzeichnis der Registry
	AdaptersDir string

	// CacheLimit begrenzt die Anzahl geparster Adapter im Speicher
	CacheLimit int

	// PreferredName bestimmt die Lookup-Politik: "alias" oder "filename"
	PreferredName string

	// LowMemory patcht in-place ohne Snapshot; Deaktivierung laeuft
	// dann ueber Neuberechnung und Subtraktion
	LowMemory bool

	// OffloadBackup verschiebt Snapshots in den Host-Speicher
	OffloadBackup bool

	// OffloadMode: "none", "model" oder "sequential"; alles ausser
	// "none" verschiebt Zwischen-Deltas sofort in den Host-Speicher
	OffloadMode string

	// Fuse wendet Deltas einmalig und nicht umkehrbar an (kein Backup)
	Fuse bool

	// DefaultMultiplier ist die Standard-Staerke fuer Requests ohne Angabe
	DefaultMultiplier float64

	// MaxWorkers begrenzt den Scan-Worker-Pool
	MaxWorkers int
}

// OptionsFromEnv liest alle Optionen aus der Umgebung
func OptionsFromEnv() Options {
	return Options{
		AdaptersDir:       envconfig.AdaptersDir(),
		CacheLimit:        int(envconfig.CacheLimit()),
		PreferredName:     envconfig.PreferredName(),
		LowMemory:         envconfig.LowMemory(),
		OffloadBackup:     envconfig.OffloadBackup(),
		OffloadMode:       envconfig.OffloadMode(),
		Fuse:              envconfig.Fuse(),
		DefaultMultiplier: envconfig.DefaultMultiplier(),
		MaxWorkers:        envconfig.MaxWorkers(),
	}
}

// Request beschreibt einen angeforderten Adapter mit Multiplikatoren
type Request struct {
	Name           string
	TEMultiplier   float64
	UNetMultiplier float64
	DynDim         int
}

// netSig identifiziert einen eingefalteten Adapter samt Staerken.
// Die geordnete Liste aller netSigs eines Layers ist seine Signatur.
type netSig struct {
	Name string
	TE   float64
	UNet float64
	Dyn  int
}

// backupKind unterscheidet die Backup-Zustaende eines Parameters
type backupKind int

const (
	// backupNone: kein Snapshot noetig, es wird in-place gerechnet
	backupNone backupKind = iota
	// backupSnapshot: Original liegt als Kopie vor
	backupSnapshot
)

// Backup ist die getaggte Union {NoCopyNeeded, Snapshot(tensor)}
type Backup struct {
	kind   backupKind
	tensor *ml.Tensor
}

// LayerState haelt Backup und Signatur eines Ziel-Layers. Er wird beim
// ersten Patch erstellt und ueber Patch-Zyklen hinweg wiederverwendet.
type LayerState struct {
	weight    *Backup
	bias      *Backup
	signature []netSig
}

// Engine ist der langlebige Kontext der Patch-Pipeline. Registry,
// Cache, Timer und Layer-Zustaende gehoeren explizit der Engine; es
// gibt keinen Paket-globalen Zustand.
type Engine struct {
	pipe     *pipeline.Pipeline
	mapper   *KeyMapper
	registry *Registry
	cache    *Cache
	opts     Options
	timer    *Timer

	active    []*ActiveNetwork
	states    map[string]*LayerState
	errCounts map[string]int
}

// NewEngine erstellt eine Engine fuer die angegebene Pipeline
func NewEngine(pipe *pipeline.Pipeline, opts Options) (*Engine, error) {
	if pipe == nil {
		return nil, errors.New("pipeline does not support adapter loading")
	}

	return &Engine{
		pipe:      pipe,
		mapper:    NewKeyMapper(pipe),
		registry:  NewRegistry(opts.AdaptersDir, opts.MaxWorkers, opts.PreferredName),
		cache:     NewCache(opts.CacheLimit),
		opts:      opts,
		timer:     NewTimer(),
		states:    make(map[string]*LayerState),
		errCounts: make(map[string]int),
	}, nil
}

// Registry gibt die Adapter-Registry der Engine zurueck
func (e *Engine) Registry() *Registry { return e.registry }

// Cache gibt den Adapter-Cache der Engine zurueck
func (e *Engine) Cache() *Cache { return e.cache }

// Timers gibt die Zeitmessung als gerundete Sekunden zurueck
func (e *Engine) Timers() map[string]float64 { return e.timer.Timers() }

// Errors gibt die Delta-Fehlerzaehler pro Adapter zurueck
func (e *Engine) Errors() map[string]int {
	out := make(map[string]int, len(e.errCounts))
	for name, n := range e.errCounts {
		out[name] = n
	}
	return out
}

// ActiveNames gibt die Namen des aktiven Adapter-Sets zurueck
func (e *Engine) ActiveNames() []string {
	names := make([]string, 0, len(e.active))
	for _, net := range e.active {
		names = append(names, net.Name)
	}
	return names
}

// Reset leert Cache, Layer-Zustaende, Fehlerzaehler und aktives Set.
// Die Registry-Indizes bleiben bestehen.
func (e *Engine) Reset() {
	e.cache.Clear()
	e.states = make(map[string]*LayerState)
	e.errCounts = make(map[string]int)
	e.active = nil
	e.timer = NewTimer()
}

// wantedSignature baut die Ziel-Signatur aus dem aktiven Set
func wantedSignature(nets []*ActiveNetwork) []netSig {
	sig := make([]netSig, 0, len(nets))
	for _, net := range nets {
		sig = append(sig, netSig{
			Name: net.Name,
			TE:   net.TEMultiplier,
			UNet: net.UNetMultiplier,
			Dyn:  net.DynDim,
		})
	}
	return sig
}

// state gibt den LayerState zurueck und legt ihn bei Bedarf an
func (e *Engine) state(id string) *LayerState {
	s := e.states[id]
	if s == nil {
		s = &LayerState{}
		e.states[id] = s
	}
	return s
}

func sameSignature(a, b []netSig) bool {
	return slices.Equal(a, b)
}
