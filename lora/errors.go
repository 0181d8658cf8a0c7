// errors.go - Fehler-Taxonomie des Adapter-Subsystems
//
// Lokale Fehler (eine Datei, ein Layer, ein Adapter) brechen nie den
// umgebenden Scan- oder Aktivierungs-Durchlauf ab; sie werden geloggt
// und der betroffene Eintrag wird uebersprungen.
package lora

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: Adapter-Name auch nach einem Registry-Refresh unaufloesbar
	ErrNotFound = errors.New("adapter not found")

	// ErrAliasConflict: Alias kollidiert zwischen zwei Adaptern und ist gesperrt
	ErrAliasConflict = errors.New("adapter alias is ambiguous")

	// ErrNoKeysMatched: kein Schluessel des Adapters traf einen Layer
	ErrNoKeysMatched = errors.New("no adapter keys matched any layer")

	// ErrUnsupportedContainer: Dateiformat nicht lesbar
	ErrUnsupportedContainer = errors.New("unsupported adapter container")
)

// DeltaError meldet einen fehlgeschlagenen Delta-Berechnungsschritt.
// Der Beitrag des Moduls entfaellt fuer diesen Layer, der Durchlauf
// geht weiter.
type DeltaError struct {
	Network string
	Layer   string
	Err     error
}

func (e *DeltaError) Error() string {
	return fmt.Sprintf("delta computation failed: network=%q layer=%q: %v", e.Network, e.Layer, e.Err)
}

func (e *DeltaError) Unwrap() error { return e.Err }
