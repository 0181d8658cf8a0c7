// network.go - Geparster Adapter und Modul-Abstraktion
//
// Dieses Modul enthaelt:
// - Network: Vollstaendig geparster Adapter (Layer-ID -> Module)
// - NetworkWeights: Normalisiertes Gewichts-Buendel eines Ziel-Layers
// - Module: Delta-Berechnung eines Adapters fuer einen Layer
// - moduleTypes: Feste Prioritaetsliste der Modul-Varianten
package lora

import (
	"time"

	"github.com/7blacky7/lorapatch/ml"
	"github.com/7blacky7/lorapatch/pipeline"
)

// Module berechnet das Gewichts-Delta eines Adapters fuer einen Layer.
// CalcUpdown bekommt das dequantisierte Basis-Gewicht und einen
// optionalen Dynamic-Dim-Wert (0 = volle Rank); der Bias-Delta darf
// nil sein.
type Module interface {
	Type() string
	CalcUpdown(base *ml.Tensor, dynDim int) (updown, exBias *ml.Tensor, err error)
}

// NetworkWeights ist das normalisierte Gewichts-Buendel eines Ziel-Layers
type NetworkWeights struct {
	// NetworkKey ist der erste rohe Schluessel, der auf diesen Layer traf
	NetworkKey string
	Layer      *pipeline.Layer
	W          map[string]*ml.Tensor
}

// Network ist ein vollstaendig geparster Adapter. Nach der Konstruktion
// ist er unveraenderlich; Multiplikatoren leben in ActiveNetwork, damit
// der Cache-Eintrag zwischen Aktivierungen geteilt werden kann.
type Network struct {
	Name   string
	OnDisk *NetworkOnDisk
	MTime  time.Time

	// Modules mappt Layer-IDs (komponente.layerpfad) auf Module
	Modules map[string]Module

	// BundleEmbeddings haelt mitgelieferte Embeddings (Name -> Vektoren)
	BundleEmbeddings map[string]map[string]*ml.Tensor

	// UnmatchedKeys zaehlt rohe Schluessel ohne Ziel-Layer
	UnmatchedKeys int

	// TypeNames sind die im Adapter vorkommenden Modul-Varianten
	TypeNames []string
}

// ActiveNetwork bindet einen gecachten Adapter an die Multiplikatoren
// eines Aktivierungs-Requests
type ActiveNetwork struct {
	*Network

	// MentionedName ist der exakte vom Aufrufer verwendete Name
	MentionedName string

	TEMultiplier   float64
	UNetMultiplier float64

	// DynDim begrenzt die effektive Rank (0 = volle Rank)
	DynDim int
}

// Multiplier gibt den Multiplikator fuer die Komponente eines Layers zurueck
func (n *ActiveNetwork) Multiplier(component pipeline.Component) float64 {
	switch component {
	case pipeline.TextEncoder, pipeline.TextEncoder2:
		return n.TEMultiplier
	default:
		return n.UNetMultiplier
	}
}

// moduleType ist ein Eintrag der Modul-Varianten-Liste. create muss bei
// Ablehnung (nil, nil) zurueckgeben und darf dabei keine Seiteneffekte
// haben.
type moduleType struct {
	name   string
	create func(weights *NetworkWeights) (Module, error)
}

// moduleTypes ist die feste Prioritaetsliste der Varianten. Die
// Reihenfolge ist eine dokumentierte Invariante: manche rohen
// Schluessel-Formen wuerden mehr als eine Variante erfuellen, die
// erste Uebereinstimmung gewinnt.
var moduleTypes = []moduleType{
	{"lora", createModuleLora},
	{"hada", createModuleHada},
	{"ia3", createModuleIa3},
	{"oft", createModuleOFT},
	{"lokr", createModuleLokr},
	{"full", createModuleFull},
	{"norm", createModuleNorm},
	{"glora", createModuleGLora},
}

// layerID gibt die eindeutige Kennung eines Layers zurueck
func layerID(l *pipeline.Layer) string {
	return string(l.Component()) + "." + l.Name()
}
