// Package pipeline - Basis-Modell-Kollaborateur
//
// Dieses Modul enthaelt:
// - Pipeline: Benannte, gewichtstragende Layer gruppiert nach Komponente
// - Layer: Einzelner patchbarer Layer (Gewicht, optionaler Bias, Device)
// - Komponenten-Enumeration in fester Reihenfolge
// - Embedding-Store fuer gebuendelte Adapter-Embeddings
//
// Die Pipeline kennt keine Adapter-Semantik; der Patcher liest und
// ersetzt Parameter ausschliesslich ueber diese Schnittstelle.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/7blacky7/lorapatch/ml"
)

// Component bezeichnet eine Unterkomponente der Pipeline
type Component string

const (
	TextEncoder  Component = "text_encoder"
	TextEncoder2 Component = "text_encoder_2"
	UNet         Component = "unet"
	Transformer  Component = "transformer"
)

// Components listet alle Komponenten in Durchlauf-Reihenfolge
func Components() []Component {
	return []Component{TextEncoder, TextEncoder2, UNet, Transformer}
}

// Layer ist ein adressierbarer, gewichtstragender Teil der Pipeline
type Layer struct {
	name      string
	component Component
	weight    *ml.Tensor
	bias      *ml.Tensor
	device    ml.Device
}

func (l *Layer) Name() string         { return l.name }
func (l *Layer) Component() Component { return l.component }
func (l *Layer) Weight() *ml.Tensor   { return l.weight }
func (l *Layer) Bias() *ml.Tensor     { return l.bias }
func (l *Layer) Device() ml.Device    { return l.device }

// Quantized meldet, ob das Gewicht quantisiert gespeichert ist
func (l *Layer) Quantized() bool { return l.weight.DType().IsQuantized() }

// SetWeight ersetzt das aktuelle Gewicht
func (l *Layer) SetWeight(t *ml.Tensor) { l.weight = t }

// SetBias ersetzt den aktuellen Bias (nil entfernt ihn)
func (l *Layer) SetBias(t *ml.Tensor) { l.bias = t }

// Pipeline haelt alle Layer und den Compile-Zustand des Basis-Modells
type Pipeline struct {
	device     ml.Device
	components map[Component][]*Layer
	index      map[Component]map[string]*Layer
	embeddings map[string]map[string]*ml.Tensor
	compiled   *CompiledState
}

// New erstellt eine leere Pipeline auf dem angegebenen Device
func New(device ml.Device) *Pipeline {
	return &Pipeline{
		device:     device,
		components: make(map[Component][]*Layer),
		index:      make(map[Component]map[string]*Layer),
		embeddings: make(map[string]map[string]*ml.Tensor),
	}
}

func (p *Pipeline) Device() ml.Device { return p.device }

// AddLayer registriert einen Layer unter seinem gepunkteten Namen.
// Der Layer ist anschliessend auch unter dem abgeflachten
// Unterstrich-Namen auffindbar (Adapter-Schluessel-Konvention).
func (p *Pipeline) AddLayer(component Component, name string, weight, bias *ml.Tensor) (*Layer, error) {
	if weight == nil {
		return nil, fmt.Errorf("layer %q has no weight", name)
	}

	l := &Layer{
		name:      name,
		component: component,
		weight:    weight,
		bias:      bias,
		device:    p.device,
	}

	p.components[component] = append(p.components[component], l)
	if p.index[component] == nil {
		p.index[component] = make(map[string]*Layer)
	}
	p.index[component][strings.ReplaceAll(name, ".", "_")] = l

	return l, nil
}

// Layers gibt die Layer einer Komponente in Registrier-Reihenfolge zurueck
func (p *Pipeline) Layers(component Component) []*Layer {
	return p.components[component]
}

// LayerCount gibt die Gesamtzahl aller Layer zurueck
func (p *Pipeline) LayerCount() int {
	var n int
	for _, layers := range p.components {
		n += len(layers)
	}
	return n
}

// Lookup findet einen Layer ueber den abgeflachten Unterstrich-Namen
func (p *Pipeline) Lookup(component Component, flatName string) *Layer {
	return p.index[component][flatName]
}

// LoadEmbeddings uebernimmt gebuendelte Embeddings eines Adapters
func (p *Pipeline) LoadEmbeddings(name string, vectors map[string]*ml.Tensor) {
	if len(vectors) == 0 {
		return
	}
	p.embeddings[name] = vectors
}

// Embeddings gibt die geladenen Embedding-Buendel zurueck
func (p *Pipeline) Embeddings() map[string]map[string]*ml.Tensor {
	return p.embeddings
}

// Compiled gibt den Compile-Zustand zurueck (nil wenn nie kompiliert)
func (p *Pipeline) Compiled() *CompiledState { return p.compiled }

// SetCompiled setzt den Compile-Zustand (Hook des Compile-Kollaborateurs)
func (p *Pipeline) SetCompiled(state *CompiledState) { p.compiled = state }
