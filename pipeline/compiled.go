// compiled.go - Compile-Zustand des Basis-Modells
//
// Dieses Modul enthaelt:
// - CompiledState: Signatur der einkompilierten Adapter + Recompile-Hook
//
// Der Recompile-Koordinator vergleicht die gewuenschte Adapter-Signatur
// mit AdapterSignature und stoesst bei Abweichung Reload und Recompile an.
package pipeline

// CompiledState beschreibt ein kompiliertes Modell-Artefakt
type CompiledState struct {
	// AdapterSignature ist die Liste "name:multiplier" in Request-Reihenfolge,
	// mit der das Artefakt kompiliert wurde
	AdapterSignature []string

	compiled     bool
	reloadFn     func() error
	recompileFn  func() error
	reloadCount  int
	compileCount int
}

// NewCompiledState erstellt einen Compile-Zustand mit Hooks.
// reload laedt die Basis-Gewichte frisch, recompile kompiliert den Graphen.
func NewCompiledState(reload, recompile func() error) *CompiledState {
	return &CompiledState{
		reloadFn:    reload,
		recompileFn: recompile,
	}
}

// IsCompiled meldet, ob aktuell ein kompiliertes Artefakt existiert
func (c *CompiledState) IsCompiled() bool { return c != nil && c.compiled }

// SetCompiled markiert das Artefakt als (nicht) kompiliert
func (c *CompiledState) SetCompiled(compiled bool) { c.compiled = compiled }

// ReloadWeights laedt die Basis-Gewichte frisch
func (c *CompiledState) ReloadWeights() error {
	c.reloadCount++
	if c.reloadFn == nil {
		return nil
	}
	return c.reloadFn()
}

// Recompile kompiliert den Graphen neu und markiert den Zustand
func (c *CompiledState) Recompile() error {
	c.compileCount++
	if c.recompileFn != nil {
		if err := c.recompileFn(); err != nil {
			return err
		}
	}
	c.compiled = true
	return nil
}

// ReloadCount gibt die Anzahl der Gewichts-Reloads zurueck
func (c *CompiledState) ReloadCount() int { return c.reloadCount }

// CompileCount gibt die Anzahl der Recompiles zurueck
func (c *CompiledState) CompileCount() int { return c.compileCount }
