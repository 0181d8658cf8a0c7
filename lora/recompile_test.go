// recompile_test.go - Tests fuer die Koordination mit kompilierten Pipelines
package lora

import (
	"context"
	"testing"

	"github.com/7blacky7/lorapatch/pipeline"
)

func TestRecompileOnAdapterChange(t *testing.T) {
	dir := t.TempDir()
	writeAdapter(t, dir, "styleA.safetensors", loraStateDict(0.5), nil)
	writeAdapter(t, dir, "styleB.safetensors", loraStateDict(1.0), nil)

	engine, pipe := newTestEngine(t, dir, Options{})

	cs := pipeline.NewCompiledState(
		func() error { return nil },
		func() error { return nil },
	)
	pipe.SetCompiled(cs)
	cs.SetCompiled(true)

	// Anderes Set als einkompiliert: Reload + Recompile
	if err := engine.Activate(context.Background(), []Request{{Name: "styleA", TEMultiplier: 1, UNetMultiplier: 1}}); err != nil {
		t.Fatal(err)
	}
	if cs.ReloadCount() != 1 || cs.CompileCount() != 1 {
		t.Fatalf("reloads=%d compiles=%d, erwartet je 1", cs.ReloadCount(), cs.CompileCount())
	}
	if !cs.IsCompiled() {
		t.Error("pipeline sollte nach der Aktivierung wieder kompiliert sein")
	}

	// Gleiches Set erneut: keine weitere Arbeit
	if err := engine.Activate(context.Background(), []Request{{Name: "styleA", TEMultiplier: 1, UNetMultiplier: 1}}); err != nil {
		t.Fatal(err)
	}
	if cs.ReloadCount() != 1 || cs.CompileCount() != 1 {
		t.Errorf("reloads=%d compiles=%d, erwartet unveraendert", cs.ReloadCount(), cs.CompileCount())
	}

	// Neues Set: erneuter Zyklus
	if err := engine.Activate(context.Background(), []Request{{Name: "styleB", TEMultiplier: 1, UNetMultiplier: 1}}); err != nil {
		t.Fatal(err)
	}
	if cs.ReloadCount() != 2 || cs.CompileCount() != 2 {
		t.Errorf("reloads=%d compiles=%d, erwartet je 2", cs.ReloadCount(), cs.CompileCount())
	}
}

func TestNoRecompileWithoutCompiledState(t *testing.T) {
	dir := t.TempDir()
	writeAdapter(t, dir, "styleA.safetensors", loraStateDict(0.5), nil)

	engine, pipe := newTestEngine(t, dir, Options{})
	if pipe.Compiled().IsCompiled() {
		t.Fatal("pipeline ohne Compile-Zustand")
	}

	if err := engine.Activate(context.Background(), []Request{{Name: "styleA", TEMultiplier: 1, UNetMultiplier: 1}}); err != nil {
		t.Fatal(err)
	}
}
