// engine_load.go - Aufloesung und Laden des angeforderten Adapter-Sets
//
// Dieses Modul enthaelt:
// - loadNetworks: Namen aufloesen, bei Bedarf einmal neu scannen, laden
// - getOrLoad: Cache-Pfad mit Mtime-Invalidierung
//
// Fehlgeschlagene Adapter werden geloggt und aus dem Set ausgelassen,
// die uebrigen Requests laufen weiter.
package lora

import (
	"context"
	"log/slog"
	"time"

	"github.com/7blacky7/lorapatch/logutil"
)

// loadNetworks loest jeden Request gegen die Registry auf und laedt die
// Adapter. Bleibt mindestens ein Name unaufgeloest, wird genau einmal
// neu gescannt und erneut aufgeloest.
func (e *Engine) loadNetworks(ctx context.Context, requests []Request) []*ActiveNetwork {
	start := time.Now()
	defer func() { e.timer.Set("load", time.Since(start)) }()

	resolved := make([]*NetworkOnDisk, len(requests))
	missing := false
	for i, req := range requests {
		onDisk, err := e.registry.Resolve(req.Name)
		if err != nil {
			slog.Error("adapter name is ambiguous", "name", req.Name, "error", err)
			continue
		}
		if onDisk == nil {
			missing = true
			continue
		}
		resolved[i] = onDisk
	}

	if missing {
		// Der Adapter kann nach dem letzten Scan auf die Platte
		// gekommen sein, ein einzelner Rescan deckt das ab
		if err := e.registry.Scan(); err != nil {
			slog.Error("adapter rescan failed", "dir", e.opts.AdaptersDir, "error", err)
		}
		e.timer.Set("list", e.registry.ScanDuration)
		for i, req := range requests {
			if resolved[i] != nil {
				continue
			}
			onDisk, err := e.registry.Resolve(req.Name)
			if err != nil || onDisk == nil {
				continue
			}
			resolved[i] = onDisk
		}
	}

	nets := make([]*ActiveNetwork, 0, len(requests))
	var failed []string
	for i, req := range requests {
		if err := ctx.Err(); err != nil {
			slog.Warn("adapter loading interrupted", "error", err)
			break
		}

		onDisk := resolved[i]
		if onDisk == nil {
			failed = append(failed, req.Name)
			if closest := e.registry.Closest(req.Name); closest != "" {
				slog.Error("adapter not found", "name", req.Name, "did you mean", closest)
			} else {
				slog.Error("adapter not found", "name", req.Name)
			}
			continue
		}

		net, err := e.getOrLoad(onDisk)
		if err != nil {
			failed = append(failed, req.Name)
			slog.Error("adapter load failed", "name", onDisk.Name, "file", onDisk.Filename, "error", err)
			continue
		}

		logutil.TraceContext(ctx, "adapter ready", "name", onDisk.Name, "modules", len(net.Modules), "types", net.TypeNames)

		for name, embedding := range net.BundleEmbeddings {
			e.pipe.LoadEmbeddings(name, embedding)
		}

		nets = append(nets, &ActiveNetwork{
			Network:        net,
			MentionedName:  req.Name,
			TEMultiplier:   req.TEMultiplier,
			UNetMultiplier: req.UNetMultiplier,
			DynDim:         req.DynDim,
		})
	}

	if len(failed) > 0 {
		slog.Info("continuing without failed adapters", "failed", failed, "active", len(nets))
	}
	return nets
}

// getOrLoad liefert das geparste Netzwerk aus dem Cache oder laedt es
// von der Platte. Ein veraenderter Datei-Zeitstempel invalidiert den
// Cache-Eintrag.
func (e *Engine) getOrLoad(onDisk *NetworkOnDisk) (*Network, error) {
	if net := e.cache.Get(onDisk.Name); net != nil {
		if net.MTime.Equal(onDisk.ModTime) {
			return net, nil
		}
		slog.Debug("adapter changed on disk, reloading", "name", onDisk.Name)
	}

	net, err := loadNetwork(onDisk, e.mapper)
	if err != nil {
		return nil, err
	}

	e.registry.IndexHash(onDisk)
	e.cache.Put(onDisk.Name, net)
	return net, nil
}
