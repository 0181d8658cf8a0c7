// registry.go - Adapter-Registry (Verzeichnis-Scan und Aufloesung)
//
// Dieses Modul enthaelt:
// - NetworkOnDisk: Identitaet eines Adapters auf der Platte
// - Registry: Name-, Alias- und Hash-Indizes mit gesperrten Aliasen
// - Scan: Paralleles Datei-Probing ueber einen begrenzten Worker-Pool
// - Resolve: Namensaufloesung inkl. "name (hash)"-Syntax
//
// Ein unlesbarer Eintrag wird geloggt und uebersprungen; der Scan
// bricht nie wegen einer einzelnen Datei ab.
package lora

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"golang.org/x/sync/errgroup"

	"github.com/7blacky7/lorapatch/fs/safetensors"
)

// Dateiendungen, die als Adapter-Kandidaten gelten
var adapterExtensions = []string{".safetensors", ".pt", ".ckpt"}

// reNameWithHash erkennt die "name (hexhash)"-Request-Syntax
var reNameWithHash = regexp.MustCompile(`(.*)\s*\(([0-9a-fA-F]+)\)`)

// NetworkOnDisk ist die Identitaet eines Adapters auf der Platte
type NetworkOnDisk struct {
	Name     string
	Alias    string
	Filename string
	ModTime  time.Time
	Size     int64

	// Compat ist der erkannte Basis-Modell-Tag (sd1, sd2, sdxl, sd3,
	// flux, other, unknown)
	Compat string

	// Metadata sind die Header-Metadaten der Safetensors-Datei
	Metadata map[string]string

	hashOnce  sync.Once
	hash      string
	shortHash string
}

// newNetworkOnDisk probt eine Datei und baut ihre Identitaet
func newNetworkOnDisk(name, filename string) (*NetworkOnDisk, error) {
	fi, err := os.Stat(filename)
	if err != nil {
		return nil, err
	}

	n := &NetworkOnDisk{
		Name:     name,
		Alias:    name,
		Filename: filename,
		ModTime:  fi.ModTime(),
		Size:     fi.Size(),
		Compat:   "unknown",
	}

	if strings.HasSuffix(filename, ".safetensors") {
		header, err := safetensors.ReadHeader(filename)
		if err != nil {
			return nil, fmt.Errorf("probing header: %w", err)
		}
		n.Metadata = header.Metadata
		if alias := header.Metadata["ss_output_name"]; alias != "" {
			n.Alias = alias
		}
		n.Compat = detectCompat(header.Metadata)
	}

	return n, nil
}

// Hash berechnet den Inhalts-Hash (lazy, einmalig)
func (n *NetworkOnDisk) Hash() string {
	n.hashOnce.Do(func() {
		f, err := os.Open(n.Filename)
		if err != nil {
			slog.Error("hashing adapter", "file", n.Filename, "error", err)
			return
		}
		defer f.Close()

		h := sha256.New()
		if _, err := io.Copy(h, f); err != nil {
			slog.Error("hashing adapter", "file", n.Filename, "error", err)
			return
		}
		n.hash = hex.EncodeToString(h.Sum(nil))
		n.shortHash = n.hash[:12]
	})
	return n.hash
}

// ShortHash gibt den gekuerzten Inhalts-Hash zurueck
func (n *NetworkOnDisk) ShortHash() string {
	n.Hash()
	return n.shortHash
}

// detectCompat leitet den Basis-Modell-Tag aus Metadaten ab
func detectCompat(metadata map[string]string) string {
	version := strings.ToLower(metadata["ss_base_model_version"])
	arch := strings.ToLower(metadata["modelspec.architecture"])

	switch {
	case strings.HasPrefix(version, "sd_v1"), strings.Contains(arch, "stable-diffusion-v1"):
		return "sd1"
	case strings.HasPrefix(version, "sd_v2"), strings.Contains(arch, "stable-diffusion-v2"):
		return "sd2"
	case strings.HasPrefix(version, "sdxl"), strings.Contains(arch, "xl"):
		return "sdxl"
	case strings.HasPrefix(version, "sd3"), strings.Contains(arch, "sd3"):
		return "sd3"
	case strings.HasPrefix(version, "flux"), strings.Contains(arch, "flux"):
		return "flux"
	case len(metadata) == 0:
		return "unknown"
	default:
		return "other"
	}
}

// Registry verwaltet die Adapter-Identitaeten eines Verzeichnisses
type Registry struct {
	dir       string
	workers   int
	preferred string

	available map[string]*NetworkOnDisk
	aliases   map[string]*NetworkOnDisk
	hashes    map[string]*NetworkOnDisk
	forbidden map[string]struct{}

	// ScanDuration ist die Dauer des letzten Scans
	ScanDuration time.Duration
}

// NewRegistry erstellt eine leere Registry.
// preferred bestimmt die Lookup-Politik: "alias" oder "filename".
func NewRegistry(dir string, workers int, preferred string) *Registry {
	r := &Registry{
		dir:       dir,
		workers:   max(workers, 1),
		preferred: preferred,
	}
	r.clear()
	return r
}

func (r *Registry) clear() {
	r.available = make(map[string]*NetworkOnDisk)
	r.aliases = make(map[string]*NetworkOnDisk)
	r.hashes = make(map[string]*NetworkOnDisk)
	r.forbidden = map[string]struct{}{"none": {}}
}

// Scan enumeriert das Verzeichnis und baut alle Indizes neu auf.
// Datei-Probing laeuft parallel; die Index-Eintraege werden nach
// Task-Abschluss unter einem Mutex gemerged.
func (r *Registry) Scan() error {
	t0 := time.Now()
	r.clear()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("adapter directory not found", "path", r.dir)
			r.ScanDuration = time.Since(t0)
			return nil
		}
		return err
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(r.workers)

	for _, entry := range entries {
		if entry.IsDir() || !slices.Contains(adapterExtensions, filepath.Ext(entry.Name())) {
			continue
		}

		filename := filepath.Join(r.dir, entry.Name())
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		name = strings.ReplaceAll(name, ".", "_")

		g.Go(func() error {
			n, err := newNetworkOnDisk(name, filename)
			if err != nil {
				// Discovery-Fehler: loggen, Datei ueberspringen
				slog.Error("adapter discovery", "file", filename, "error", err)
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			r.add(n)
			return nil
		})
	}

	g.Wait()
	r.ScanDuration = time.Since(t0)
	slog.Info("available adapters", "path", r.dir, "items", len(r.available), "time", r.ScanDuration.Round(time.Millisecond))
	return nil
}

// add merged eine Identitaet in alle Indizes (letzter Schreiber gewinnt)
func (r *Registry) add(n *NetworkOnDisk) {
	r.available[n.Name] = n

	alias := n.Alias
	if existing, ok := r.aliases[alias]; ok && existing.Filename != n.Filename {
		// Alias-Kollision: Alias sperren, beide Namen bleiben aufloesbar
		r.forbidden[strings.ToLower(alias)] = struct{}{}
		slog.Warn("adapter alias conflict", "alias", alias, "file", n.Filename, "existing", existing.Filename)
	}
	if r.preferred == "filename" {
		r.aliases[n.Name] = n
	} else {
		r.aliases[alias] = n
	}

	if hash := n.Metadata["sshs_model_hash"]; len(hash) >= 12 {
		r.hashes[strings.ToLower(hash[:12])] = n
	}
}

// IndexHash registriert den Inhalts-Hash einer Identitaet nach dem
// ersten Laden (der Hash wird lazy berechnet, nie waehrend des Scans)
func (r *Registry) IndexHash(n *NetworkOnDisk) {
	if h := n.ShortHash(); h != "" {
		r.hashes[strings.ToLower(h)] = n
	}
}

// Resolve loest einen Namen gegen die Indizes auf (nil wenn unbekannt).
// Gesperrte Aliase schlagen geschlossen fehl statt zu raten.
func (r *Registry) Resolve(requested string) (*NetworkOnDisk, error) {
	name := requested
	var hash string
	if m := reNameWithHash.FindStringSubmatch(requested); m != nil {
		name, hash = strings.TrimSpace(m[1]), strings.ToLower(m[2])
	}

	if _, ok := r.forbidden[strings.ToLower(name)]; ok {
		return nil, fmt.Errorf("%w: %q", ErrAliasConflict, name)
	}

	if hash != "" && len(hash) >= 12 {
		if n, ok := r.hashes[hash[:12]]; ok {
			return n, nil
		}
	}
	if n, ok := r.aliases[name]; ok {
		return n, nil
	}
	if n, ok := r.available[name]; ok {
		return n, nil
	}

	return nil, nil
}

// Items gibt alle Identitaeten sortiert nach Name zurueck
func (r *Registry) Items() []*NetworkOnDisk {
	items := make([]*NetworkOnDisk, 0, len(r.available))
	for _, n := range r.available {
		items = append(items, n)
	}
	slices.SortFunc(items, func(a, b *NetworkOnDisk) int {
		return strings.Compare(a.Name, b.Name)
	})
	return items
}

// Len gibt die Anzahl registrierter Adapter zurueck
func (r *Registry) Len() int { return len(r.available) }

// Closest gibt den aehnlichsten bekannten Namen zurueck (Tipp fuer Logs)
func (r *Registry) Closest(requested string) string {
	best, bestDist := "", -1
	for name := range r.available {
		d := levenshtein.ComputeDistance(requested, name)
		if bestDist < 0 || d < bestDist {
			best, bestDist = name, d
		}
	}
	if bestDist < 0 || bestDist > len(requested)/2+1 {
		return ""
	}
	return best
}
