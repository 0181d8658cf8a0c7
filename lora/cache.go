// cache.go - Begrenzter In-Memory-Cache geparster Adapter
//
// FIFO-Verdraengung: ueberschreitet der Cache seine Kapazitaet, fliegt
// der aelteste eingefuegte Eintrag raus. Zugriffe setzen das Alter
// bewusst NICHT zurueck (kein LRU) - die Einfuege-Reihenfolge zaehlt.
package lora

import (
	"log/slog"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Cache ist ein FIFO-begrenzter Adapter-Cache
type Cache struct {
	limit   int
	entries *orderedmap.OrderedMap[string, *Network]
}

// NewCache erstellt einen Cache mit der angegebenen Kapazitaet
func NewCache(limit int) *Cache {
	return &Cache{
		limit:   max(limit, 0),
		entries: orderedmap.New[string, *Network](),
	}
}

// Get gibt den gecachten Adapter zurueck (nil wenn nicht vorhanden)
func (c *Cache) Get(name string) *Network {
	if net, ok := c.entries.Get(name); ok {
		return net
	}
	return nil
}

// Put fuegt einen Adapter ein und verdraengt die aeltesten Eintraege,
// sobald die Kapazitaet ueberschritten ist
func (c *Cache) Put(name string, net *Network) {
	c.entries.Set(name, net)

	for c.entries.Len() > c.limit {
		oldest := c.entries.Oldest()
		c.entries.Delete(oldest.Key)
		slog.Debug("adapter cache eviction", "name", oldest.Key, "limit", c.limit)
	}
}

// Len gibt die Anzahl gecachter Adapter zurueck
func (c *Cache) Len() int { return c.entries.Len() }

// Names gibt die gecachten Namen in Einfuege-Reihenfolge zurueck
func (c *Cache) Names() []string {
	names := make([]string, 0, c.entries.Len())
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Clear leert den Cache
func (c *Cache) Clear() {
	c.entries = orderedmap.New[string, *Network]()
}
