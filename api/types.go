// types.go - Request- und Response-Typen der Adapter-API
// Enthaelt: StatusError, AdapterRequest, Activate/List/Show/Timers-Typen
package api

import (
	"fmt"
	"time"
)

// StatusError is an error with an HTTP status code and message.
type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		// this should not happen
		return "something went wrong, please see the server logs for details"
	}
}

// AdapterRequest benennt einen Adapter samt Staerken. Strength wirkt
// auf das Diffusionsmodell, StrengthClip auf die Text-Encoder. Eine
// fehlende Staerke wird serverseitig mit dem Default belegt.
type AdapterRequest struct {
	Name         string   `json:"name"`
	Strength     *float64 `json:"strength,omitempty"`
	StrengthClip *float64 `json:"strength_clip,omitempty"`
	DynDim       int      `json:"dyn_dim,omitempty"`
}

// ActivateRequest ist das gewuenschte Adapter-Set in Reihenfolge
type ActivateRequest struct {
	Adapters []AdapterRequest `json:"adapters"`
}

// ActivateResponse meldet das tatsaechlich aktive Set zurueck.
// Failed enthaelt Namen, die nicht aufgeloest oder geladen wurden.
type ActivateResponse struct {
	Active []string           `json:"active"`
	Failed []string           `json:"failed,omitempty"`
	Errors map[string]int     `json:"errors,omitempty"`
	Timers map[string]float64 `json:"timers,omitempty"`
}

// AdapterInfo beschreibt einen auf der Platte gefundenen Adapter
type AdapterInfo struct {
	Name     string    `json:"name"`
	Alias    string    `json:"alias,omitempty"`
	Filename string    `json:"filename"`
	Compat   string    `json:"compat,omitempty"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
}

// ListResponse listet alle registrierten Adapter
type ListResponse struct {
	Adapters []AdapterInfo `json:"adapters"`
}

// ShowRequest fragt Details eines Adapters ab
type ShowRequest struct {
	Name string `json:"name"`
}

// ShowResponse enthaelt Datei-Details samt Metadaten und Hash
type ShowResponse struct {
	AdapterInfo
	ShortHash string            `json:"short_hash,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// TimersResponse gibt die Phasen-Zeiten der Engine in Sekunden zurueck
type TimersResponse struct {
	Timers map[string]float64 `json:"timers"`
}

// VersionResponse gibt die Server-Version zurueck
type VersionResponse struct {
	Version string `json:"version"`
}
