// routes.go - HTTP-Router und Handler des Adapter-Dienstes
//
// Dieses Modul enthaelt:
// - Server: HTTP-Flaeche ueber der Patch-Engine
// - GenerateRoutes: Router mit CORS und Host-Filter
// - Handler fuer List, Refresh, Show, Activate, Deactivate, Timers
//
// Die Engine ist nicht nebenlaeufig, ein Mutex serialisiert alle
// Engine-Operationen ueber Requests hinweg.
package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"os"
	"strings"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/7blacky7/lorapatch/api"
	"github.com/7blacky7/lorapatch/envconfig"
	"github.com/7blacky7/lorapatch/lora"
	"github.com/7blacky7/lorapatch/version"
)

var mode string = gin.DebugMode

func init() {
	switch mode {
	case gin.DebugMode:
	case gin.ReleaseMode:
	case gin.TestMode:
	default:
		mode = gin.DebugMode
	}

	gin.SetMode(mode)
}

// Server bedient die Adapter-API ueber einer Engine
type Server struct {
	addr net.Addr

	mu     sync.Mutex
	engine *lora.Engine
}

// NewServer erstellt einen Server ueber der angegebenen Engine
func NewServer(engine *lora.Engine) *Server {
	return &Server{engine: engine}
}

// isLocalIP prueft ob die Adresse zu einem lokalen Interface gehoert
func isLocalIP(ip netip.Addr) bool {
	if interfaces, err := net.Interfaces(); err == nil {
		for _, iface := range interfaces {
			addrs, err := iface.Addrs()
			if err != nil {
				continue
			}

			for _, a := range addrs {
				if parsed, _, err := net.ParseCIDR(a.String()); err == nil {
					if parsed.String() == ip.String() {
						return true
					}
				}
			}
		}
	}

	return false
}

// allowedHost prueft ob der Host erlaubt ist
func allowedHost(host string) bool {
	host = strings.ToLower(host)

	if host == "" || host == "localhost" {
		return true
	}

	if hostname, err := os.Hostname(); err == nil && host == strings.ToLower(hostname) {
		return true
	}

	tlds := []string{
		"localhost",
		"local",
		"internal",
	}

	// Pruefe ob der Host eine lokale TLD hat
	for _, tld := range tlds {
		if strings.HasSuffix(host, "."+tld) {
			return true
		}
	}

	return false
}

// allowedHostsMiddleware blockiert Anfragen von nicht erlaubten Hosts
func allowedHostsMiddleware(addr net.Addr) gin.HandlerFunc {
	return func(c *gin.Context) {
		if addr == nil {
			c.Next()
			return
		}

		if addr, err := netip.ParseAddrPort(addr.String()); err == nil && !addr.Addr().IsLoopback() {
			c.Next()
			return
		}

		host, _, err := net.SplitHostPort(c.Request.Host)
		if err != nil {
			host = c.Request.Host
		}

		if addr, err := netip.ParseAddr(host); err == nil {
			if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || isLocalIP(addr) {
				c.Next()
				return
			}
		}

		if allowedHost(host) {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}

			c.Next()
			return
		}

		c.AbortWithStatus(http.StatusForbidden)
	}
}

// GenerateRoutes erstellt und konfiguriert den HTTP-Router
func (s *Server) GenerateRoutes() (http.Handler, error) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowBrowserExtensions = true
	corsConfig.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"User-Agent",
		"Accept",
		"X-Requested-With",
	}
	corsConfig.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.Default()
	r.Use(
		cors.New(corsConfig),
		allowedHostsMiddleware(s.addr),
	)

	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "Lorapatch is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "Lorapatch is running") })
	r.HEAD("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })
	r.GET("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })

	r.HEAD("/api/adapters", s.ListHandler)
	r.GET("/api/adapters", s.ListHandler)
	r.POST("/api/adapters/refresh", s.RefreshHandler)
	r.POST("/api/show", s.ShowHandler)
	r.POST("/api/activate", s.ActivateHandler)
	r.POST("/api/deactivate", s.DeactivateHandler)
	r.GET("/api/timers", s.TimersHandler)

	return r, nil
}

func adapterInfo(n *lora.NetworkOnDisk) api.AdapterInfo {
	return api.AdapterInfo{
		Name:     n.Name,
		Alias:    n.Alias,
		Filename: n.Filename,
		Compat:   n.Compat,
		Size:     n.Size,
		ModTime:  n.ModTime,
	}
}

// ListHandler listet alle registrierten Adapter
func (s *Server) ListHandler(c *gin.Context) {
	s.mu.Lock()
	items := s.engine.Registry().Items()
	s.mu.Unlock()

	resp := api.ListResponse{Adapters: make([]api.AdapterInfo, 0, len(items))}
	for _, n := range items {
		resp.Adapters = append(resp.Adapters, adapterInfo(n))
	}
	c.JSON(http.StatusOK, resp)
}

// RefreshHandler scannt das Adapter-Verzeichnis neu und listet danach
func (s *Server) RefreshHandler(c *gin.Context) {
	s.mu.Lock()
	err := s.engine.Registry().Scan()
	items := s.engine.Registry().Items()
	s.mu.Unlock()

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := api.ListResponse{Adapters: make([]api.AdapterInfo, 0, len(items))}
	for _, n := range items {
		resp.Adapters = append(resp.Adapters, adapterInfo(n))
	}
	c.JSON(http.StatusOK, resp)
}

// ShowHandler liefert Details zu einem Adapter
func (s *Server) ShowHandler(c *gin.Context) {
	var req api.ShowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	s.mu.Lock()
	onDisk, err := s.engine.Registry().Resolve(req.Name)
	s.mu.Unlock()

	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if onDisk == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("adapter %q not found", req.Name)})
		return
	}

	c.JSON(http.StatusOK, api.ShowResponse{
		AdapterInfo: adapterInfo(onDisk),
		ShortHash:   onDisk.ShortHash(),
		Metadata:    onDisk.Metadata,
	})
}

// ActivateHandler setzt das aktive Adapter-Set
func (s *Server) ActivateHandler(c *gin.Context) {
	var req api.ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	defaultMul := envconfig.DefaultMultiplier()
	requests := make([]lora.Request, 0, len(req.Adapters))
	for _, a := range req.Adapters {
		if a.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "adapter name is required"})
			return
		}

		unet := defaultMul
		if a.Strength != nil {
			unet = *a.Strength
		}
		te := unet
		if a.StrengthClip != nil {
			te = *a.StrengthClip
		}
		requests = append(requests, lora.Request{
			Name:           a.Name,
			TEMultiplier:   te,
			UNetMultiplier: unet,
			DynDim:         a.DynDim,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.Activate(c.Request.Context(), requests); err != nil {
		if errors.Is(err, c.Request.Context().Err()) {
			c.JSON(http.StatusRequestTimeout, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	active := s.engine.ActiveNames()
	var failedNames []string
	for _, r := range requests {
		found := false
		for _, name := range active {
			if name == r.Name {
				found = true
				break
			}
		}
		if !found {
			if onDisk, err := s.engine.Registry().Resolve(r.Name); err == nil && onDisk != nil {
				for _, name := range active {
					if name == onDisk.Name {
						found = true
						break
					}
				}
			}
		}
		if !found {
			failedNames = append(failedNames, r.Name)
		}
	}

	c.JSON(http.StatusOK, api.ActivateResponse{
		Active: active,
		Failed: failedNames,
		Errors: s.engine.Errors(),
		Timers: s.engine.Timers(),
	})
}

// DeactivateHandler entfernt alle aktiven Adapter
func (s *Server) DeactivateHandler(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.Deactivate(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, api.ActivateResponse{
		Active: s.engine.ActiveNames(),
		Timers: s.engine.Timers(),
	})
}

// TimersHandler gibt die Phasen-Zeiten der Engine zurueck
func (s *Server) TimersHandler(c *gin.Context) {
	s.mu.Lock()
	timers := s.engine.Timers()
	s.mu.Unlock()

	c.JSON(http.StatusOK, api.TimersResponse{Timers: timers})
}
