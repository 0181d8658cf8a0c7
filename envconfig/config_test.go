// config_test.go - Tests fuer die Umgebungs-Konfiguration
package envconfig

import (
	"testing"
)

func TestHost(t *testing.T) {
	cases := map[string]struct {
		value string
		want  string
	}{
		"default":        {"", "127.0.0.1:11435"},
		"port only":      {":1234", "127.0.0.1:1234"},
		"host only":      {"example.com", "example.com:11435"},
		"host and port":  {"example.com:1234", "example.com:1234"},
		"http scheme":    {"http://example.com", "example.com:80"},
		"https scheme":   {"https://example.com", "example.com:443"},
		"zeroes":         {"0.0.0.0:7777", "0.0.0.0:7777"},
		"invalid port":   {"example.com:66000", "example.com:11435"},
		"trailing slash": {"example.com:1234/", "example.com:1234"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("LORAPATCH_HOST", tc.value)
			if got := Host().Host; got != tc.want {
				t.Errorf("Host() = %q, erwartet %q", got, tc.want)
			}
		})
	}
}

func TestBoolVars(t *testing.T) {
	cases := map[string]bool{
		"":      false,
		"1":     true,
		"true":  true,
		"0":     false,
		"false": false,
		"junk":  true, // gesetzt aber unparsebar zaehlt als aktiviert
	}

	for value, want := range cases {
		t.Run("value "+value, func(t *testing.T) {
			t.Setenv("LORAPATCH_LOW_MEMORY", value)
			if got := LowMemory(); got != want {
				t.Errorf("LowMemory() = %v, erwartet %v", got, want)
			}
		})
	}
}

func TestCacheLimit(t *testing.T) {
	cases := map[string]uint{
		"":    4,
		"8":   8,
		"0":   0,
		"abc": 4,
	}

	for value, want := range cases {
		t.Run("value "+value, func(t *testing.T) {
			t.Setenv("LORAPATCH_CACHE_LIMIT", value)
			if got := CacheLimit(); got != want {
				t.Errorf("CacheLimit() = %d, erwartet %d", got, want)
			}
		})
	}
}

func TestPreferredName(t *testing.T) {
	t.Setenv("LORAPATCH_PREFERRED_NAME", "filename")
	if got := PreferredName(); got != "filename" {
		t.Errorf("PreferredName() = %q", got)
	}

	t.Setenv("LORAPATCH_PREFERRED_NAME", "garbage")
	if got := PreferredName(); got != "alias" {
		t.Errorf("PreferredName() = %q, erwartet alias fallback", got)
	}
}

func TestOffloadMode(t *testing.T) {
	cases := map[string]string{
		"":           "none",
		"model":      "model",
		"sequential": "sequential",
		"bogus":      "none",
	}

	for value, want := range cases {
		t.Run("value "+value, func(t *testing.T) {
			t.Setenv("LORAPATCH_OFFLOAD_MODE", value)
			if got := OffloadMode(); got != want {
				t.Errorf("OffloadMode() = %q, erwartet %q", got, want)
			}
		})
	}
}

func TestDefaultMultiplier(t *testing.T) {
	t.Setenv("LORAPATCH_DEFAULT_MULTIPLIER", "")
	if got := DefaultMultiplier(); got != 1.0 {
		t.Errorf("DefaultMultiplier() = %f, erwartet 1.0", got)
	}

	t.Setenv("LORAPATCH_DEFAULT_MULTIPLIER", "0.8")
	if got := DefaultMultiplier(); got != 0.8 {
		t.Errorf("DefaultMultiplier() = %f, erwartet 0.8", got)
	}
}
