// cmd_activate.go - Activate, Deactivate und Timers Commands
// Hauptfunktionen: ActivateHandler, DeactivateHandler, TimersHandler
package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/7blacky7/lorapatch/api"
)

// parseAdapterArg - Zerlegt "name", "name:0.8" oder "name:0.8:0.5".
// Der Name darf Doppelpunkte enthalten, geparst wird von rechts.
func parseAdapterArg(arg string) (api.AdapterRequest, error) {
	req := api.AdapterRequest{Name: arg}

	rest := arg
	var trailing []string
	for i := 0; i < 2; i++ {
		idx := strings.LastIndex(rest, ":")
		if idx < 0 {
			break
		}
		if _, err := strconv.ParseFloat(rest[idx+1:], 64); err != nil {
			break
		}
		trailing = append([]string{rest[idx+1:]}, trailing...)
		rest = rest[:idx]
	}

	if len(trailing) == 0 {
		return req, nil
	}
	if rest == "" {
		return req, fmt.Errorf("invalid adapter argument %q", arg)
	}

	req.Name = rest
	strength, _ := strconv.ParseFloat(trailing[0], 64)
	req.Strength = &strength
	if len(trailing) > 1 {
		clip, _ := strconv.ParseFloat(trailing[1], 64)
		req.StrengthClip = &clip
	}
	return req, nil
}

// ActivateHandler - Setzt das aktive Adapter-Set
func ActivateHandler(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	dynDim, err := cmd.Flags().GetInt("dyn-dim")
	if err != nil {
		return err
	}

	req := api.ActivateRequest{}
	for _, arg := range args {
		adapter, err := parseAdapterArg(arg)
		if err != nil {
			return err
		}
		adapter.DynDim = dynDim
		req.Adapters = append(req.Adapters, adapter)
	}

	resp, err := client.Activate(cmd.Context(), &req)
	if err != nil {
		return err
	}

	if len(resp.Active) > 0 {
		fmt.Printf("active: %s\n", strings.Join(resp.Active, ", "))
	} else {
		fmt.Println("no adapters active")
	}
	for _, name := range resp.Failed {
		fmt.Printf("failed: %s\n", name)
	}
	for name, count := range resp.Errors {
		if count > 0 {
			fmt.Printf("warning: %d layer errors for %s\n", count, name)
		}
	}

	return nil
}

// DeactivateHandler - Entfernt alle aktiven Adapter
func DeactivateHandler(cmd *cobra.Command, _ []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	resp, err := client.Deactivate(cmd.Context())
	if err != nil {
		return err
	}

	if len(resp.Active) > 0 {
		fmt.Printf("still active: %s\n", strings.Join(resp.Active, ", "))
	} else {
		fmt.Println("all adapters deactivated")
	}

	return nil
}

// TimersHandler - Zeigt die Phasen-Zeiten der Engine an
func TimersHandler(cmd *cobra.Command, _ []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	resp, err := client.Timers(cmd.Context())
	if err != nil {
		return err
	}

	phases := make([]string, 0, len(resp.Timers))
	for phase := range resp.Timers {
		phases = append(phases, phase)
	}
	sort.Strings(phases)

	for _, phase := range phases {
		fmt.Printf("  %-12s %.2fs\n", phase, resp.Timers[phase])
	}

	return nil
}
