// cmd_builders.go - Command-Builder Funktionen
// Hauptfunktionen: newServeCmd, newListCmd, newActivateCmd, etc.
package cmd

import (
	"github.com/spf13/cobra"
)

// newServeCmd - Erstellt den serve Command
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the lorapatch server",
		Args:    cobra.ExactArgs(0),
		RunE:    RunServer,
	}
}

// newListCmd - Erstellt den list Command
func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list [PREFIX]",
		Aliases: []string{"ls"},
		Short:   "List available adapters",
		PreRunE: checkServerHeartbeat,
		RunE:    ListHandler,
	}
}

// newRefreshCmd - Erstellt den refresh Command
func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "refresh",
		Short:   "Rescan the adapter directory",
		Args:    cobra.ExactArgs(0),
		PreRunE: checkServerHeartbeat,
		RunE:    RefreshHandler,
	}
}

// newShowCmd - Erstellt den show Command
func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "show ADAPTER",
		Short:   "Show information for an adapter",
		Args:    cobra.ExactArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    ShowHandler,
	}
}

// newActivateCmd - Erstellt den activate Command
func newActivateCmd() *cobra.Command {
	activateCmd := &cobra.Command{
		Use:     "activate ADAPTER[:STRENGTH[:STRENGTH_CLIP]]...",
		Short:   "Activate a set of adapters",
		Args:    cobra.MinimumNArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    ActivateHandler,
	}

	activateCmd.Flags().Int("dyn-dim", 0, "Truncate low-rank adapters to this rank (0 = off)")

	return activateCmd
}

// newDeactivateCmd - Erstellt den deactivate Command
func newDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "deactivate",
		Short:   "Deactivate all active adapters",
		Args:    cobra.ExactArgs(0),
		PreRunE: checkServerHeartbeat,
		RunE:    DeactivateHandler,
	}
}

// newTimersCmd - Erstellt den timers Command
func newTimersCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "timers",
		Short:   "Show engine phase timings",
		Args:    cobra.ExactArgs(0),
		PreRunE: checkServerHeartbeat,
		RunE:    TimersHandler,
	}
}
