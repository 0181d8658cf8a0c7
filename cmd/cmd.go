// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/7blacky7/lorapatch/envconfig"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-28s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "lorapatch",
		Short:         "Adapter patching for diffusion pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if version, _ := cmd.Flags().GetBool("version"); version {
				versionHandler(cmd, args)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	// Commands erstellen
	serveCmd := newServeCmd()
	listCmd := newListCmd()
	refreshCmd := newRefreshCmd()
	showCmd := newShowCmd()
	activateCmd := newActivateCmd()
	deactivateCmd := newDeactivateCmd()
	timersCmd := newTimersCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	envs := []envconfig.EnvVar{envVars["LORAPATCH_HOST"]}

	for _, cmd := range []*cobra.Command{
		listCmd,
		refreshCmd,
		showCmd,
		activateCmd,
		deactivateCmd,
		timersCmd,
		serveCmd,
	} {
		switch cmd {
		case serveCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["LORAPATCH_DEBUG"],
				envVars["LORAPATCH_HOST"],
				envVars["LORAPATCH_PIPELINE"],
				envVars["LORAPATCH_ADAPTERS"],
				envVars["LORAPATCH_ORIGINS"],
				envVars["LORAPATCH_CACHE_LIMIT"],
				envVars["LORAPATCH_PREFERRED_NAME"],
				envVars["LORAPATCH_LOW_MEMORY"],
				envVars["LORAPATCH_OFFLOAD_BACKUP"],
				envVars["LORAPATCH_OFFLOAD_MODE"],
				envVars["LORAPATCH_FUSE"],
				envVars["LORAPATCH_DEFAULT_MULTIPLIER"],
				envVars["LORAPATCH_MAX_WORKERS"],
			})
		default:
			appendEnvDocs(cmd, envs)
		}
	}

	rootCmd.AddCommand(
		serveCmd,
		listCmd,
		refreshCmd,
		showCmd,
		activateCmd,
		deactivateCmd,
		timersCmd,
	)

	return rootCmd
}
