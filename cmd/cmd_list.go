// cmd_list.go - List, Refresh und Show Commands
// Hauptfunktionen: ListHandler, RefreshHandler, ShowHandler
package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/7blacky7/lorapatch/api"
	"github.com/7blacky7/lorapatch/format"
)

// renderAdapterTable - Gibt Adapter als Tabelle auf stdout aus
func renderAdapterTable(adapters []api.AdapterInfo, prefix string) {
	var data [][]string

	for _, a := range adapters {
		if prefix == "" || strings.HasPrefix(strings.ToLower(a.Name), strings.ToLower(prefix)) {
			data = append(data, []string{a.Name, a.Compat, format.HumanBytes(a.Size), format.HumanTime(a.ModTime, "Never")})
		}
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"NAME", "COMPAT", "SIZE", "MODIFIED"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

// ListHandler - Listet alle verfuegbaren Adapter auf
func ListHandler(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	adapters, err := client.List(cmd.Context())
	if err != nil {
		return err
	}

	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}
	renderAdapterTable(adapters.Adapters, prefix)

	return nil
}

// RefreshHandler - Scannt das Adapter-Verzeichnis neu
func RefreshHandler(cmd *cobra.Command, _ []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	adapters, err := client.Refresh(cmd.Context())
	if err != nil {
		return err
	}

	renderAdapterTable(adapters.Adapters, "")

	return nil
}

// ShowHandler - Zeigt Details eines Adapters an
func ShowHandler(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	resp, err := client.Show(cmd.Context(), &api.ShowRequest{Name: args[0]})
	if err != nil {
		return err
	}

	fmt.Printf("  Name        %s\n", resp.Name)
	if resp.Alias != "" && resp.Alias != resp.Name {
		fmt.Printf("  Alias       %s\n", resp.Alias)
	}
	fmt.Printf("  File        %s\n", resp.Filename)
	if resp.Compat != "" {
		fmt.Printf("  Compat      %s\n", resp.Compat)
	}
	fmt.Printf("  Size        %s\n", format.HumanBytes2(uint64(resp.Size)))
	if resp.ShortHash != "" {
		fmt.Printf("  Hash        %s\n", resp.ShortHash)
	}
	fmt.Printf("  Modified    %s\n", format.HumanTimeLower(resp.ModTime, "never"))

	if len(resp.Metadata) > 0 {
		keys := make([]string, 0, len(resp.Metadata))
		for k := range resp.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Println()
		fmt.Println("  Metadata")
		for _, k := range keys {
			v := resp.Metadata[k]
			if len(v) > 80 {
				v = v[:77] + "..."
			}
			fmt.Printf("    %-32s %s\n", k, v)
		}
	}

	return nil
}
