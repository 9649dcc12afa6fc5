package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/bryanchriswhite/AreaStream/internal/session"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List capture targets",
	Long: `List every capture target: screens, all screens, the custom area and the
open windows.

The index is what "areastream select" and the /api/target endpoint take.
Windows also show the key used to find them again after a restart.`,
	Example: `  # List targets in table format (default)
  areastream list

  # List targets in JSON format
  areastream list --format json`,
	RunE: runList,
}

var listFormat string

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table or json)")
}

func runList(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	ctrl, cleanup, err := newController(configMgr)
	if err != nil {
		return err
	}
	defer cleanup()

	targets := ctrl.Targets()
	selected, _ := ctrl.Selection()

	switch listFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]any{
			"selection": selected,
			"targets":   targets,
		})
	case "table":
		return printTargetsTable(targets, selected)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", listFormat)
	}
}

func printTargetsTable(targets []session.TargetInfo, selected int) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "\tINDEX\tNAME\tKIND\tKEY")
	fmt.Fprintln(w, "\t-----\t----\t----\t---")

	for _, t := range targets {
		marker := ""
		if t.Index == selected {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", marker, t.Index, t.Name, t.Kind, t.Key)
	}

	return nil
}
