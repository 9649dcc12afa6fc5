package commands

import (
	"fmt"
	"strconv"

	"github.com/bryanchriswhite/AreaStream/internal/config"
	"github.com/spf13/cobra"
)

var selectCmd = &cobra.Command{
	Use:   "select INDEX",
	Short: "Choose the capture target used at the next start",
	Long: `Save a capture target by its index from "areastream list".

Screens and areas are saved by index. Windows are saved by executable path
and title, so the same window is found again after it is reopened.`,
	Example: `  # Capture the primary screen
  areastream select 0

  # Capture a custom area
  areastream select 2 --area 100,100,1280,720`,
	Args: cobra.ExactArgs(1),
	RunE: runSelect,
}

var selectArea string

func init() {
	rootCmd.AddCommand(selectCmd)

	selectCmd.Flags().StringVar(&selectArea, "area", "", "custom area as x,y,width,height")
}

func runSelect(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index: %s", args[0])
	}

	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	if selectArea != "" {
		area, err := config.ParseArea(selectArea)
		if err != nil {
			return err
		}
		if err := configMgr.Update(func(cfg *config.Config) {
			cfg.Capture.CustomArea = area
		}); err != nil {
			return fmt.Errorf("failed to save area: %w", err)
		}
	}

	ctrl, cleanup, err := newController(configMgr)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := ctrl.SetTargetByIndex(index); err != nil {
		return err
	}

	_, name := ctrl.Selection()
	fmt.Printf("✅ Selected %d: %s\n", index, name)
	return nil
}
