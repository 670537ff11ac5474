package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Inspect learned supplier templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known supplier templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		templates, err := env.Store.ListTemplates(cmd.Context())
		if err != nil {
			return err
		}
		if len(templates) == 0 {
			fmt.Println("no templates learned yet")
			return nil
		}

		fmt.Printf("%-30s %-30s %8s  %s\n", "KEY", "DISPLAY NAME", "SAMPLES", "UPDATED")
		for _, t := range templates {
			fmt.Printf("%-30s %-30s %8d  %s\n",
				t.SupplierKey, t.DisplayName, t.SamplesCount,
				t.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Show one supplier template in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		t, err := env.Store.GetTemplate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if t == nil {
			fmt.Printf("no template for key %q\n", args[0])
			return nil
		}

		fmt.Printf("Key:          %s\n", t.SupplierKey)
		fmt.Printf("Display name: %s\n", t.DisplayName)
		fmt.Printf("Samples:      %d\n", t.SamplesCount)
		fmt.Printf("Updated:      %s\n", t.UpdatedAt.Format("2006-01-02 15:04:05"))
		if t.CurrencyHint != "" {
			fmt.Printf("Currency:     %s\n", t.CurrencyHint)
		}
		if t.VATHint != nil {
			fmt.Printf("VAT rate:     %.1f%%\n", *t.VATHint)
		}
		if len(t.HeaderZones) > 0 {
			fmt.Println("Header zones:")
			fields := make([]string, 0, len(t.HeaderZones))
			for f := range t.HeaderZones {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			for _, f := range fields {
				z := t.HeaderZones[f]
				fmt.Printf("  %-16s x %.2f  y %.2f  w %.2f  h %.2f\n",
					f, z.X, z.Y, z.Width, z.Height)
			}
		}
		return nil
	},
}

func init() {
	templatesCmd.AddCommand(templatesListCmd, templatesShowCmd)
	rootCmd.AddCommand(templatesCmd)
}
