package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// layoutCmd prints the memory layout and variable registry of a machine.
var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Dump a machine's memory layout and variables",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, err := loadPipeline()
		if err != nil {
			return err
		}
		dump, err := pipeline.DumpLayout()
		if err != nil {
			return err
		}
		fmt.Print(dump)

		vars, err := pipeline.Variables()
		if err != nil {
			return err
		}
		fmt.Println("variables:")
		for _, name := range vars.Names() {
			spec, _ := vars.Spec(name)
			kind, err := vars.Kind(name)
			if err != nil {
				return err
			}
			fmt.Printf("  %-16s %-4s %s\n", name, kind, spec.Path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(layoutCmd)
}
