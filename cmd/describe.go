package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jandubois/smokecheck/internal/probe"
	"github.com/jandubois/smokecheck/internal/smoke"
)

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version and exit")
	rootCmd.Flags().Bool("describe", false, "Output the probe battery as a JSON array")

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Fprintf(cmd.OutOrStdout(), "smokecheck version %s\n", Version)
			return nil
		}
		if describe, _ := cmd.Flags().GetBool("describe"); describe {
			return printDescriptions(cmd.OutOrStdout())
		}
		return cmd.Help()
	}
}

func printDescriptions(w io.Writer) error {
	specs := smoke.Specs()
	descs := make([]probe.Description, len(specs))
	for i, s := range specs {
		descs[i] = s.Describe()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(descs)
}
