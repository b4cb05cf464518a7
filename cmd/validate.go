package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spindleci/spindle/pipeline"
)

var validateCmd = &cobra.Command{
	Use:   "validate [pipeline file]",
	Short: "validate a pipeline definition without running it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := defaultPipelineFile
		if len(args) == 1 {
			path = args[0]
		}

		def, graph, err := pipeline.Load(path)
		if err != nil {
			return err
		}

		fmt.Printf("pipeline %s is valid (%d stages)\n", def.Name, len(def.Stages))
		fmt.Printf("execution order: %s\n", strings.Join(graph.TopologicalOrder(), " -> "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
