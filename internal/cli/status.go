package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	var (
		jsonOutput bool
		diagram    bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Seed the vault once and report what the engine sees",
		Long: `Open every matching document without reacting, then print the engine
state: documents and fields tracked, rules and actions loaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := newEngine(cmd)
			if err != nil {
				return err
			}
			rules, err := engine.Reload(cmd.Context())
			if err != nil {
				return err
			}
			n, err := engine.Seed(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case diagram:
				fmt.Fprintln(out, engine.Diagram())
				return nil
			case jsonOutput:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(engine.State())
			}

			rows := [][]string{
				{"vault", accent.Render(engine.Path)},
				{"settings", engine.Settings().Path},
				{"documents", fmt.Sprint(n)},
				{"header rules", fmt.Sprint(len(rules.Headers))},
				{"action rules", fmt.Sprint(len(rules.Actions))},
				{"actions", fmt.Sprint(len(engine.Registry().Actions(cmd.Context())))},
				{"tracked fields", fmt.Sprint(engine.Cache().Len())},
			}
			fmt.Fprintln(out, renderTable([]string{"ITEM", "VALUE"}, rows))
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&jsonOutput, "json", false, "output the engine state as JSON")
	f.BoolVar(&diagram, "diagram", false, "output the engine topology as a Mermaid diagram")
	return cmd
}
