package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/fieldwatch"
	"github.com/aretw0/fieldwatch/pkg/actions"
	"github.com/aretw0/fieldwatch/pkg/core"
)

func newActionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List, search and run the actions available to rules",
	}
	cmd.AddCommand(
		newActionsListCommand(),
		newActionsPickCommand(),
		newActionsRunCommand(),
	)
	return cmd
}

// loadEngine builds an engine and loads the command actions of the settings file.
func loadEngine(cmd *cobra.Command) (*fieldwatch.Engine, error) {
	engine, err := newEngine(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := engine.Reload(cmd.Context()); err != nil {
		return nil, err
	}
	return engine, nil
}

func newActionsListCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			list := engine.Registry().Actions(cmd.Context())

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, muted.Render("No actions defined"))
				return nil
			}

			rows := make([][]string, len(list))
			for i, a := range list {
				rows[i] = []string{a.ID, a.Name}
			}
			fmt.Fprintln(out, renderTable([]string{"ID", "NAME"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output actions as JSON")
	return cmd
}

func newActionsPickCommand() *cobra.Command {
	var first bool

	cmd := &cobra.Command{
		Use:   "pick [QUERY]",
		Short: "Fuzzy-search actions by name",
		Long: `Rank actions by fuzzy similarity of their name to QUERY, best first.
With --first only the id of the best match is printed, for use in scripts:

  fieldwatch rules add-action status "$(fieldwatch actions pick --first notif)"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine(cmd)
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			matches := actions.Rank(query, engine.Registry().Actions(cmd.Context()))
			if len(matches) == 0 {
				return &ExitError{Code: 1, Err: fmt.Errorf("no action matches %q", query)}
			}

			out := cmd.OutOrStdout()
			if first {
				fmt.Fprintln(out, matches[0].Action.ID)
				return nil
			}

			rows := make([][]string, len(matches))
			for i, m := range matches {
				rows[i] = []string{highlight(m.Action.Name, m.Positions), m.Action.ID, strconv.Itoa(m.Score)}
			}
			fmt.Fprintln(out, renderTable([]string{"NAME", "ID", "SCORE"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&first, "first", false, "print only the id of the best match")
	return cmd
}

func newActionsRunCommand() *cobra.Command {
	var trigger core.Trigger

	cmd := &cobra.Command{
		Use:   "run ID",
		Short: "Invoke an action by id, as a rule would",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine(cmd)
			if err != nil {
				return err
			}

			err = engine.Registry().Invoke(cmd.Context(), args[0], trigger)
			if errors.Is(err, core.ErrUnknownAction) {
				return &ExitError{Code: 2, Err: err}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "action %s completed\n", args[0])
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&trigger.DocumentID, "document", "", "document id passed to the action")
	f.StringVar(&trigger.Field, "field", "", "field name passed to the action")
	f.Var(&anyValue{&trigger.Previous}, "previous", "previous value passed to the action")
	f.Var(&anyValue{&trigger.Current}, "value", "current value passed to the action")
	return cmd
}

// highlight renders the matched runes of name with the accent style.
func highlight(name string, positions []int) string {
	if len(positions) == 0 {
		return name
	}
	hit := make(map[int]bool, len(positions))
	for _, p := range positions {
		hit[p] = true
	}

	var sb strings.Builder
	for i, r := range []rune(name) {
		if hit[i] {
			sb.WriteString(accent.Render(string(r)))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// anyValue is a pflag.Value storing a string into an any.
type anyValue struct{ v *any }

func (a *anyValue) String() string {
	if a.v == nil || *a.v == nil {
		return ""
	}
	return core.FormatValue(*a.v)
}

func (a *anyValue) Set(s string) error {
	*a.v = s
	return nil
}

func (a *anyValue) Type() string { return "string" }
