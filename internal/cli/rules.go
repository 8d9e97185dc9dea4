package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aretw0/fieldwatch/pkg/core"
	"github.com/aretw0/fieldwatch/pkg/settings"
)

func newRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and edit the watch rules of the vault",
	}

	cmd.AddCommand(
		newRulesListCommand(),
		newRulesAddHeaderCommand(),
		newRulesAddActionCommand(),
		newRulesRemoveCommand(),
		newRulesToggleCommand("enable", "Enable a rule (KIND is header or action)", true),
		newRulesToggleCommand("disable", "Disable a rule without removing it", false),
	)
	return cmd
}

func newRulesListCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List header and action rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := settingsStore(cmd)
			if err != nil {
				return err
			}
			st, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"header_rules": st.HeaderRules,
					"action_rules": st.ActionRules,
				})
			}

			if len(st.HeaderRules)+len(st.ActionRules) == 0 {
				fmt.Fprintln(out, muted.Render("No rules configured in "+store.Path))
				return nil
			}

			var rows [][]string
			for i, r := range st.HeaderRules {
				rows = append(rows, []string{string(core.KindHeader), strconv.Itoa(i), r.Field, activeLabel(r.Active), r.Header})
			}
			for i, r := range st.ActionRules {
				rows = append(rows, []string{string(core.KindAction), strconv.Itoa(i), r.Field, activeLabel(r.Active), r.Action})
			}
			fmt.Fprintln(out, renderTable([]string{"KIND", "#", "FIELD", "ACTIVE", "TARGET"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output rules as JSON")
	return cmd
}

func newRulesAddHeaderCommand() *cobra.Command {
	var inactive bool

	cmd := &cobra.Command{
		Use:   "add-header FIELD HEADER",
		Short: "Keep the body line starting with HEADER in sync with FIELD",
		Example: `  fieldwatch rules add-header status "**Status:**"
  fieldwatch rules add-header due "## Due"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rule := core.HeaderRule{
				RuleBase: core.RuleBase{Field: args[0], Active: !inactive},
				Header:   args[1],
			}
			if rule.Header == "" {
				return fmt.Errorf("header text cannot be empty")
			}
			return editSettings(cmd, fmt.Sprintf("added header rule on %q", rule.Field), func(st *settings.Settings) error {
				st.AddHeaderRule(rule)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&inactive, "inactive", false, "add the rule disabled")
	return cmd
}

func newRulesAddActionCommand() *cobra.Command {
	var inactive bool

	cmd := &cobra.Command{
		Use:   "add-action FIELD ACTION",
		Short: "Run ACTION whenever FIELD changes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rule := core.ActionRule{
				RuleBase: core.RuleBase{Field: args[0], Active: !inactive},
				Action:   args[1],
			}
			return editSettings(cmd, fmt.Sprintf("added action rule on %q", rule.Field), func(st *settings.Settings) error {
				known := false
				for _, def := range st.Actions {
					known = known || def.ID == rule.Action
				}
				if !known {
					fmt.Fprintln(cmd.ErrOrStderr(), muted.Render(fmt.Sprintf("note: action %q is not defined in the settings file", rule.Action)))
				}
				st.AddActionRule(rule)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&inactive, "inactive", false, "add the rule disabled")
	return cmd
}

func newRulesRemoveCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove KIND INDEX",
		Short: "Remove a rule (KIND is header or action)",
		Long: `Remove a rule by kind and index as shown by "rules list".
On a terminal the removal must be confirmed unless --yes is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, index, err := parseRuleRef(args)
			if err != nil {
				return err
			}
			if !yes && interactive() && !confirm(cmd, fmt.Sprintf("Remove %s rule %d?", kind, index)) {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}
			return editSettings(cmd, fmt.Sprintf("removed %s rule %d", kind, index), func(st *settings.Settings) error {
				return st.RemoveRule(kind, index)
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "remove without asking")
	return cmd
}

func newRulesToggleCommand(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " KIND INDEX",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, index, err := parseRuleRef(args)
			if err != nil {
				return err
			}
			return editSettings(cmd, fmt.Sprintf("%sd %s rule %d", use, kind, index), func(st *settings.Settings) error {
				return st.SetActive(kind, index, active)
			})
		},
	}
}

func editSettings(cmd *cobra.Command, summary string, fn func(*settings.Settings) error) error {
	store, err := settingsStore(cmd)
	if err != nil {
		return err
	}
	if err := store.Update(cmd.Context(), fn); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), summary)
	return nil
}

func parseRuleRef(args []string) (core.RuleKind, int, error) {
	kind, err := settings.ParseKind(args[0])
	if err != nil {
		return "", 0, err
	}
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return "", 0, fmt.Errorf("invalid rule index %q", args[1])
	}
	return kind, index, nil
}

func activeLabel(active bool) string {
	if active {
		return accent.Render("yes")
	}
	return muted.Render("no")
}
