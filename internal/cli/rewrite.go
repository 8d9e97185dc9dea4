package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/fieldwatch/internal/fsutil"
	"github.com/aretw0/fieldwatch/pkg/adapters/fs"
	"github.com/aretw0/fieldwatch/pkg/header"
)

func newRewriteCommand() *cobra.Command {
	var (
		field string
		write bool
	)

	cmd := &cobra.Command{
		Use:   "rewrite FILE HEADER [VALUE]",
		Short: "Rewrite the first body line starting with HEADER",
		Long: `Rewrite the first body line of FILE starting with HEADER to "HEADER VALUE".

VALUE is taken literally, or read from the front-matter with --field.
The result is printed unless --write replaces the file in place.`,
		Example: `  fieldwatch rewrite notes/task.md "Status:" done
  fieldwatch rewrite --field due --write notes/task.md "## Due"`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, head := args[0], args[1]
			if (len(args) == 3) == (field != "") {
				return &ExitError{Code: 2, Err: errors.New("provide exactly one of VALUE or --field")}
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			var value any
			if field != "" {
				doc, err := fs.NewMarkdownSerializer().Parse(bytes.NewReader(data))
				if err != nil {
					return fmt.Errorf("failed to parse %s: %w", path, err)
				}
				v, ok := doc.Metadata[field]
				if !ok {
					return fmt.Errorf("field %q not found in %s", field, path)
				}
				value = v
			} else {
				value = args[2]
			}

			content, found := header.Rewrite(string(data), head, value)
			if !found {
				return &ExitError{Code: 1, Err: fmt.Errorf("no line starts with %q in %s", head, path)}
			}

			if !write {
				_, err := fmt.Fprint(cmd.OutOrStdout(), content)
				return err
			}
			if content == string(data) {
				return nil
			}
			return fsutil.WriteFileAtomic(path, []byte(content), fsutil.PreservePerm(path, 0644))
		},
	}

	f := cmd.Flags()
	f.StringVar(&field, "field", "", "take the value from this front-matter field")
	f.BoolVarP(&write, "write", "w", false, "replace the file in place")
	return cmd
}
