package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// interactive reports whether both stdin and stdout are terminals.
func interactive() bool {
	return isTerminal(os.Stdout) && isTerminal(os.Stdin)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// confirm asks a yes/no question on the command streams. Anything but
// "y" or "yes" is a no.
func confirm(cmd *cobra.Command, message string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s ", message, muted.Render("[y/N]"))
	response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
