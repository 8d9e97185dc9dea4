// fieldwatch watches the front-matter of a Markdown vault and reacts to
// changes of watched fields.
package main

import (
	"os"

	"github.com/aretw0/fieldwatch/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
