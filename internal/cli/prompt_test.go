package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(strings.TrimSpace(tc.input), func(t *testing.T) {
			cmd := &cobra.Command{}
			out := new(bytes.Buffer)
			cmd.SetIn(strings.NewReader(tc.input))
			cmd.SetOut(out)

			assert.Equal(t, tc.want, confirm(cmd, "Remove?"))
			assert.Contains(t, out.String(), "Remove?")
		})
	}
}
