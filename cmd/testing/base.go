package cmdtesting

import (
	"bytes"

	"github.com/spf13/cobra"

	"github.com/bacalhau-project/contractnet/cmd/cli"
)

// ExecuteTestCobraCommand runs the root command with args and returns what it printed.
func ExecuteTestCobraCommand(args ...string) (c *cobra.Command, output string, err error) {
	buf := new(bytes.Buffer)
	root := cli.NewRootCmd()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	c, err = root.ExecuteC()
	return c, buf.String(), err
}
