package util

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bacalhau-project/contractnet/cmd/util/output"
	"github.com/bacalhau-project/contractnet/pkg/cnerrors"
)

var Fatal = fatalError

func fatalError(cmd *cobra.Command, err error, code int) {
	if msg := err.Error(); msg != "" {
		if !strings.HasSuffix(msg, "\n") {
			msg += "\n"
		}
		cmd.PrintErr(output.RedStr(msg))
	}
	var cnErr cnerrors.Error
	if errors.As(err, &cnErr) && cnErr.Hint() != "" {
		cmd.PrintErrln("Hint: " + cnErr.Hint())
	}
	os.Exit(code)
}
