package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"blendflow/internal/batch"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate BATCH",
		Short:       "Validate a batch descriptor without running it",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := batch.Load(args[0])
			if err != nil {
				printValidation(cmd.ErrOrStderr(), err)
				return &exitError{code: 1}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Descriptor valid: %d jobs, workflow %s\n", len(desc.Entries()), desc.Mode())
			for _, input := range desc.Inputs() {
				fmt.Fprintf(out, "  %s -> %s (ratio %.2f, %s)\n", input.Name, input.Output, input.Ratio, input.Method)
			}
			return nil
		},
	}
}

func printValidation(w io.Writer, err error) {
	var verr *batch.ValidationError
	if !errors.As(err, &verr) {
		reportError(w, err)
		return
	}
	fmt.Fprintf(w, "Batch descriptor invalid (%d errors):\n", len(verr.Fields))
	for _, f := range verr.Fields {
		fmt.Fprintf(w, "  - %s\n", f.String())
	}
}
