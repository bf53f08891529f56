package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harrison/benchrun/internal/project"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <project-root>",
		Short: "Validate a test project without running it",
		Long: `Parse and validate a test project, checking that:
  - TestProject.json exists and carries a supported version
  - every declared case directory exists
  - every TestCase.json parses and names a command and process count

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateProject(args[0], cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}

	return cmd
}

// validateProject loads a project and checks every case specification.
func validateProject(root string, out io.Writer) error {
	p, err := project.Load(root)
	if err != nil {
		return err
	}
	if err := p.Check(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Project %s: %d cases, all specifications valid\n", p.Name, p.CountCases())
	return nil
}
