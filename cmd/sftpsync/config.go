package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newConfigCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the effective configuration after merging the config file and
environment variables. The password is never printed, only whether the
connection settings are complete.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(root)
		},
	}

	return cmd
}

func runConfig(root *rootFlags) error {
	tools, _, logger, err := newToolset(root)
	if err != nil {
		return err
	}
	defer logger.Close()

	result := tools.GetConfig(nil)
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
