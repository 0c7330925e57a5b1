package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tturner/sftpsync/internal/agent"
)

type execFlags struct {
	workdir string
}

func newExecCmd(root *rootFlags) *cobra.Command {
	flags := &execFlags{}

	cmd := &cobra.Command{
		Use:   "exec <command>...",
		Short: "Execute a shell command on the remote host",
		Long: `Execute a shell command on the remote host over SSH and print its
stdout and stderr. The process exit status mirrors the remote command's
exit code.`,
		Example: `  sftpsync exec uptime

  sftpsync exec --workdir /srv/app -- ls -la`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(root, flags, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&flags.workdir, "workdir", "", "Remote working directory for the command")

	return cmd
}

func runExec(root *rootFlags, flags *execFlags, command string) error {
	tools, _, logger, err := newToolset(root)
	if err != nil {
		return err
	}
	defer logger.Close()

	raw, err := json.Marshal(agent.ExecuteRemoteCommandArgs{
		Command:          command,
		WorkingDirectory: flags.workdir,
	})
	if err != nil {
		return err
	}

	result := tools.ExecuteRemoteCommand(raw)
	if errResult, ok := result.(agent.ErrorResult); ok {
		return fmt.Errorf("%s", errResult.Error)
	}
	res := result.(agent.ExecResult)
	fmt.Fprint(os.Stdout, res.Stdout)
	fmt.Fprint(os.Stderr, res.Stderr)
	if res.ExitCode != 0 {
		return fmt.Errorf("remote command exited with status %d", res.ExitCode)
	}
	return nil
}
