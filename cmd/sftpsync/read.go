package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tturner/sftpsync/internal/agent"
)

type readFlags struct {
	encoding string
}

func newReadCmd(root *rootFlags) *cobra.Command {
	flags := &readFlags{}

	cmd := &cobra.Command{
		Use:   "read <remote-file>",
		Short: "Read a remote file and print its contents",
		Example: `  sftpsync read /etc/hostname

  sftpsync read /srv/app/legacy.txt --encoding latin-1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(root, flags, args[0])
		},
	}

	cmd.Flags().StringVar(&flags.encoding, "encoding", "utf-8", "Text encoding: utf-8|ascii|latin-1")

	return cmd
}

func runRead(root *rootFlags, flags *readFlags, remotePath string) error {
	tools, _, logger, err := newToolset(root)
	if err != nil {
		return err
	}
	defer logger.Close()

	raw, err := json.Marshal(agent.ReadRemoteFileArgs{
		RemoteFilePath: remotePath,
		Encoding:       flags.encoding,
	})
	if err != nil {
		return err
	}

	result := tools.ReadRemoteFile(raw)
	if errResult, ok := result.(agent.ErrorResult); ok {
		return fmt.Errorf("%s", errResult.Error)
	}
	read := result.(agent.ReadResult)
	fmt.Fprint(os.Stdout, read.Content)
	return nil
}
