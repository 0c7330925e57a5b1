package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/tturner/sftpsync/internal/agent"
)

func newUploadCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <local-file> [remote-file]",
		Short: "Upload a single file to the remote host",
		Long: `Upload one local file over SFTP, creating missing remote parent
directories first.

When the remote path is omitted it is derived from the configured
LOCAL_PATH and REMOTE_PATH: a file under the local root maps to the
same relative path under the remote root.`,
		Example: `  sftpsync upload ./dist/app.tar.gz /srv/releases/app.tar.gz

  # Derive the remote path from the configured roots
  sftpsync upload ./src/main.go`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(root, args)
		},
	}
}

func runUpload(root *rootFlags, args []string) error {
	tools, _, logger, err := newToolset(root)
	if err != nil {
		return err
	}
	defer logger.Close()

	uploadArgs := agent.UploadFileArgs{LocalFilePath: args[0]}
	if len(args) > 1 {
		uploadArgs.RemoteFilePath = args[1]
	}

	raw, err := json.Marshal(uploadArgs)
	if err != nil {
		return err
	}
	return printResult(tools.UploadFile(raw))
}
