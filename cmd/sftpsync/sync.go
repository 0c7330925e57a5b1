package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tturner/sftpsync/internal/agent"
)

type syncFlags struct {
	localDir      string
	remoteDir     string
	skipUnchanged bool
	checkHash     bool
}

func newSyncCmd(root *rootFlags) *cobra.Command {
	flags := &syncFlags{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize a local directory to the remote host",
		Long: `Walk the local directory tree and upload files to the remote host,
creating missing remote directories along the way.

Paths matching the configured ignore patterns (plus a .gitignore file
directly under the local root, if present) are skipped; ignored
directories are pruned entirely. Unchanged files are detected by size
and modification time (1 second tolerance) and skipped unless
--skip-unchanged=false. With --check-hash, files that still look equal
are compared by SHA-256 content digest, computed remotely via
sha256sum.

One file's failure never aborts the run; the result lists every
uploaded, skipped and ignored item plus per-file errors.`,
		Example: `  # Sync the configured LOCAL_PATH to REMOTE_PATH
  sftpsync sync

  # Sync an explicit pair of directories, re-uploading everything
  sftpsync sync --local ./site --remote /var/www/site --skip-unchanged=false

  # Catch content changes that size+mtime miss
  sftpsync sync --check-hash`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(root, flags)
		},
	}

	cmd.Flags().StringVar(&flags.localDir, "local", "", "Local directory (default: configured LOCAL_PATH)")
	cmd.Flags().StringVar(&flags.remoteDir, "remote", "", "Remote directory (default: configured REMOTE_PATH)")
	cmd.Flags().BoolVar(&flags.skipUnchanged, "skip-unchanged", true, "Skip files whose remote copy looks current")
	cmd.Flags().BoolVar(&flags.checkHash, "check-hash", false, "Also compare content digests before skipping")

	return cmd
}

func runSync(root *rootFlags, flags *syncFlags) error {
	tools, _, logger, err := newToolset(root)
	if err != nil {
		return err
	}
	defer logger.Close()

	args, err := json.Marshal(agent.SyncDirectoryArgs{
		LocalDir:      flags.localDir,
		RemoteDir:     flags.remoteDir,
		SkipUnchanged: &flags.skipUnchanged,
		CheckHash:     flags.checkHash,
	})
	if err != nil {
		return err
	}

	return printResult(tools.SyncDirectory(args))
}

// printResult renders a handler result on stdout, or turns its error
// variant into a command failure.
func printResult(result any) error {
	if errResult, ok := result.(agent.ErrorResult); ok {
		return fmt.Errorf("%s", errResult.Error)
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
