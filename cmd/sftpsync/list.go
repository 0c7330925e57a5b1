package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/tturner/sftpsync/internal/agent"
)

func newListCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ls [remote-dir]",
		Aliases: []string{"list"},
		Short:   "List the contents of a remote directory",
		Example: `  sftpsync ls

  sftpsync ls /srv/app`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			return runList(root, dir)
		},
	}

	return cmd
}

func runList(root *rootFlags, dir string) error {
	tools, cfg, logger, err := newToolset(root)
	if err != nil {
		return err
	}
	defer logger.Close()

	if dir == "" {
		dir = cfg.RemotePath
	}

	raw, err := json.Marshal(agent.ListRemoteDirectoryArgs{RemoteDirPath: dir})
	if err != nil {
		return err
	}

	result := tools.ListRemoteDirectory(raw)
	if errResult, ok := result.(agent.ErrorResult); ok {
		return fmt.Errorf("%s", errResult.Error)
	}
	res := result.(agent.ListResult)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Type", "Size", "Mode", "Modified"})
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, item := range res.Items {
		kind := "file"
		size := humanize.Bytes(item.Size)
		if item.IsDirectory {
			kind = "dir"
			size = "-"
		}
		modified := time.Unix(item.ModifiedTime, 0).Format("2006-01-02 15:04")
		table.Append([]string{item.Name, kind, size, item.Permissions, modified})
	}

	table.Render()
	fmt.Fprintf(os.Stdout, "\n%d items in %s\n", res.TotalItems, res.Directory)
	return nil
}
