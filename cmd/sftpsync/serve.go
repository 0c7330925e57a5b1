package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tturner/sftpsync/internal/agent"
)

// maxFrameSize bounds one request line on stdin.
const maxFrameSize = 4 * 1024 * 1024

func newServeCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve operations over stdin/stdout",
		Long: `Run the operation dispatcher over standard input and output for a
driving agent or automation client.

Each request is one JSON object per line:

  {"id": 1, "op": "sync_directory", "args": {"check_hash": true}}

and each response is one JSON object per line:

  {"id": 1, "result": {...}}

Failures are reported inside the result payload (an "error" field); a
malformed request line produces an error response and the loop
continues. Logs go to stderr so the stdout stream stays clean.`,
		Example: `  # Start the server for an agent to drive
  TARGET_HOST=10.0.0.5 TARGET_USERNAME=deploy TARGET_PASSWORD=... sftpsync serve

  # One-shot request from a shell
  echo '{"op":"get_config"}' | sftpsync serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(root)
		},
	}
}

func runServe(root *rootFlags) error {
	tools, cfg, logger, err := newToolset(root)
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.LogStartup(cfg.TargetHost, cfg.TargetPort, cfg.TargetUsername,
		cfg.LocalPath, cfg.RemotePath, len(cfg.IgnorePatterns))

	return runAgentLoop(os.Stdin, os.Stdout, tools.Registry())
}

type agentRequest struct {
	ID   json.RawMessage `json:"id"`
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args"`
}

type agentResponse struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result any             `json:"result"`
}

// runAgentLoop reads newline-delimited JSON requests and writes one
// response line per request. The loop only stops on EOF or a broken
// output stream; bad requests are answered, not fatal.
func runAgentLoop(in io.Reader, out io.Writer, registry *agent.Registry) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)
	encoder := json.NewEncoder(out)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req agentRequest
		if err := json.Unmarshal(line, &req); err != nil {
			if encErr := encoder.Encode(agentResponse{Result: agent.Errorf("malformed request: %v", err)}); encErr != nil {
				return encErr
			}
			continue
		}

		resp := agentResponse{ID: req.ID, Result: registry.Dispatch(req.Op, req.Args)}
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read requests: %w", err)
	}
	return nil
}
