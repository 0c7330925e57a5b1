package agent

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tturner/sftpsync/internal/config"
	"github.com/tturner/sftpsync/internal/logging"
	"github.com/tturner/sftpsync/internal/syncer"
	"github.com/tturner/sftpsync/internal/transport"
)

// Tools binds the operation handlers to one configuration. Every
// remote operation dials a fresh session and closes it before
// returning; nothing is pooled or shared.
type Tools struct {
	cfg    config.Settings
	logger *logging.Logger
	dial   func() (transport.Session, error)
}

// NewTools creates the handler set for the given settings.
func NewTools(cfg config.Settings, logger *logging.Logger) *Tools {
	t := &Tools{cfg: cfg, logger: logger}
	t.dial = t.dialSSH
	return t
}

func (t *Tools) dialSSH() (transport.Session, error) {
	if err := t.cfg.Validate(); err != nil {
		return nil, err
	}
	return transport.Dial(t.cfg.TargetHost, transport.SSHOptions{
		Port:           t.cfg.TargetPort,
		User:           t.cfg.TargetUsername,
		Password:       t.cfg.TargetPassword,
		KeyFile:        t.cfg.KeyFile,
		KnownHostsFile: t.cfg.KnownHostsFile,
		ConnectTimeout: t.cfg.ConnectTimeout,
	})
}

// Registry returns the operation registry for this tool set.
func (t *Tools) Registry() *Registry {
	r := NewRegistry(t.logger)
	r.Register("sync_directory", t.SyncDirectory)
	r.Register("upload_file", t.UploadFile)
	r.Register("read_remote_file", t.ReadRemoteFile)
	r.Register("execute_remote_command", t.ExecuteRemoteCommand)
	r.Register("list_remote_directory", t.ListRemoteDirectory)
	r.Register("get_config", t.GetConfig)
	return r
}

// SyncDirectoryArgs are the arguments for sync_directory. Omitted
// paths fall back to the configured defaults.
type SyncDirectoryArgs struct {
	LocalDir      string `json:"local_dir"`
	RemoteDir     string `json:"remote_dir"`
	SkipUnchanged *bool  `json:"skip_unchanged"`
	CheckHash     bool   `json:"check_hash"`
}

// SyncDirectory synchronizes a local directory tree to the remote host.
func (t *Tools) SyncDirectory(raw json.RawMessage) any {
	var args SyncDirectoryArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Errorf("%v", err)
	}

	localDir := args.LocalDir
	if localDir == "" {
		localDir = t.cfg.LocalPath
	}
	remoteDir := args.RemoteDir
	if remoteDir == "" {
		remoteDir = t.cfg.RemotePath
	}

	opts := syncer.DefaultOptions()
	if args.SkipUnchanged != nil {
		opts.SkipUnchanged = *args.SkipUnchanged
	}
	opts.CheckHash = args.CheckHash

	planner := syncer.New(t.dial, t.cfg.IgnorePatterns, t.logger)
	result, err := planner.Sync(localDir, remoteDir, opts)
	if err != nil {
		return Errorf("Sync failed: %v", err)
	}
	return result
}

// UploadFileArgs are the arguments for upload_file.
type UploadFileArgs struct {
	LocalFilePath  string `json:"local_file_path"`
	RemoteFilePath string `json:"remote_file_path"`
}

// UploadResult is the success payload of upload_file.
type UploadResult struct {
	Success      bool   `json:"success"`
	LocalFile    string `json:"local_file"`
	RemoteFile   string `json:"remote_file"`
	FileSize     uint64 `json:"file_size"`
	UploadedSize uint64 `json:"uploaded_size"`
}

// UploadFile uploads a single file. When no remote path is given it is
// derived from the configured local/remote roots.
func (t *Tools) UploadFile(raw json.RawMessage) any {
	var args UploadFileArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Errorf("%v", err)
	}

	info, err := os.Stat(args.LocalFilePath)
	if err != nil {
		return Errorf("Local file does not exist: %s", args.LocalFilePath)
	}
	if !info.Mode().IsRegular() {
		return Errorf("Path is not a file: %s", args.LocalFilePath)
	}

	remotePath := args.RemoteFilePath
	if remotePath == "" {
		derived, err := t.deriveRemotePath(args.LocalFilePath)
		if err != nil {
			return Errorf("%v", err)
		}
		remotePath = derived
	}

	sess, err := t.dial()
	if err != nil {
		return Errorf("Upload failed: %v", err)
	}
	defer sess.Close()

	if dir := path.Dir(remotePath); dir != "" && dir != "." && dir != "/" {
		if err := ensureRemotePath(sess, dir); err != nil {
			return Errorf("Upload failed: %v", err)
		}
	}

	uploaded, err := sess.Put(args.LocalFilePath, remotePath)
	if err != nil {
		return Errorf("Upload failed: %v", err)
	}

	return UploadResult{
		Success:      true,
		LocalFile:    args.LocalFilePath,
		RemoteFile:   remotePath,
		FileSize:     uint64(info.Size()),
		UploadedSize: uploaded,
	}
}

// deriveRemotePath maps a local file under the configured local root to
// the matching path under the remote root.
func (t *Tools) deriveRemotePath(localFilePath string) (string, error) {
	if t.cfg.LocalPath == "" || t.cfg.RemotePath == "" {
		return "", fmt.Errorf("Remote path not specified and no default paths configured")
	}
	rel, err := filepath.Rel(t.cfg.LocalPath, localFilePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("Cannot determine remote path. Please specify remote_file_path")
	}
	return path.Join(t.cfg.RemotePath, filepath.ToSlash(rel)), nil
}

// ensureRemotePath creates every missing /-prefix of a remote directory.
func ensureRemotePath(sess transport.Session, remoteDir string) error {
	current := ""
	for _, part := range strings.Split(remoteDir, "/") {
		if part == "" {
			continue
		}
		if current == "" && !strings.HasPrefix(remoteDir, "/") {
			current = part
		} else {
			current += "/" + part
		}
		_, found, err := sess.Stat(current)
		if err != nil {
			return err
		}
		if !found {
			if err := sess.Mkdir(current); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadRemoteFileArgs are the arguments for read_remote_file.
type ReadRemoteFileArgs struct {
	RemoteFilePath string `json:"remote_file_path"`
	Encoding       string `json:"encoding"`
}

// ReadResult is the success payload of read_remote_file.
type ReadResult struct {
	Success  bool   `json:"success"`
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
	FileSize uint64 `json:"file_size"`
	Encoding string `json:"encoding"`
}

// ReadRemoteFile reads a remote file and decodes it as text.
func (t *Tools) ReadRemoteFile(raw json.RawMessage) any {
	var args ReadRemoteFileArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Errorf("%v", err)
	}
	if args.RemoteFilePath == "" {
		return Errorf("remote_file_path is required")
	}
	encoding := args.Encoding
	if encoding == "" {
		encoding = "utf-8"
	}

	sess, err := t.dial()
	if err != nil {
		return Errorf("Failed to read remote file: %v", err)
	}
	defer sess.Close()

	f, err := sess.Open(args.RemoteFilePath)
	if err != nil {
		return Errorf("%v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Errorf("Failed to read remote file: %v", err)
	}

	content, err := decodeText(data, encoding)
	if err != nil {
		return Errorf("Failed to decode file with %s encoding: %v", encoding, err)
	}

	return ReadResult{
		Success:  true,
		FilePath: args.RemoteFilePath,
		Content:  content,
		FileSize: uint64(len(data)),
		Encoding: encoding,
	}
}

// ExecuteRemoteCommandArgs are the arguments for execute_remote_command.
type ExecuteRemoteCommandArgs struct {
	Command          string `json:"command"`
	WorkingDirectory string `json:"working_directory"`
}

// ExecResult is the success payload of execute_remote_command.
type ExecResult struct {
	Success          bool   `json:"success"`
	Command          string `json:"command"`
	ExitCode         int    `json:"exit_code"`
	Stdout           string `json:"stdout"`
	Stderr           string `json:"stderr"`
	WorkingDirectory string `json:"working_directory"`
}

// ExecuteRemoteCommand runs a shell command on the remote host.
func (t *Tools) ExecuteRemoteCommand(raw json.RawMessage) any {
	var args ExecuteRemoteCommandArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Errorf("%v", err)
	}
	if args.Command == "" {
		return Errorf("command is required")
	}

	sess, err := t.dial()
	if err != nil {
		return Errorf("Command execution failed: %v", err)
	}
	defer sess.Close()

	exitCode, stdout, stderr, err := sess.Exec(args.Command, args.WorkingDirectory)
	if err != nil {
		return Errorf("Command execution failed: %v", err)
	}

	return ExecResult{
		Success:          true,
		Command:          args.Command,
		ExitCode:         exitCode,
		Stdout:           stdout,
		Stderr:           stderr,
		WorkingDirectory: args.WorkingDirectory,
	}
}

// ListRemoteDirectoryArgs are the arguments for list_remote_directory.
type ListRemoteDirectoryArgs struct {
	RemoteDirPath string `json:"remote_dir_path"`
}

// ListResult is the success payload of list_remote_directory.
type ListResult struct {
	Success    bool                 `json:"success"`
	Directory  string               `json:"directory"`
	Items      []transport.DirEntry `json:"items"`
	TotalItems int                  `json:"total_items"`
}

// ListRemoteDirectory lists the contents of a remote directory.
func (t *Tools) ListRemoteDirectory(raw json.RawMessage) any {
	var args ListRemoteDirectoryArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Errorf("%v", err)
	}
	if args.RemoteDirPath == "" {
		return Errorf("remote_dir_path is required")
	}

	sess, err := t.dial()
	if err != nil {
		return Errorf("Failed to list directory: %v", err)
	}
	defer sess.Close()

	items, err := sess.ListDir(args.RemoteDirPath)
	if err != nil {
		return Errorf("%v", err)
	}

	return ListResult{
		Success:    true,
		Directory:  args.RemoteDirPath,
		Items:      items,
		TotalItems: len(items),
	}
}

// GetConfig returns the redacted configuration snapshot. The secret is
// never included.
func (t *Tools) GetConfig(json.RawMessage) any {
	return t.cfg.Redacted()
}
