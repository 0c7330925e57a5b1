package transport

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	syncerrors "github.com/tturner/sftpsync/internal/errors"
)

// SSHOptions configures connection establishment.
type SSHOptions struct {
	Port               int
	User               string
	Password           string
	KeyFile            string
	KeyPassphrase      string
	KnownHostsFile     string
	InsecureIgnoreHost bool
	ConnectTimeout     time.Duration
}

// SSHSession implements Session over an SSH connection with an SFTP
// subsystem channel.
type SSHSession struct {
	host   string
	client *ssh.Client
	sftp   *sftp.Client
}

// Dial opens a fresh connection to host and starts the SFTP subsystem.
// Failures are reported as connection errors; nothing is retried.
func Dial(host string, opts SSHOptions) (*SSHSession, error) {
	if host == "" {
		return nil, syncerrors.Configuration("host is required")
	}

	config, err := buildSSHConfig(opts)
	if err != nil {
		return nil, err
	}

	port := opts.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	timeout := opts.ConnectTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, syncerrors.WrapConnection(err, host, port)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, syncerrors.WrapConnection(err, host, port)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, syncerrors.WrapConnection(err, host, port)
	}

	return &SSHSession{host: host, client: client, sftp: sftpClient}, nil
}

// buildSSHConfig builds the SSH client configuration.
func buildSSHConfig(opts SSHOptions) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	if opts.Password != "" {
		authMethods = append(authMethods, ssh.Password(opts.Password))
	}

	if opts.KeyFile != "" {
		keyAuth, err := publicKeyAuth(opts.KeyFile, opts.KeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("key file auth: %w", err)
		}
		authMethods = append(authMethods, keyAuth)
	}

	if agentAuth := sshAgentAuth(); agentAuth != nil {
		authMethods = append(authMethods, agentAuth)
	}

	if len(authMethods) == 0 {
		return nil, syncerrors.Configuration("no authentication methods available")
	}

	var hostKeyCallback ssh.HostKeyCallback
	if opts.InsecureIgnoreHost {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	} else if opts.KnownHostsFile != "" {
		var err error
		hostKeyCallback, err = knownhosts.New(opts.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("known hosts: %w", err)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			defaultKnownHosts := filepath.Join(home, ".ssh", "known_hosts")
			if _, err := os.Stat(defaultKnownHosts); err == nil {
				hostKeyCallback, _ = knownhosts.New(defaultKnownHosts)
			}
		}
		if hostKeyCallback == nil {
			hostKeyCallback = ssh.InsecureIgnoreHostKey()
		}
	}

	return &ssh.ClientConfig{
		User:            opts.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.ConnectTimeout,
	}, nil
}

// Stat returns metadata for a remote path; false means not found.
func (s *SSHSession) Stat(path string) (FileInfo, bool, error) {
	fi, err := s.sftp.Stat(path)
	if err != nil {
		if isNotExist(err) {
			return FileInfo{}, false, nil
		}
		return FileInfo{}, false, fmt.Errorf("stat %s: %w", path, err)
	}
	return FileInfo{
		Size:    uint64(fi.Size()),
		ModTime: float64(fi.ModTime().UnixNano()) / float64(time.Second),
		IsDir:   fi.IsDir(),
	}, true, nil
}

// Mkdir creates one directory level. Concurrent syncs may race on the
// same path, so an already-existing directory is tolerated.
func (s *SSHSession) Mkdir(path string) error {
	if err := s.sftp.Mkdir(path); err != nil {
		if fi, statErr := s.sftp.Stat(path); statErr == nil && fi.IsDir() {
			return nil
		}
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// Put uploads a local file and returns the remote size after transfer.
func (s *SSHSession) Put(localPath, remotePath string) (uint64, error) {
	localFile, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("open local file: %w", err)
	}
	defer localFile.Close()

	remoteFile, err := s.sftp.Create(remotePath)
	if err != nil {
		return 0, fmt.Errorf("create remote file: %w", err)
	}

	if _, err := io.Copy(remoteFile, localFile); err != nil {
		remoteFile.Close()
		return 0, fmt.Errorf("copy: %w", err)
	}
	if err := remoteFile.Close(); err != nil {
		return 0, fmt.Errorf("close remote file: %w", err)
	}

	fi, err := s.sftp.Stat(remotePath)
	if err != nil {
		return 0, fmt.Errorf("stat uploaded file: %w", err)
	}
	return uint64(fi.Size()), nil
}

// Open opens a remote file for reading.
func (s *SSHSession) Open(path string) (io.ReadCloser, error) {
	f, err := s.sftp.Open(path)
	if err != nil {
		if isNotExist(err) {
			return nil, syncerrors.Path("file not found on remote server: %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// Exec runs a command through a one-off SSH session. A non-zero exit
// status is reported through the exit code, not as an error.
func (s *SSHSession) Exec(command, workingDir string) (int, string, string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return -1, "", "", fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	if workingDir != "" {
		command = fmt.Sprintf("cd %s && %s", workingDir, command)
	}

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	exitCode := 0
	if err := session.Run(command); err != nil {
		exitErr, ok := err.(*ssh.ExitError)
		if !ok {
			return -1, stdout.String(), stderr.String(), fmt.Errorf("run command: %w", err)
		}
		exitCode = exitErr.ExitStatus()
	}

	return exitCode, stdout.String(), stderr.String(), nil
}

// ListDir lists the immediate entries of a remote directory.
func (s *SSHSession) ListDir(path string) ([]DirEntry, error) {
	infos, err := s.sftp.ReadDir(path)
	if err != nil {
		if isNotExist(err) {
			return nil, syncerrors.Path("directory not found: %s", path)
		}
		return nil, fmt.Errorf("list %s: %w", path, err)
	}

	entries := make([]DirEntry, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, DirEntry{
			Name:         fi.Name(),
			Size:         uint64(fi.Size()),
			IsDirectory:  fi.IsDir(),
			Permissions:  fmt.Sprintf("%03o", fi.Mode().Perm()),
			ModifiedTime: fi.ModTime().Unix(),
		})
	}
	return entries, nil
}

// Close closes the SFTP channel and the SSH connection.
func (s *SSHSession) Close() error {
	var errs []error

	if s.sftp != nil {
		if err := s.sftp.Close(); err != nil {
			errs = append(errs, err)
		}
		s.sftp = nil
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			errs = append(errs, err)
		}
		s.client = nil
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// String returns a description of this session's endpoint.
func (s *SSHSession) String() string {
	return fmt.Sprintf("sftp://%s", s.host)
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || stderrors.Is(err, fs.ErrNotExist)
}

// sshAgentAuth returns an SSH agent authentication method when an agent
// socket is available.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil
	}

	agentClient := agent.NewClient(conn)
	return ssh.PublicKeysCallback(agentClient.Signers)
}

// publicKeyAuth returns a public key authentication method.
func publicKeyAuth(keyPath, passphrase string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(key)
	}
	if err != nil {
		return nil, err
	}

	return ssh.PublicKeys(signer), nil
}

// Ensure SSHSession implements Session
var _ Session = (*SSHSession)(nil)
