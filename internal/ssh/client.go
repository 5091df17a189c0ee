package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/Leonid-98/optimize-table/internal/logging"
	"github.com/Leonid-98/optimize-table/internal/parser"
	"github.com/Leonid-98/optimize-table/internal/target"
)

// DefaultConnectTimeout bounds TCP dial plus SSH handshake
const DefaultConnectTimeout = 30 * time.Second

// Result represents the outcome of executing a command on a target host
type Result struct {
	Target   target.Target // The target host where command was executed
	Lines    []string      // Standard output, one entry per line
	Stderr   string        // Standard error from the command
	ExitCode int           // Exit code returned by the command
	Duration time.Duration // Time taken to execute the command
}

// Client defines the interface for SSH operations
type Client interface {
	// Connect establishes an SSH connection to the target host
	Connect(ctx context.Context, target target.Target) error

	// Execute runs a command on the connected host and collects its output
	Execute(ctx context.Context, command string) (*Result, error)

	// Close terminates the SSH connection
	Close() error
}

// Factory creates a fresh, unconnected client
type Factory func() Client

// Options holds the settings shared by every connection of a run
type Options struct {
	Password        string
	ConnectTimeout  time.Duration
	KnownHostsFiles []string // checked in order; empty means the usual user and system files
	Logger          *logging.Logger
}

// SSHClient implements the Client interface using golang.org/x/crypto/ssh
type SSHClient struct {
	conn    *ssh.Client
	target  target.Target
	options Options
	logger  *logging.Logger
}

// NewClient creates a new SSH client instance
func NewClient(options Options) Client {
	logger := options.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if options.ConnectTimeout <= 0 {
		options.ConnectTimeout = DefaultConnectTimeout
	}
	return &SSHClient{options: options, logger: logger}
}

// NewFactory returns a Factory producing clients with options
func NewFactory(options Options) Factory {
	return func() Client {
		return NewClient(options)
	}
}

// Connect establishes an SSH connection to the target host
func (c *SSHClient) Connect(ctx context.Context, target target.Target) error {
	c.target = target
	startTime := time.Now()

	config := c.buildSSHConfig(target)
	address := target.Address()

	dialer := &net.Dialer{
		Timeout: c.options.ConnectTimeout,
	}

	netConn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	// The handshake has no context of its own; bound it with a deadline.
	if err := netConn.SetDeadline(time.Now().Add(c.options.ConnectTimeout)); err != nil {
		netConn.Close()
		return fmt.Errorf("failed to set handshake deadline for %s: %w", address, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, address, config)
	if err != nil {
		netConn.Close()
		return fmt.Errorf("SSH handshake failed for %s: %w", address, err)
	}

	if err := netConn.SetDeadline(time.Time{}); err != nil {
		sshConn.Close()
		return fmt.Errorf("failed to clear deadline for %s: %w", address, err)
	}

	c.conn = ssh.NewClient(sshConn, chans, reqs)
	c.logger.LogConnection(target, time.Since(startTime))

	return nil
}

// Execute runs a command on the connected host. It blocks until the remote
// side closes stdout or ctx is cancelled. A non-zero exit status is reported
// in the result, not as an error.
func (c *SSHClient) Execute(ctx context.Context, command string) (*Result, error) {
	result := &Result{
		Target: c.target,
	}

	if c.conn == nil {
		return result, fmt.Errorf("not connected to any host")
	}

	startTime := time.Now()
	defer func() {
		result.Duration = time.Since(startTime)
	}()

	session, err := c.conn.NewSession()
	if err != nil {
		return result, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	var stderr bytes.Buffer
	session.Stderr = &stderr

	stdout, err := session.StdoutPipe()
	if err != nil {
		return result, fmt.Errorf("failed to open stdout: %w", err)
	}

	if err := session.Start(command); err != nil {
		return result, fmt.Errorf("failed to start command: %w", err)
	}

	type collected struct {
		lines []string
		err   error
	}
	done := make(chan collected, 1)
	go func() {
		lines, readErr := parser.ReadLines(stdout)
		if readErr != nil {
			// Wait only returns once the remote side has finished writing.
			_, _ = io.Copy(io.Discard, stdout)
		}
		waitErr := session.Wait()
		if readErr != nil {
			done <- collected{lines, readErr}
			return
		}
		done <- collected{lines, waitErr}
	}()

	select {
	case out := <-done:
		result.Lines = out.lines
		result.Stderr = stderr.String()

		if out.err != nil {
			var exitErr *ssh.ExitError
			if errors.As(out.err, &exitErr) {
				result.ExitCode = exitErr.ExitStatus()
				return result, nil
			}
			return result, fmt.Errorf("SSH execution error: %w", out.err)
		}
		return result, nil

	case <-ctx.Done():
		// Closing the connection unblocks the reader goroutine.
		_ = session.Signal(ssh.SIGTERM)
		_ = c.conn.Close()
		out := <-done
		result.Lines = out.lines
		result.Stderr = stderr.String()
		return result, fmt.Errorf("command execution canceled: %w", ctx.Err())
	}
}

// Close terminates the SSH connection
func (c *SSHClient) Close() error {
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		if err != nil && !errors.Is(err, net.ErrClosed) {
			c.logger.Error("SSH connection close error", "error", err, "server", c.target.String())
		}
	}
	return nil
}

// buildSSHConfig creates an SSH client configuration with the run's password
func (c *SSHClient) buildSSHConfig(target target.Target) *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User:            target.User,
		Auth:            []ssh.AuthMethod{ssh.Password(c.options.Password)},
		HostKeyCallback: c.getHostKeyCallback(),
		Timeout:         c.options.ConnectTimeout,
	}
}

// knownHostsFiles returns the candidate known_hosts files in lookup order
func (c *SSHClient) knownHostsFiles() []string {
	if len(c.options.KnownHostsFiles) > 0 {
		return c.options.KnownHostsFiles
	}
	var files []string
	if homeDir, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(homeDir, ".ssh", "known_hosts"))
	}
	return append(files, "/etc/ssh/ssh_known_hosts")
}

// getHostKeyCallback verifies host keys against the first readable known_hosts
// file. Hosts missing from it, or every host when no file exists, are accepted
// with a warning. A key that differs from the recorded one is rejected.
func (c *SSHClient) getHostKeyCallback() ssh.HostKeyCallback {
	for _, file := range c.knownHostsFiles() {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if hostKeyCallback, err := knownhosts.New(file); err == nil {
			return c.acceptUnknownHosts(hostKeyCallback)
		}
	}

	return ssh.HostKeyCallback(func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		c.logger.LogConnectionWarning(hostname, "host key accepted without verification: no known_hosts file available")
		return nil
	})
}

// acceptUnknownHosts wraps verify so that a host with no known_hosts entry is
// accepted. Mismatched and revoked keys still fail.
func (c *SSHClient) acceptUnknownHosts(verify ssh.HostKeyCallback) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := verify(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if errors.As(err, &keyErr) && len(keyErr.Want) == 0 {
			c.logger.LogConnectionWarning(hostname, "host key accepted without verification: host not in known_hosts")
			return nil
		}
		return err
	}
}
