// ABOUTME: Remote transport drivers running commands over SSH, adapted to the TransportDriver contract
// ABOUTME: remote-key authenticates with a private key file; remote-agent delegates to a running ssh-agent

package transport

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/taskerd/tasker/pkg/types"
)

// SSHConfig holds the per-driver connection parameters. Hostname is
// supplied per-task (from Task.Hostname); everything else is fixed for
// the lifetime of the driver, set once at CLI bootstrap.
type SSHConfig struct {
	User       string
	Port       int
	KeyFile    string // remote-key only
	Passphrase string // remote-key only
}

// keyDriver authenticates with a private key file.
type keyDriver struct {
	cfg SSHConfig
}

// NewKeyDriver creates the "remote-key" exec_type driver.
func NewKeyDriver(cfg SSHConfig) types.TransportDriver {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	return &keyDriver{cfg: cfg}
}

func (d *keyDriver) Run(ctx context.Context, hostname, command string, arguments []string, timeout time.Duration) (types.TransportResult, error) {
	keyData, err := os.ReadFile(d.cfg.KeyFile)
	if err != nil {
		return types.TransportResult{}, fmt.Errorf("remote-key: reading key file: %w", err)
	}

	var signer ssh.Signer
	if d.cfg.Passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(d.cfg.Passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyData)
	}
	if err != nil {
		return types.TransportResult{}, fmt.Errorf("remote-key: parsing private key: %w", err)
	}

	return runSSH(ctx, d.cfg, hostname, []ssh.AuthMethod{ssh.PublicKeys(signer)}, command, arguments, timeout)
}

// agentDriver authenticates through a running ssh-agent (SSH_AUTH_SOCK).
type agentDriver struct {
	cfg SSHConfig
}

// NewAgentDriver creates the "remote-agent" exec_type driver.
func NewAgentDriver(cfg SSHConfig) types.TransportDriver {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	return &agentDriver{cfg: cfg}
}

func (d *agentDriver) Run(ctx context.Context, hostname, command string, arguments []string, timeout time.Duration) (types.TransportResult, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return types.TransportResult{}, fmt.Errorf("remote-agent: SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return types.TransportResult{}, fmt.Errorf("remote-agent: dialing ssh-agent: %w", err)
	}
	defer conn.Close()

	client := agent.NewClient(conn)
	return runSSH(ctx, d.cfg, hostname, []ssh.AuthMethod{ssh.PublicKeysCallback(client.Signers)}, command, arguments, timeout)
}

// runSSH dials hostname, opens one session, and runs command+arguments,
// killing the session on timeout or cancellation.
func runSSH(ctx context.Context, cfg SSHConfig, hostname string, auth []ssh.AuthMethod, command string, arguments []string, timeout time.Duration) (types.TransportResult, error) {
	clientCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	address := fmt.Sprintf("%s:%d", hostname, cfg.Port)
	client, err := ssh.Dial("tcp", address, clientCfg)
	if err != nil {
		return types.TransportResult{}, fmt.Errorf("dialing %s: %w", address, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return types.TransportResult{}, fmt.Errorf("opening session on %s: %w", address, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	full := command
	for _, arg := range arguments {
		full += " " + shellQuote(arg)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- session.Run(full) }()

	select {
	case err := <-done:
		exitCode := 0
		if err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				exitCode = exitErr.ExitStatus()
			} else {
				return types.TransportResult{}, err
			}
		}
		return types.TransportResult{ExitCode: exitCode, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil

	case <-runCtx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return types.TransportResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), TimedOut: true}, nil
	}
}

// shellQuote wraps an argument in single quotes for the remote shell.
// The engine itself never builds shell strings from untrusted task
// fields beyond this point-of-no-return boundary required by the SSH
// wire protocol, which only accepts one command line per session.
func shellQuote(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\\', '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	out = append(out, '\'')
	return string(out)
}
