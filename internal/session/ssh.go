// Package session drives interactive CLI sessions on network devices over SSH.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/cmoses01/DyaGram/internal/config"
	"github.com/cmoses01/DyaGram/internal/topology"
)

var (
	errTimeout        = errors.New("timed out waiting for prompt")
	genericPrompt     = regexp.MustCompile(`^[\w\-./:@()]+[>#]$`)
	passwordPrompt    = regexp.MustCompile(`(?i)password:\s*$`)
	commandErrorLines = []string{"% Invalid input", "% Incomplete command", "% Ambiguous command", "% Invalid command"}
)

type Options struct {
	Port           int
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

// Dialer opens sessions with a fixed set of credentials.
type Dialer struct {
	log   zerolog.Logger
	creds config.Credentials
	opts  Options
}

func NewDialer(log zerolog.Logger, creds config.Credentials, opts Options) *Dialer {
	if opts.Port <= 0 {
		opts.Port = 22
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 15 * time.Second
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 60 * time.Second
	}
	return &Dialer{log: log, creds: creds, opts: opts}
}

// Session is a logged-in interactive shell. It is not safe for concurrent use.
type Session struct {
	log        zerolog.Logger
	address    string
	secret     string
	cmdTimeout time.Duration

	client *ssh.Client
	shell  *ssh.Session
	stdin  io.WriteCloser

	chunks  chan []byte
	done    chan struct{}
	readErr error
	pending bytes.Buffer

	serverVersion string
	banner        string
	prompt        string
	promptRe      *regexp.Regexp

	closeOnce sync.Once
}

// Dial connects, authenticates, opens a PTY shell and waits for the first
// prompt. Credential rejection yields *topology.AuthenticationError; every
// other failure yields *topology.ConnectivityError.
func (d *Dialer) Dial(ctx context.Context, address string) (*Session, error) {
	host, port := address, strconv.Itoa(d.opts.Port)
	if h, p, err := net.SplitHostPort(address); err == nil {
		host, port = h, p
	}
	target := net.JoinHostPort(host, port)

	var banner string
	cfg := &ssh.ClientConfig{
		User: d.creds.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(d.creds.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = d.creds.Password
				}
				return answers, nil
			}),
		},
		// Network devices rarely have managed host keys.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		BannerCallback: func(message string) error {
			banner = message
			return nil
		},
		Timeout: d.opts.ConnectTimeout,
	}

	dialer := &net.Dialer{Timeout: d.opts.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, &topology.ConnectivityError{Address: address, Err: err}
	}

	deadline := time.Now().Add(d.opts.ConnectTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, target, cfg)
	if err != nil {
		_ = conn.Close()
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil, &topology.AuthenticationError{Address: address, Err: err}
		}
		return nil, &topology.ConnectivityError{Address: address, Err: err}
	}
	_ = conn.SetDeadline(time.Time{})
	client := ssh.NewClient(sshConn, chans, reqs)

	s, err := d.openShell(ctx, client, address)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	s.serverVersion = string(sshConn.ServerVersion())
	s.banner = banner
	return s, nil
}

func (d *Dialer) openShell(ctx context.Context, client *ssh.Client, address string) (*Session, error) {
	shell, err := client.NewSession()
	if err != nil {
		return nil, &topology.ConnectivityError{Address: address, Err: err}
	}
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 38400,
		ssh.TTY_OP_OSPEED: 38400,
	}
	if err := shell.RequestPty("vt100", 0, 511, modes); err != nil {
		return nil, &topology.ConnectivityError{Address: address, Err: fmt.Errorf("request pty: %w", err)}
	}
	stdin, err := shell.StdinPipe()
	if err != nil {
		return nil, &topology.ConnectivityError{Address: address, Err: err}
	}
	stdout, err := shell.StdoutPipe()
	if err != nil {
		return nil, &topology.ConnectivityError{Address: address, Err: err}
	}
	if err := shell.Shell(); err != nil {
		return nil, &topology.ConnectivityError{Address: address, Err: fmt.Errorf("start shell: %w", err)}
	}

	s := &Session{
		log:        d.log.With().Str("address", address).Logger(),
		address:    address,
		secret:     d.creds.EnableSecret,
		cmdTimeout: d.opts.CommandTimeout,
		client:     client,
		shell:      shell,
		stdin:      stdin,
		chunks:     make(chan []byte, 16),
		done:       make(chan struct{}),
	}
	go s.readLoop(stdout)

	out, err := s.readUntil(ctx, func(last string) bool { return genericPrompt.MatchString(last) })
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.setPrompt(lastLine(out))

	if _, err := s.Run(ctx, "terminal length 0"); err != nil && !errors.Is(err, topology.ErrProtocolUnsupported) {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) readLoop(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			s.readErr = err
			close(s.chunks)
			return
		}
	}
}

// readUntil accumulates output until done reports true for the last line.
func (s *Session) readUntil(ctx context.Context, done func(last string) bool) (string, error) {
	timer := time.NewTimer(s.cmdTimeout)
	defer timer.Stop()
	for {
		text := s.pending.String()
		if done(lastLine(text)) {
			s.pending.Reset()
			return text, nil
		}
		select {
		case <-ctx.Done():
			return text, &topology.ConnectivityError{Address: s.address, Err: ctx.Err()}
		case <-timer.C:
			return text, &topology.ConnectivityError{Address: s.address, Err: errTimeout}
		case chunk, ok := <-s.chunks:
			if !ok {
				err := s.readErr
				if err == nil || errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				return text, &topology.ConnectivityError{Address: s.address, Err: err}
			}
			s.pending.Write(bytes.ReplaceAll(chunk, []byte("\r"), nil))
		}
	}
}

func (s *Session) setPrompt(p string) {
	s.prompt = p
	base := strings.TrimRight(p, ">#")
	if i := strings.Index(base, "("); i > 0 {
		base = base[:i]
	}
	s.promptRe = regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `(\([^)]*\))?[>#]$`)
}

func (s *Session) atPrompt(last string) bool {
	return s.promptRe.MatchString(last)
}

// Run sends cmd and returns its output without the echoed command line and
// the trailing prompt. Device-side command rejections wrap
// topology.ErrProtocolUnsupported.
func (s *Session) Run(ctx context.Context, cmd string) (string, error) {
	if _, err := io.WriteString(s.stdin, cmd+"\n"); err != nil {
		return "", &topology.ConnectivityError{Address: s.address, Err: err}
	}
	raw, err := s.readUntil(ctx, s.atPrompt)
	if err != nil {
		return "", err
	}
	s.prompt = lastLine(raw)
	out := trimCommandOutput(raw, cmd)
	for _, marker := range commandErrorLines {
		if strings.Contains(out, marker) {
			return out, fmt.Errorf("%w: %q rejected by %s", topology.ErrProtocolUnsupported, cmd, s.address)
		}
	}
	s.log.Trace().Str("command", cmd).Int("bytes", len(out)).Msg("command completed")
	return out, nil
}

// Enable elevates to privileged mode using the enable secret. It is a no-op
// when the session is already privileged.
func (s *Session) Enable(ctx context.Context) error {
	if strings.HasSuffix(s.prompt, "#") {
		return nil
	}
	if _, err := io.WriteString(s.stdin, "enable\n"); err != nil {
		return &topology.ConnectivityError{Address: s.address, Err: err}
	}
	answered := false
	for attempt := 0; attempt < 4; attempt++ {
		raw, err := s.readUntil(ctx, func(last string) bool {
			return passwordPrompt.MatchString(last) || s.atPrompt(last)
		})
		if err != nil {
			return err
		}
		last := lastLine(raw)
		if s.atPrompt(last) {
			s.prompt = last
			break
		}
		reply := ""
		if !answered {
			reply, answered = s.secret, true
		}
		if _, err := io.WriteString(s.stdin, reply+"\n"); err != nil {
			return &topology.ConnectivityError{Address: s.address, Err: err}
		}
	}
	if !strings.HasSuffix(s.prompt, "#") {
		return &topology.AuthenticationError{Address: s.address, Err: errors.New("enable secret rejected")}
	}
	return nil
}

// Fingerprint returns the SSH server version, login banner and current
// prompt, which together usually identify the device OS.
func (s *Session) Fingerprint() string {
	return strings.Join([]string{s.serverVersion, s.banner, s.prompt}, "\n")
}

func (s *Session) Prompt() string { return s.prompt }

func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		_, _ = io.WriteString(s.stdin, "exit\n")
		_ = s.shell.Close()
		err = s.client.Close()
	})
	return err
}

func lastLine(text string) string {
	text = strings.TrimRight(text, " \t\n")
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	return strings.TrimSpace(text)
}

func trimCommandOutput(raw, cmd string) string {
	lines := strings.Split(raw, "\n")
	if len(lines) > 0 && strings.Contains(lines[0], strings.TrimSpace(cmd)) {
		lines = lines[1:]
	}
	if n := len(lines); n > 0 {
		lines = lines[:n-1]
	}
	return strings.Join(lines, "\n")
}
