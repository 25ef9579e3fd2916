// Package restconf queries device YANG data over RESTCONF (RFC 8040).
package restconf

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cmoses01/DyaGram/internal/config"
	"github.com/cmoses01/DyaGram/internal/topology"
)

const mediaType = "application/yang-data+json"

type Options struct {
	Port               int
	Timeout            time.Duration
	InsecureSkipVerify bool
	// Scheme defaults to https. Tests use http.
	Scheme     string
	HTTPClient *http.Client
}

// Client issues authenticated RESTCONF GETs. It is safe for concurrent use.
type Client struct {
	creds  config.Credentials
	port   int
	scheme string
	http   *http.Client
}

func NewClient(creds config.Credentials, opts Options) *Client {
	port := opts.Port
	if port <= 0 {
		port = 443
	}
	scheme := opts.Scheme
	if scheme == "" {
		scheme = "https"
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		hc = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig:     &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify},
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 2,
			},
		}
	}
	return &Client{creds: creds, port: port, scheme: scheme, http: hc}
}

// URL returns the RESTCONF data URL of path on address.
func (c *Client) URL(address, path string) string {
	host := address
	if _, _, err := net.SplitHostPort(address); err != nil {
		if !(c.scheme == "https" && c.port == 443) && !(c.scheme == "http" && c.port == 80) {
			host = net.JoinHostPort(address, strconv.Itoa(c.port))
		}
	}
	return fmt.Sprintf("%s://%s/restconf/data/%s", c.scheme, host, path)
}

// Get fetches path from address and decodes the JSON body into out.
//
// Errors are classified: 401/403 yield *topology.AuthenticationError,
// 400/404/405/501 wrap topology.ErrProtocolUnsupported, transport failures
// yield *topology.ConnectivityError.
func (c *Client) Get(ctx context.Context, address, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(address, path), nil)
	if err != nil {
		return fmt.Errorf("build restconf request: %w", err)
	}
	req.SetBasicAuth(c.creds.Username, c.creds.Password)
	req.Header.Set("Accept", mediaType)

	resp, err := c.http.Do(req)
	if err != nil {
		return &topology.ConnectivityError{Address: address, Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(address, path, resp.StatusCode); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return err
	}
	if resp.StatusCode == http.StatusNoContent {
		return fmt.Errorf("%w: %s returned no content", topology.ErrProtocolUnsupported, path)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return &topology.ConnectivityError{Address: address, Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &topology.ParseError{Command: path, Reason: err.Error()}
	}
	return nil
}

func classifyStatus(address, path string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &topology.AuthenticationError{Address: address, Err: fmt.Errorf("restconf %s: status %d", path, status)}
	case status == http.StatusBadRequest, status == http.StatusNotFound,
		status == http.StatusMethodNotAllowed, status == http.StatusNotImplemented:
		return fmt.Errorf("%w: restconf %s: status %d", topology.ErrProtocolUnsupported, path, status)
	default:
		return &topology.ConnectivityError{Address: address, Err: fmt.Errorf("restconf %s: status %d", path, status)}
	}
}

// IsUnsupported reports whether err means the device lacks the model or API.
func IsUnsupported(err error) bool {
	return errors.Is(err, topology.ErrProtocolUnsupported)
}
