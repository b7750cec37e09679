// Package msfrpc is a thin MessagePack-over-HTTP client for the Metasploit
// RPC daemon. It only covers the handful of methods the auditor consumes:
// auth.login, auth.logout, core.version, module.execute, module.info,
// module.options and job.list.
package msfrpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/msf-auditor/internal/config"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotConnected is returned when a call that needs an auth token is made
// before Login succeeded.
var ErrNotConnected = errors.New("not connected to Metasploit RPC, call Login first")

// RPCError is a server-side error envelope (error: true in the reply).
type RPCError struct {
	Class   string
	Message string
}

func (e *RPCError) Error() string {
	if e.Class != "" {
		return fmt.Sprintf("msfrpc: %s: %s", e.Class, e.Message)
	}
	return fmt.Sprintf("msfrpc: %s", e.Message)
}

// Version is the reply of core.version.
type Version struct {
	Version string
	Ruby    string
	API     string
}

// ExecResult is the reply of module.execute. Inline is set when the server
// returned no job id, meaning the module completed without spawning a job.
type ExecResult struct {
	JobID  int
	UUID   string
	Inline bool
}

// Client talks to a single msfrpcd instance. It is not safe for concurrent
// use; the CLI drives it from one goroutine only.
type Client struct {
	// Endpoint is the full URL of the RPC entry point, e.g.
	// https://127.0.0.1:55553/api/.
	Endpoint string

	// HTTPClient may be replaced in tests. Defaults to a 30s-timeout client.
	HTTPClient *http.Client

	username string
	password string
	token    string
}

// NewClient builds a client from the msf_config section. With ssl enabled
// the daemon serves a self-signed certificate, so verification is skipped.
func NewClient(cfg config.MSFConfig) *Client {
	scheme := "http"
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if cfg.SSL {
		scheme = "https"
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 -- msfrpcd uses a self-signed cert
		}
	}

	return &Client{
		Endpoint:   fmt.Sprintf("%s://%s:%d/api/", scheme, cfg.Host, cfg.Port),
		HTTPClient: httpClient,
		username:   cfg.Username,
		password:   cfg.Password,
	}
}

// Login authenticates with auth.login and stores the session token.
func (c *Client) Login(ctx context.Context) error {
	reply, err := c.call(ctx, "auth.login", c.username, c.password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	token, _ := reply["token"].(string)
	if token == "" {
		return fmt.Errorf("login: server returned no token (result=%v)", reply["result"])
	}

	c.token = token
	return nil
}

// Logout releases the session token. Server-side failure is tolerated; the
// token is cleared either way so the client cannot be reused accidentally.
func (c *Client) Logout(ctx context.Context) error {
	if c.token == "" {
		return nil
	}

	token := c.token
	c.token = ""

	if _, err := c.callWithToken(ctx, token, "auth.logout", token); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Connected reports whether a login token is held.
func (c *Client) Connected() bool {
	return c.token != ""
}

// CoreVersion queries core.version; used by doctor to probe reachability.
func (c *Client) CoreVersion(ctx context.Context) (Version, error) {
	if c.token == "" {
		return Version{}, ErrNotConnected
	}

	reply, err := c.callWithToken(ctx, c.token, "core.version")
	if err != nil {
		return Version{}, fmt.Errorf("core.version: %w", err)
	}

	return Version{
		Version: asString(reply["version"]),
		Ruby:    asString(reply["ruby"]),
		API:     asString(reply["api"]),
	}, nil
}

// ModuleExecute triggers module.execute for the given type and name. The
// reply carries a job id for background modules; its absence means the
// module ran inline.
func (c *Client) ModuleExecute(ctx context.Context, moduleType, name string, options map[string]interface{}) (ExecResult, error) {
	if c.token == "" {
		return ExecResult{}, ErrNotConnected
	}

	if options == nil {
		options = map[string]interface{}{}
	}

	reply, err := c.callWithToken(ctx, c.token, "module.execute", moduleType, name, options)
	if err != nil {
		return ExecResult{}, fmt.Errorf("module.execute %s/%s: %w", moduleType, name, err)
	}

	res := ExecResult{UUID: asString(reply["uuid"])}
	jobID, ok := asInt(reply["job_id"])
	if !ok {
		res.Inline = true
		return res, nil
	}
	res.JobID = jobID
	return res, nil
}

// ModuleInfo fetches module.info metadata (name, description, references).
func (c *Client) ModuleInfo(ctx context.Context, moduleType, name string) (map[string]interface{}, error) {
	if c.token == "" {
		return nil, ErrNotConnected
	}

	reply, err := c.callWithToken(ctx, c.token, "module.info", moduleType, name)
	if err != nil {
		return nil, fmt.Errorf("module.info %s/%s: %w", moduleType, name, err)
	}
	return reply, nil
}

// ModuleOptions fetches the option table of a module.
func (c *Client) ModuleOptions(ctx context.Context, moduleType, name string) (map[string]interface{}, error) {
	if c.token == "" {
		return nil, ErrNotConnected
	}

	reply, err := c.callWithToken(ctx, c.token, "module.options", moduleType, name)
	if err != nil {
		return nil, fmt.Errorf("module.options %s/%s: %w", moduleType, name, err)
	}
	return reply, nil
}

// JobList returns the currently running jobs as a job-id → name map.
func (c *Client) JobList(ctx context.Context) (map[string]string, error) {
	if c.token == "" {
		return nil, ErrNotConnected
	}

	reply, err := c.callWithToken(ctx, c.token, "job.list")
	if err != nil {
		return nil, fmt.Errorf("job.list: %w", err)
	}

	jobs := make(map[string]string, len(reply))
	for id, name := range reply {
		jobs[id] = asString(name)
	}
	return jobs, nil
}

// call issues a token-less request (only auth.login uses this form).
func (c *Client) call(ctx context.Context, method string, args ...interface{}) (map[string]interface{}, error) {
	payload := append([]interface{}{method}, args...)
	return c.post(ctx, payload)
}

// callWithToken issues [method, token, args...] as the protocol requires
// for every authenticated method.
func (c *Client) callWithToken(ctx context.Context, token, method string, args ...interface{}) (map[string]interface{}, error) {
	payload := append([]interface{}{method, token}, args...)
	return c.post(ctx, payload)
}

func (c *Client) post(ctx context.Context, payload []interface{}) (map[string]interface{}, error) {
	body, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "binary/message-pack")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// The daemon still encodes error envelopes on 401/500.
		if reply, decodeErr := decodeReply(raw); decodeErr == nil {
			if rpcErr := envelopeError(reply); rpcErr != nil {
				return nil, rpcErr
			}
		}
		return nil, fmt.Errorf("rpc status %d", resp.StatusCode)
	}

	reply, err := decodeReply(raw)
	if err != nil {
		return nil, err
	}
	if rpcErr := envelopeError(reply); rpcErr != nil {
		return nil, rpcErr
	}
	return reply, nil
}

func decodeReply(raw []byte) (map[string]interface{}, error) {
	var reply map[string]interface{}
	if err := msgpack.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return normalizeMap(reply), nil
}

func envelopeError(reply map[string]interface{}) *RPCError {
	flagged, _ := reply["error"].(bool)
	if !flagged {
		return nil
	}
	return &RPCError{
		Class:   asString(reply["error_class"]),
		Message: asString(reply["error_message"]),
	}
}

// normalize converts msgpack binary strings into Go strings so callers can
// type-assert without caring how the Ruby side encoded them.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case map[string]interface{}:
		return normalizeMap(t)
	case []interface{}:
		for i, item := range t {
			t[i] = normalize(item)
		}
		return t
	default:
		return v
	}
}

func normalizeMap(m map[string]interface{}) map[string]interface{} {
	for k, v := range m {
		m[k] = normalize(v)
	}
	return m
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int8:
		return int(t), true
	case int16:
		return int(t), true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case uint8:
		return int(t), true
	case uint16:
		return int(t), true
	case uint32:
		return int(t), true
	case uint64:
		return int(t), true
	case float64:
		return int(t), true
	default:
		return 0, false
	}
}
