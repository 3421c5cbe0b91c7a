// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dispatch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/tombee/nexus-router/pkg/canonical"
	nxerrors "github.com/tombee/nexus-router/pkg/errors"
)

const (
	// tempFilePrefix identifies argument handoff files in the temp dir so
	// stray files are attributable and cleanup failures are diagnosable.
	tempFilePrefix = "nexus-router-args"

	defaultMaxStdoutChars    = 4096
	defaultMaxStderrChars    = 4096
	defaultCleanupRetryDelay = 100 * time.Millisecond
)

// SubprocessAdapter dispatches tool calls to an external command.
//
// Protocol: the adapter writes a canonical JSON payload {tool, method, args}
// to a temp file readable only by the owner, then invokes
//
//	<base_cmd> call <tool> <method> --json-args-file <path>
//
// The child must emit exactly one JSON object on stdout and exit zero.
type SubprocessAdapter struct {
	adapterID         string
	baseCmd           []string
	timeout           time.Duration
	cwd               string
	env               map[string]string
	maxStdoutChars    int
	maxStderrChars    int
	redactArgs        ArgsRedactor
	redactText        TextRedactor
	cleanupRetryDelay time.Duration
	strictStderr      bool

	lastCleanupFailed bool
}

// SubprocessOption configures a SubprocessAdapter.
type SubprocessOption func(*SubprocessAdapter)

// WithAdapterID overrides the derived adapter id.
func WithAdapterID(id string) SubprocessOption {
	return func(a *SubprocessAdapter) { a.adapterID = id }
}

// WithTimeout sets the wall-clock limit per call. Zero means no limit.
func WithTimeout(d time.Duration) SubprocessOption {
	return func(a *SubprocessAdapter) { a.timeout = d }
}

// WithCwd sets the working directory for the child process. The path is
// validated on every call: it must exist and be a directory.
func WithCwd(cwd string) SubprocessOption {
	return func(a *SubprocessAdapter) { a.cwd = cwd }
}

// WithEnv sets environment overrides merged over the parent environment.
func WithEnv(env map[string]string) SubprocessOption {
	return func(a *SubprocessAdapter) { a.env = env }
}

// WithOutputLimits sets the truncation limits for stdout and stderr
// diagnostics. Non-positive values keep the current limit. Truncation
// affects only what is stored in events and error details; JSON parsing
// always uses the full stdout.
func WithOutputLimits(maxStdoutChars, maxStderrChars int) SubprocessOption {
	return func(a *SubprocessAdapter) {
		if maxStdoutChars > 0 {
			a.maxStdoutChars = maxStdoutChars
		}
		if maxStderrChars > 0 {
			a.maxStderrChars = maxStderrChars
		}
	}
}

// WithRedactors overrides the default redaction hooks. Pass identity
// functions to disable redaction.
func WithRedactors(args ArgsRedactor, text TextRedactor) SubprocessOption {
	return func(a *SubprocessAdapter) {
		if args != nil {
			a.redactArgs = args
		}
		if text != nil {
			a.redactText = text
		}
	}
}

// WithCleanupRetryDelay sets the delay before retrying temp-file removal.
func WithCleanupRetryDelay(d time.Duration) SubprocessOption {
	return func(a *SubprocessAdapter) { a.cleanupRetryDelay = d }
}

// WithStrictStderr makes any non-blank stderr on an otherwise-successful
// call an operational STDERR_ON_SUCCESS failure.
func WithStrictStderr() SubprocessOption {
	return func(a *SubprocessAdapter) { a.strictStderr = true }
}

// NewSubprocessAdapter creates an adapter for the given command. baseCmd is
// the executable plus leading arguments and must not be empty.
func NewSubprocessAdapter(baseCmd []string, opts ...SubprocessOption) (*SubprocessAdapter, error) {
	if len(baseCmd) == 0 {
		return nil, fmt.Errorf("base_cmd must not be empty")
	}
	a := &SubprocessAdapter{
		baseCmd:           append([]string(nil), baseCmd...),
		maxStdoutChars:    defaultMaxStdoutChars,
		maxStderrChars:    defaultMaxStderrChars,
		redactArgs:        DefaultRedactArgs,
		redactText:        DefaultRedactText,
		cleanupRetryDelay: defaultCleanupRetryDelay,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.adapterID == "" {
		a.adapterID = deriveAdapterID(a.baseCmd)
	}
	return a, nil
}

// deriveAdapterID builds "subprocess:<basename>:<6-hex>" from the full
// command, so distinct commands get distinct stable ids.
func deriveAdapterID(baseCmd []string) string {
	sum := sha256.Sum256([]byte(strings.Join(baseCmd, "\x00")))
	return fmt.Sprintf("subprocess:%s:%s",
		filepath.Base(baseCmd[0]), hex.EncodeToString(sum[:3]))
}

// AdapterID implements Adapter.
func (a *SubprocessAdapter) AdapterID() string { return a.adapterID }

// AdapterKind implements Adapter.
func (a *SubprocessAdapter) AdapterKind() string { return "subprocess" }

// Capabilities implements Adapter.
func (a *SubprocessAdapter) Capabilities() CapabilitySet {
	return NewCapabilitySet(CapabilityApply, CapabilityTimeout, CapabilityExternal)
}

// LastCleanupFailed reports whether the most recent call failed to remove
// its temp file after the retry. Diagnostic only; a stuck temp file never
// fails the call.
func (a *SubprocessAdapter) LastCleanupFailed() bool { return a.lastCleanupFailed }

// RedactArgsForEvent applies the configured argument redaction hook.
func (a *SubprocessAdapter) RedactArgsForEvent(args map[string]any) map[string]any {
	return a.redactArgs(args)
}

// RedactTextForEvent applies the configured text redaction hook.
func (a *SubprocessAdapter) RedactTextForEvent(text string) string {
	return a.redactText(text)
}

// Call executes the subprocess protocol. Every failure is an operational
// error carrying args_digest, a short content digest of the canonical args,
// so runs can be cross-referenced without disclosing arguments.
func (a *SubprocessAdapter) Call(ctx context.Context, tool, method string, args map[string]any) (map[string]any, error) {
	a.lastCleanupFailed = false

	argsDigest, err := canonical.Digest12(args)
	if err != nil {
		return nil, nxerrors.Bugf("", "compute args digest: %v", err)
	}

	if err := a.validateEnv(argsDigest); err != nil {
		return nil, err
	}
	if err := a.validateCwd(argsDigest); err != nil {
		return nil, err
	}

	payload, err := canonical.Marshal(map[string]any{
		"tool":   tool,
		"method": method,
		"args":   args,
	})
	if err != nil {
		return nil, nxerrors.Bugf("", "serialize call payload: %v", err)
	}

	tmpPath, err := a.writeTempFile(payload)
	if err != nil {
		return nil, nxerrors.Operationalf(nxerrors.CodeOSError,
			"failed to write args file: %v", err).
			WithDetails(map[string]any{"args_digest": argsDigest})
	}
	defer a.cleanupTempFile(tmpPath)

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	argv := append(append([]string(nil), a.baseCmd...),
		"call", tool, method, "--json-args-file", tmpPath)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = a.cwd
	cmd.Env = a.mergedEnv()
	// Prefer graceful termination so the child can clean up.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return nil, nxerrors.Operationalf(nxerrors.CodeTimeout,
			"subprocess timed out after %gs", a.timeout.Seconds()).
			WithDetails(map[string]any{
				"timeout_s":   a.timeout.Seconds(),
				"args_digest": argsDigest,
			})
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if stderrors.As(runErr, &exitErr) {
			return nil, nxerrors.Operationalf(nxerrors.CodeNonzeroExit,
				"subprocess exited with code %d", exitErr.ExitCode()).
				WithDetails(map[string]any{
					"returncode":     exitErr.ExitCode(),
					"stderr_excerpt": a.redactText(truncate(stderr.String(), a.maxStderrChars)),
					"args_digest":    argsDigest,
				})
		}
		return nil, a.mapStartError(runErr, argsDigest)
	}

	if a.strictStderr && strings.TrimSpace(stderr.String()) != "" {
		return nil, nxerrors.NewOperational(nxerrors.CodeStderrOnSuccess,
			"subprocess succeeded but wrote to stderr").
			WithDetails(map[string]any{
				"stderr_excerpt": a.redactText(truncate(stderr.String(), a.maxStderrChars)),
				"args_digest":    argsDigest,
			})
	}

	return a.parseOutput(stdout.String(), argsDigest)
}

// validateEnv rejects override keys that cannot survive the exec boundary.
func (a *SubprocessAdapter) validateEnv(argsDigest string) error {
	for k, v := range a.env {
		if k == "" || strings.ContainsAny(k, "=\x00") || strings.Contains(v, "\x00") {
			return nxerrors.Operationalf(nxerrors.CodeEnvInvalid,
				"invalid environment override key %q", k).
				WithDetails(map[string]any{"args_digest": argsDigest})
		}
	}
	return nil
}

func (a *SubprocessAdapter) validateCwd(argsDigest string) error {
	if a.cwd == "" {
		return nil
	}
	info, err := os.Stat(a.cwd)
	if err != nil {
		return nxerrors.Operationalf(nxerrors.CodeCwdNotFound,
			"working directory does not exist: %s", a.cwd).
			WithDetails(map[string]any{"cwd": a.cwd, "args_digest": argsDigest})
	}
	if !info.IsDir() {
		return nxerrors.Operationalf(nxerrors.CodeCwdNotDirectory,
			"working directory is not a directory: %s", a.cwd).
			WithDetails(map[string]any{"cwd": a.cwd, "args_digest": argsDigest})
	}
	return nil
}

func (a *SubprocessAdapter) mergedEnv() []string {
	if len(a.env) == 0 {
		return nil // nil means inherit the parent environment
	}
	env := os.Environ()
	for k, v := range a.env {
		env = append(env, k+"="+v)
	}
	return env
}

// writeTempFile writes the payload to a fresh owner-only temp file and
// returns its path.
func (a *SubprocessAdapter) writeTempFile(payload []byte) (string, error) {
	f, err := os.CreateTemp("", tempFilePrefix+"-*.json")
	if err != nil {
		return "", err
	}
	path := f.Name()
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// cleanupTempFile removes the args file, retrying once after a delay. A
// failed cleanup is recorded on the adapter but never fails the call.
func (a *SubprocessAdapter) cleanupTempFile(path string) {
	if err := os.Remove(path); err == nil || stderrors.Is(err, fs.ErrNotExist) {
		return
	}
	time.Sleep(a.cleanupRetryDelay)
	if err := os.Remove(path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		a.lastCleanupFailed = true
	}
}

func (a *SubprocessAdapter) mapStartError(err error, argsDigest string) error {
	details := map[string]any{"args_digest": argsDigest}
	switch {
	case stderrors.Is(err, exec.ErrNotFound), stderrors.Is(err, fs.ErrNotExist):
		return nxerrors.Operationalf(nxerrors.CodeCommandNotFound,
			"command not found: %s", a.baseCmd[0]).WithDetails(details)
	case stderrors.Is(err, fs.ErrPermission):
		return nxerrors.Operationalf(nxerrors.CodePermissionDenied,
			"permission denied executing: %s", a.baseCmd[0]).WithDetails(details)
	default:
		return nxerrors.Operationalf(nxerrors.CodeOSError,
			"failed to execute subprocess: %v", err).WithDetails(details)
	}
}

// parseOutput decodes the child's stdout as a single JSON object. Parsing
// always uses the full stdout; the configured limits only truncate what
// lands in error details.
func (a *SubprocessAdapter) parseOutput(stdout, argsDigest string) (map[string]any, error) {
	invalid := func(jsonErr string) error {
		return nxerrors.NewOperational(nxerrors.CodeInvalidJSONOutput,
			"subprocess produced invalid JSON output").
			WithDetails(map[string]any{
				"stdout_len":  len(stdout),
				"json_error":  jsonErr,
				"stdout_head": a.redactText(excerptHead(stdout, 200)),
				"stdout_tail": a.redactText(excerptTail(stdout, 100)),
				"args_digest": argsDigest,
			})
	}

	dec := json.NewDecoder(strings.NewReader(stdout))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, invalid(err.Error())
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, invalid(fmt.Sprintf("expected a JSON object, got %T", v))
	}
	// Exactly one JSON document is allowed on stdout; only EOF (possibly
	// after trailing whitespace) ends the stream cleanly.
	var extra any
	switch err := dec.Decode(&extra); {
	case err == nil:
		return nil, invalid("multiple JSON documents on stdout")
	case err != io.EOF:
		return nil, invalid("trailing data after JSON object: " + err.Error())
	}
	return obj, nil
}

// truncate caps s for diagnostic storage, appending the dropped count.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return fmt.Sprintf("%s...[truncated %d chars]", s[:max], len(s)-max)
}

func excerptHead(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func excerptTail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
