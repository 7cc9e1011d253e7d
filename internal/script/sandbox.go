package script

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"

	"github.com/casapod/storegen/internal/ctxlog"
)

// Sandbox runs snippets against the shim bundle under the syscall policy.
// It is safe for concurrent use; every invocation gets its own interpreter.
type Sandbox struct {
	bundle  *Bundle
	policy  *Policy
	timeout time.Duration
}

// New creates a sandbox. The bundle and policy are shared across invocations
// and must not be mutated afterwards.
func New(bundle *Bundle, policy *Policy, timeout time.Duration) *Sandbox {
	return &Sandbox{bundle: bundle, policy: policy, timeout: timeout}
}

// Invocation describes one sandboxed call. When Entrypoint is empty the
// snippet's completion value is the result; otherwise the named top-level
// function is called with Args as its single argument.
type Invocation struct {
	AppID      string
	Snippet    string
	Entrypoint string
	Args       map[string]any
}

// Result carries the exported value and the debug-log lines captured during
// one invocation. It is torn down with the invocation and never reused.
type Result struct {
	Value any
	Logs  []string
}

// Invoke executes one snippet in a fresh interpreter instance. No state
// survives between calls.
func (s *Sandbox) Invoke(ctx context.Context, inv Invocation) (*Result, error) {
	logger := ctxlog.FromContext(ctx).With("app", inv.AppID, "invocation", uuid.NewString())

	// Compile before binding anything, so a malformed snippet can never
	// reach a host function.
	program, err := goja.Compile(inv.AppID+"/snippet.js", inv.Snippet, false)
	if err != nil {
		return nil, &CompileError{AppID: inv.AppID, Err: err}
	}

	vm := goja.New()
	res := &Result{}
	if err := s.bindHostBridge(vm, logger, res); err != nil {
		return nil, fmt.Errorf("binding host bridge: %w", err)
	}

	var (
		value  goja.Value
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runtime.LockOSThread()
		if s.policy != nil && s.policy.Enabled {
			// The thread stays locked and dies with this goroutine, taking
			// the installed seccomp filter with it.
			if err := s.policy.apply(); err != nil {
				runErr = err
				return
			}
		} else {
			defer runtime.UnlockOSThread()
		}
		value, runErr = s.execute(vm, program, inv)
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	timedOut := false
	select {
	case <-done:
	case <-timer.C:
		timedOut = true
		vm.Interrupt("execution limit reached")
		<-done
	case <-ctx.Done():
		vm.Interrupt("canceled")
		<-done
		return nil, ctx.Err()
	}

	if runErr != nil {
		return nil, s.classify(inv, runErr, timedOut)
	}
	res.Value = value.Export()
	return res, nil
}

// bindHostBridge installs the only two host functions reachable from inside
// the interpreter. Nothing else on the host is exposed.
func (s *Sandbox) bindHostBridge(vm *goja.Runtime, logger *slog.Logger, res *Result) error {
	err := vm.Set("secureRandomBytes", func(call goja.FunctionCall) goja.Value {
		count := int(call.Argument(0).ToInteger())
		if count < 0 {
			panic(vm.NewTypeError("byte count must not be negative"))
		}
		buf := make([]byte, count)
		if _, err := rand.Read(buf); err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(hex.EncodeToString(buf))
	})
	if err != nil {
		return err
	}
	return vm.Set("debugLog", func(call goja.FunctionCall) goja.Value {
		line := call.Argument(0).String()
		res.Logs = append(res.Logs, line)
		logger.Debug("Script debug output.", "message", line)
		return goja.Undefined()
	})
}

func (s *Sandbox) execute(vm *goja.Runtime, program *goja.Program, inv Invocation) (goja.Value, error) {
	if err := s.bundle.load(vm); err != nil {
		return nil, err
	}

	if inv.Entrypoint == "" {
		if err := vm.Set("args", inv.Args); err != nil {
			return nil, err
		}
		value, err := vm.RunProgram(program)
		if err != nil {
			return nil, err
		}
		return settle(value)
	}

	if _, err := vm.RunProgram(program); err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(vm.Get(inv.Entrypoint))
	if !ok {
		return nil, fmt.Errorf("helper %q is not a function", inv.Entrypoint)
	}
	value, err := fn(goja.Undefined(), vm.ToValue(inv.Args))
	if err != nil {
		return nil, err
	}
	return settle(value)
}

// settle unwraps an already-settled promise. There is no event loop, so a
// pending promise can never complete and is reported as a failure.
func settle(value goja.Value) (goja.Value, error) {
	promise, ok := value.Export().(*goja.Promise)
	if !ok {
		return value, nil
	}
	switch promise.State() {
	case goja.PromiseStateFulfilled:
		return promise.Result(), nil
	case goja.PromiseStateRejected:
		return nil, fmt.Errorf("promise rejected: %s", promise.Result().String())
	default:
		return nil, errors.New("asynchronous helper never settled")
	}
}

func (s *Sandbox) classify(inv Invocation, err error, timedOut bool) error {
	if timedOut {
		return &TimeoutError{AppID: inv.AppID, Limit: s.timeout}
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return &RuntimeError{AppID: inv.AppID, Message: exception.Value().String()}
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return &RuntimeError{AppID: inv.AppID, Message: "execution interrupted"}
	}
	return &RuntimeError{AppID: inv.AppID, Message: err.Error()}
}
