package render

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/casapod/storegen/internal/script"
)

// Invoker is the script-execution bridge the engine's impure functions
// dispatch through. *script.Sandbox satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, inv script.Invocation) (*script.Result, error)
}

// Funcs describes the per-application function bindings for one stage.
type Funcs struct {
	AppID   string
	Seed    string
	Sandbox Invoker

	// Helpers is the app's concatenated helper-snippet source; every
	// exported helper becomes a callable template function.
	Helpers string

	// ReadRoots are the directories readFile may serve from. When nil,
	// readFile is bound to a stub that always errors (stages 1 and 2).
	ReadRoots []string

	// ScheduleRegen records a requested store regeneration time. When nil,
	// requireRegen is bound to a stub that always errors, matching the
	// config-file-only availability of readFile.
	ScheduleRegen func(at time.Time) error
}

// BindFuncs installs the impure and per-app functions on the engine:
// deriveEntropy, randomHex, debugLog, readFile and one binding per exported
// helper. Every binding is an explicit name-to-implementation entry.
func BindFuncs(ctx context.Context, e *Engine, f Funcs) {
	e.Bind("deriveEntropy", func(identifier string) string {
		mac := hmac.New(sha256.New, []byte(f.Seed))
		mac.Write([]byte(f.AppID + ":" + identifier))
		return hex.EncodeToString(mac.Sum(nil))
	})

	e.Bind("randomHex", func(count int) (string, error) {
		res, err := f.Sandbox.Invoke(ctx, script.Invocation{
			AppID:   f.AppID,
			Snippet: "secureRandomBytes(args.count)",
			Args:    map[string]any{"count": count},
		})
		if err != nil {
			return "", err
		}
		hexStr, ok := res.Value.(string)
		if !ok {
			return "", fmt.Errorf("randomHex: unexpected result type %T", res.Value)
		}
		return hexStr, nil
	})

	e.Bind("debugLog", func(value any) (string, error) {
		_, err := f.Sandbox.Invoke(ctx, script.Invocation{
			AppID:   f.AppID,
			Snippet: "debugLog(args.value)",
			Args:    map[string]any{"value": value},
		})
		return "", err
	})

	if f.ReadRoots == nil {
		e.Bind("readFile", func(_ string, _ ...string) (string, error) {
			return "", errors.New("readFile is only available in config-file templates")
		})
	} else {
		e.Bind("readFile", readFileFunc(f.ReadRoots))
	}

	if f.ScheduleRegen == nil {
		e.Bind("requireRegen", func(_ int64) (string, error) {
			return "", errors.New("requireRegen is only available in config-file templates")
		})
	} else {
		e.Bind("requireRegen", requireRegenFunc(f.ScheduleRegen))
	}

	for _, name := range script.ExportedFunctions(f.Helpers) {
		e.Bind(name, helperFunc(ctx, f, name))
	}
}

// helperFunc dispatches a template call into the sandbox. Template calls use
// alternating name/value pairs: {{ derivePassword "length" 32 }}.
func helperFunc(ctx context.Context, f Funcs, name string) func(...any) (any, error) {
	return func(pairs ...any) (any, error) {
		args, err := pairsToMap(pairs)
		if err != nil {
			return nil, fmt.Errorf("calling helper %q: %w", name, err)
		}
		res, err := f.Sandbox.Invoke(ctx, script.Invocation{
			AppID:      f.AppID,
			Snippet:    f.Helpers,
			Entrypoint: name,
			Args:       args,
		})
		if err != nil {
			return nil, err
		}
		return res.Value, nil
	}
}

func pairsToMap(pairs []any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.New("arguments must be name/value pairs")
	}
	args := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("argument name %v is not a string", pairs[i])
		}
		args[key] = pairs[i+1]
	}
	return args, nil
}

// readFileFunc serves UTF-8 file contents from the allow-listed roots only.
// An optional second argument is returned as a fallback when the file is
// missing.
func readFileFunc(roots []string) func(string, ...string) (string, error) {
	return func(path string, fallback ...string) (string, error) {
		clean := filepath.Clean(path)
		allowed := false
		for _, root := range roots {
			rel, err := filepath.Rel(root, clean)
			if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				allowed = true
				break
			}
		}
		if !allowed {
			return "", fmt.Errorf("path %q is outside the readable file set", path)
		}
		contents, err := os.ReadFile(clean)
		if err != nil {
			if len(fallback) > 0 && os.IsNotExist(err) {
				return fallback[0], nil
			}
			return "", fmt.Errorf("reading %q: %w", path, err)
		}
		return string(contents), nil
	}
}

// minRegenDelay keeps templates from requesting regeneration loops tight
// enough to thrash the store.
const minRegenDelay = 60 * time.Second

// requireRegenFunc asks the host to regenerate the store again after the
// given delay in seconds, for templates embedding values with a lifetime.
func requireRegenFunc(schedule func(time.Time) error) func(int64) (string, error) {
	return func(delayInS int64) (string, error) {
		delay := time.Duration(delayInS) * time.Second
		if delay < minRegenDelay {
			return "", fmt.Errorf("requireRegen: delay must be at least %d seconds", int64(minRegenDelay.Seconds()))
		}
		if err := schedule(time.Now().Add(delay)); err != nil {
			return "", fmt.Errorf("requireRegen: %w", err)
		}
		return "", nil
	}
}
