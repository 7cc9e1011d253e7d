package script

import "runtime"

// Policy is the syscall allow-list applied to the OS thread executing a
// sandboxed snippet. It is a defense-in-depth layer: even if the interpreter
// were compromised, the thread cannot open files, create sockets, or spawn
// processes. The policy is constructed once and applied per execution thread.
type Policy struct {
	// Enabled turns enforcement on. It has an effect on Linux only; the
	// interpreter-level isolation applies everywhere.
	Enabled bool
}

// DefaultPolicy returns an enforcing policy on platforms that support it.
func DefaultPolicy() *Policy {
	return &Policy{Enabled: runtime.GOOS == "linux"}
}
