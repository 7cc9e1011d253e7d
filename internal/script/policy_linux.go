//go:build linux

package script

import (
	"fmt"

	seccomp "github.com/elastic/go-seccomp-bpf"
)

// allowedSyscalls is everything a snippet execution legitimately needs:
// reads/writes on already-open descriptors, memory management, scheduling
// and signal plumbing for the Go runtime, and getrandom for the host bridge.
// Notably absent: open/openat, socket, connect, exec*, fork/clone.
var allowedSyscalls = []string{
	"brk",
	"clock_gettime",
	"clock_nanosleep",
	"close",
	"epoll_pwait",
	"exit",
	"exit_group",
	"fstat",
	"futex",
	"getpid",
	"getrandom",
	"gettid",
	"madvise",
	"mmap",
	"mprotect",
	"munmap",
	"nanosleep",
	"read",
	"restart_syscall",
	"rt_sigaction",
	"rt_sigprocmask",
	"rt_sigreturn",
	"sched_yield",
	"sigaltstack",
	"tgkill",
	"write",
}

// apply installs the allow-list on the calling thread only (no TSYNC), so
// sibling goroutines keep their full syscall surface. The caller must have
// locked the goroutine to its OS thread and must let the thread die with it.
func (p *Policy) apply() error {
	if !p.Enabled {
		return nil
	}
	filter := seccomp.Filter{
		NoNewPrivs: true,
		Policy: seccomp.Policy{
			DefaultAction: seccomp.ActionErrno,
			Syscalls: []seccomp.SyscallGroup{
				{
					Action: seccomp.ActionAllow,
					Names:  allowedSyscalls,
				},
			},
		},
	}
	if err := seccomp.LoadFilter(filter); err != nil {
		return fmt.Errorf("loading seccomp filter: %w", err)
	}
	return nil
}
