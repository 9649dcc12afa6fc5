package window

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// PathResolver maps a process id to the path of its executable.
type PathResolver interface {
	ExecutablePath(pid int) (string, error)
}

// ProcessResolver resolves executable paths through gopsutil.
type ProcessResolver struct{}

// ExecutablePath returns the executable of pid.
func (ProcessResolver) ExecutablePath(pid int) (string, error) {
	if pid <= 0 {
		return "", fmt.Errorf("no pid for window")
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", fmt.Errorf("failed to open process %d: %w", pid, err)
	}
	exe, err := p.Exe()
	if err != nil {
		return "", fmt.Errorf("failed to read executable of process %d: %w", pid, err)
	}
	return exe, nil
}

// cachedResolver memoises lookups for the duration of one enumeration.
type cachedResolver struct {
	inner PathResolver
	paths map[int]string
}

func newCachedResolver(inner PathResolver) *cachedResolver {
	return &cachedResolver{inner: inner, paths: make(map[int]string)}
}

func (r *cachedResolver) ExecutablePath(pid int) (string, error) {
	if p, ok := r.paths[pid]; ok {
		return p, nil
	}
	p, err := r.inner.ExecutablePath(pid)
	if err != nil {
		return "", err
	}
	r.paths[pid] = p
	return p, nil
}
