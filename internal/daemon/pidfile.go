// Package daemon tracks a running `grantlens serve` process through a PID
// file, so a second server refuses to start and `serve stop` can find the
// first one.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
)

var (
	// ErrNotRunning is returned when no live server owns the PID file.
	ErrNotRunning = errors.New("grantlens server is not running")

	// ErrAlreadyRunning is returned by Acquire when a live process owns the file.
	ErrAlreadyRunning = errors.New("grantlens server is already running")
)

// PIDFile manages the server's process ID file. While held, an exclusive
// lock on <path>.lock closes the window between reading a stale PID and
// writing our own.
type PIDFile struct {
	path string
	lock *flock.Flock
}

// NewPIDFile creates a PIDFile for path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

// Acquire records the current process. A file left by a dead process is
// replaced; one owned by a live process is not.
func (p *PIDFile) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}

	if !p.lock.Locked() {
		locked, err := p.lock.TryLock()
		if err != nil {
			return fmt.Errorf("failed to lock %s: %w", p.lock.Path(), err)
		}
		if !locked {
			pid, _ := p.Read()
			return fmt.Errorf("%w (pid %d, %s)", ErrAlreadyRunning, pid, p.path)
		}
	}

	if pid, err := p.Read(); err == nil && pid != os.Getpid() && processExists(pid) {
		_ = p.lock.Unlock()
		return fmt.Errorf("%w (pid %d, %s)", ErrAlreadyRunning, pid, p.path)
	}

	if err := os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Release removes the file if the current process still owns it and drops
// the lock.
func (p *PIDFile) Release() error {
	defer func() { _ = p.lock.Unlock() }()

	pid, err := p.Read()
	if errors.Is(err, ErrNotRunning) {
		return nil
	}
	if err == nil && pid != os.Getpid() {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// Read returns the recorded PID. A missing file yields ErrNotRunning.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotRunning
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in %s: %w", p.path, err)
	}
	return pid, nil
}

// Running returns the live PID recorded in the file.
func (p *PIDFile) Running() (int, error) {
	pid, err := p.Read()
	if err != nil {
		return 0, err
	}
	if !processExists(pid) {
		return 0, ErrNotRunning
	}
	return pid, nil
}

// Stop sends SIGTERM to the recorded process and waits up to timeout for
// it to exit.
func (p *PIDFile) Stop(timeout time.Duration) (int, error) {
	pid, err := p.Running()
	if err != nil {
		return 0, err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return pid, fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return pid, fmt.Errorf("failed to signal process %d: %w", pid, err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processExists(pid) {
			return pid, nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return pid, fmt.Errorf("process %d did not exit within %s", pid, timeout)
}

// processExists sends signal 0; on Unix FindProcess always succeeds.
func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
