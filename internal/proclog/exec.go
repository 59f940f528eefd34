package proclog

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// ExecProcessAPI is an os/exec backed process layer. Processes it starts
// get their stdout and stderr tailed into the fact engine; processes it
// did not start can only be named when the platform lookup is wired in.
type ExecProcessAPI struct {
	mu     sync.Mutex
	tailer *Tailer
	owned  map[int]*exec.Cmd

	// LookupName and LookupPath resolve pids this layer did not start.
	// Nil lookups limit NameOf/ExecutablePath to owned processes.
	LookupName func(pid int) (string, error)
	LookupPath func(pid int) (string, error)
}

func NewExecProcessAPI(tailer *Tailer) *ExecProcessAPI {
	return &ExecProcessAPI{
		tailer: tailer,
		owned:  make(map[int]*exec.Cmd),
	}
}

// Start launches the executable with its output tailed, returning the pid.
func (p *ExecProcessAPI) Start(path, workingDir string) (int, error) {
	cmd := exec.Command(path)
	cmd.Dir = workingDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("stdout pipe for %s: %w", path, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, fmt.Errorf("stderr pipe for %s: %w", path, err)
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", path, err)
	}
	pid := cmd.Process.Pid

	p.mu.Lock()
	p.owned[pid] = cmd
	p.mu.Unlock()

	if p.tailer != nil {
		ctx := context.Background()
		go p.tailer.Tail(ctx, pid, "stdout", stdout)
		go p.tailer.Tail(ctx, pid, "stderr", stderr)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("pid %d exited: %v", pid, err)
		}
		p.mu.Lock()
		delete(p.owned, pid)
		p.mu.Unlock()
	}()

	return pid, nil
}

func (p *ExecProcessAPI) Terminate(pid int) error {
	p.mu.Lock()
	cmd, ok := p.owned[pid]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("pid %d was not started by this server", pid)
	}
	return cmd.Process.Kill()
}

func (p *ExecProcessAPI) NameOf(pid int) (string, error) {
	p.mu.Lock()
	cmd, ok := p.owned[pid]
	p.mu.Unlock()
	if ok {
		return filepath.Base(cmd.Path), nil
	}
	if p.LookupName != nil {
		return p.LookupName(pid)
	}
	return "", fmt.Errorf("unknown pid %d", pid)
}

func (p *ExecProcessAPI) ExecutablePath(pid int) (string, error) {
	p.mu.Lock()
	cmd, ok := p.owned[pid]
	p.mu.Unlock()
	if ok {
		return cmd.Path, nil
	}
	if p.LookupPath != nil {
		return p.LookupPath(pid)
	}
	return "", fmt.Errorf("unknown pid %d", pid)
}

// WaitIdle gives the process a short settle pause. Without a native
// input-idle probe this is a bounded sleep, never an error.
func (p *ExecProcessAPI) WaitIdle(pid int, timeoutMs int) error {
	settle := time.Duration(timeoutMs) * time.Millisecond
	if settle > 500*time.Millisecond {
		settle = 500 * time.Millisecond
	}
	time.Sleep(settle)
	return nil
}
