package daemon

import (
	"os"
	"os/exec"
	"syscall"
)

// StartDaemon spawns a detached `serve` process from the current executable.
func StartDaemon(configPath string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, err
	}
	return StartDaemonWithPath(executable, configPath)
}

// StartDaemonWithPath spawns a detached `serve` process from binaryPath.
// The child runs in its own session and outlives the caller.
func StartDaemonWithPath(binaryPath, configPath string) (int, error) {
	cmd := daemonCommand(binaryPath, configPath)
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// The child is not waited on; release it so no zombie is left behind.
	_ = cmd.Process.Release()
	return pid, nil
}

func daemonCommand(binaryPath, configPath string) *exec.Cmd {
	args := []string{"serve"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	cmd := exec.Command(binaryPath, args...)

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd
}
