package infra

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"text/template"
)

// LaunchAgent plist template; runs the host at login and restarts it after a crash.
const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>serve</string>{{if .ConfigPath}}
        <string>--config</string>
        <string>{{.ConfigPath}}</string>{{end}}
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>KeepAlive</key>
    <dict>
        <key>Crashed</key>
        <true/>
    </dict>

    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.LogPath}}</string>

    <key>ProcessType</key>
    <string>Background</string>

    <key>ThrottleInterval</key>
    <integer>10</integer>
</dict>
</plist>`

type plistConfig struct {
	Label          string
	ExecutablePath string
	ConfigPath     string
	LogPath        string
}

// AutostartManager installs the per-user LaunchAgent that starts `sitefocus serve` at login.
type AutostartManager struct {
	paths     *Paths
	cmdRunner CommandRunner
	files     FileChecker
}

// NewAutostartManager creates a manager for the given paths.
func NewAutostartManager(paths *Paths) *AutostartManager {
	return NewAutostartManagerWithDeps(paths, &RealCommandRunner{}, &RealFileChecker{})
}

// NewAutostartManagerWithDeps creates a manager with injectable dependencies (for testing)
func NewAutostartManagerWithDeps(paths *Paths, cmdRunner CommandRunner, files FileChecker) *AutostartManager {
	return &AutostartManager{paths: paths, cmdRunner: cmdRunner, files: files}
}

// generatePlistContent creates plist content for the given exec path.
func (m *AutostartManager) generatePlistContent(execPath, configPath string) ([]byte, error) {
	config := plistConfig{
		Label:          LaunchdLabel,
		ExecutablePath: execPath,
		ConfigPath:     configPath,
		LogPath:        m.paths.LogPath + ".stdout",
	}

	tmpl, err := template.New("plist").Parse(launchAgentTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plist template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, config); err != nil {
		return nil, fmt.Errorf("failed to execute plist template: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes the plist and loads it. Reinstalling replaces an existing plist.
func (m *AutostartManager) Install(ctx context.Context, execPath, configPath string) error {
	if err := os.MkdirAll(m.paths.PlistDir, 0755); err != nil {
		return fmt.Errorf("failed to create plist dir: %w", err)
	}

	content, err := m.generatePlistContent(execPath, configPath)
	if err != nil {
		return fmt.Errorf("failed to generate plist content: %w", err)
	}

	if m.IsInstalled() {
		// Unload errors mean it was not loaded.
		_ = m.cmdRunner.Run(ctx, "launchctl", "unload", m.paths.PlistPath)
	}

	if err := os.WriteFile(m.paths.PlistPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write plist: %w", err)
	}

	if err := m.cmdRunner.Run(ctx, "launchctl", "load", m.paths.PlistPath); err != nil {
		return fmt.Errorf("failed to load plist: %w", err)
	}
	return nil
}

// Uninstall unloads and removes the plist. Removing an absent plist is a no-op.
func (m *AutostartManager) Uninstall(ctx context.Context) error {
	if !m.IsInstalled() {
		return nil
	}
	_ = m.cmdRunner.Run(ctx, "launchctl", "unload", m.paths.PlistPath)

	if err := os.Remove(m.paths.PlistPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove plist: %w", err)
	}
	return nil
}

// IsInstalled checks if the plist exists.
func (m *AutostartManager) IsInstalled() bool {
	return m.files.Exists(m.paths.PlistPath)
}

// NeedsUpdate reports whether an installed plist differs from what Install would write.
func (m *AutostartManager) NeedsUpdate(execPath, configPath string) bool {
	if !m.IsInstalled() {
		return false
	}
	current, err := os.ReadFile(m.paths.PlistPath)
	if err != nil {
		return true
	}
	expected, err := m.generatePlistContent(execPath, configPath)
	if err != nil {
		return true
	}
	return !bytes.Equal(current, expected)
}

// PlistPath returns the plist file path.
func (m *AutostartManager) PlistPath() string {
	return m.paths.PlistPath
}
