package infra

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAutostart(t *testing.T) (*AutostartManager, *mockCommandRunner) {
	runner := newMockCommandRunner()
	return NewAutostartManagerWithDeps(PathsFor(t.TempDir()), runner, &RealFileChecker{}), runner
}

func TestAutostart_InstallWritesPlistAndLoads(t *testing.T) {
	m, runner := newTestAutostart(t)
	ctx := context.Background()

	require.False(t, m.IsInstalled())
	require.NoError(t, m.Install(ctx, "/usr/local/bin/sitefocus", "/etc/sitefocus.yaml"))
	assert.True(t, m.IsInstalled())

	content, err := os.ReadFile(m.PlistPath())
	require.NoError(t, err)
	assert.Contains(t, string(content), "<string>"+LaunchdLabel+"</string>")
	assert.Contains(t, string(content), "<string>/usr/local/bin/sitefocus</string>\n        <string>serve</string>")
	assert.Contains(t, string(content), "<string>/etc/sitefocus.yaml</string>")

	call := runner.waitCall(t)
	assert.Equal(t, "launchctl", call.name)
	assert.Equal(t, []string{"load", m.PlistPath()}, call.args)
}

func TestAutostart_NeedsUpdate(t *testing.T) {
	m, _ := newTestAutostart(t)
	ctx := context.Background()

	assert.False(t, m.NeedsUpdate("/bin/sitefocus", ""), "absent plist needs install, not update")

	require.NoError(t, m.Install(ctx, "/bin/sitefocus", ""))
	assert.False(t, m.NeedsUpdate("/bin/sitefocus", ""))
	assert.True(t, m.NeedsUpdate("/opt/sitefocus", ""))
}

func TestAutostart_UninstallIsIdempotent(t *testing.T) {
	m, _ := newTestAutostart(t)
	ctx := context.Background()

	require.NoError(t, m.Uninstall(ctx))

	require.NoError(t, m.Install(ctx, "/bin/sitefocus", ""))
	require.NoError(t, m.Uninstall(ctx))
	assert.False(t, m.IsInstalled())
	require.NoError(t, m.Uninstall(ctx))
}
