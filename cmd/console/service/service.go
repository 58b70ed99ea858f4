// Package service installs "opsconsole watch" as a per-user background
// service: a systemd user unit on Linux, a LaunchAgent on macOS.
package service

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"text/template"
)

// DefaultName is the unit name and launchd label suffix.
const DefaultName = "opsconsole-watch"

const launchdLabelPrefix = "dev.opsconsole."

// Spec describes the service to install.
type Spec struct {
	Name       string
	BinaryPath string
	ConfigPath string
	Profile    string // empty means the config's active_profile
	LogPath    string // directory for the service log
	HomeDir    string
}

// Status is the state of an installed service.
type Status struct {
	Installed bool
	Running   bool
	PID       int
}

// Runner executes an external command and returns its combined output.
type Runner func(name string, args ...string) ([]byte, error)

func execRunner(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

// Manager installs and inspects the service for one platform.
type Manager struct {
	goos string
	home string
	run  Runner
}

// NewManager returns a manager for the current platform.
func NewManager() *Manager {
	home, _ := os.UserHomeDir()
	return &Manager{goos: runtime.GOOS, home: home, run: execRunner}
}

// DefaultSpec fills in the running binary and the per-user log directory.
func DefaultSpec(configPath string) Spec {
	binary, _ := os.Executable()
	home, _ := os.UserHomeDir()
	if abs, err := filepath.Abs(configPath); err == nil {
		configPath = abs
	}
	return Spec{
		Name:       DefaultName,
		BinaryPath: binary,
		ConfigPath: configPath,
		LogPath:    filepath.Join(home, ".local", "state", "opsconsole"),
		HomeDir:    home,
	}
}

// Validate checks the Spec for correctness.
func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if s.BinaryPath == "" {
		return fmt.Errorf("binary path is required")
	}
	info, err := os.Stat(s.BinaryPath)
	if err != nil {
		return fmt.Errorf("binary %q: %w", s.BinaryPath, err)
	}
	if info.Mode()&0111 == 0 {
		return fmt.Errorf("binary %q is not executable", s.BinaryPath)
	}
	if !filepath.IsAbs(s.ConfigPath) {
		return fmt.Errorf("config path %q must be absolute", s.ConfigPath)
	}
	return nil
}

// Args is the command line the service runs.
func (s Spec) Args() []string {
	args := []string{s.BinaryPath, "watch", "--config", s.ConfigPath}
	if s.Profile != "" {
		args = append(args, "--profile", s.Profile)
	}
	return args
}

const systemdTemplate = `[Unit]
Description=opsconsole Gateway watcher ({{.Name}})
After=network-online.target

[Service]
Type=simple
ExecStart={{join .Args " "}}
Restart=on-failure
RestartSec=5
Environment=OPSCONSOLE_LOGGER_OUTPUT={{.LogPath}}/{{.Name}}.log

[Install]
WantedBy=default.target
`

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{label .Name}}</string>
    <key>ProgramArguments</key>
    <array>{{range .Args}}
        <string>{{.}}</string>{{end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>EnvironmentVariables</key>
    <dict>
        <key>OPSCONSOLE_LOGGER_OUTPUT</key>
        <string>{{.LogPath}}/{{.Name}}.log</string>
    </dict>
</dict>
</plist>
`

var funcs = template.FuncMap{
	"join":  strings.Join,
	"label": func(name string) string { return launchdLabelPrefix + name },
}

func render(name, text string, s Spec) (string, error) {
	tmpl, err := template.New(name).Funcs(funcs).Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderSystemdUnit renders the systemd user unit.
func RenderSystemdUnit(s Spec) (string, error) { return render("systemd", systemdTemplate, s) }

// RenderLaunchdPlist renders the LaunchAgent plist.
func RenderLaunchdPlist(s Spec) (string, error) { return render("launchd", launchdTemplate, s) }

// UnitPath is where the service definition is written.
func (m *Manager) UnitPath(name string) (string, error) {
	switch m.goos {
	case "linux":
		return filepath.Join(m.home, ".config", "systemd", "user", name+".service"), nil
	case "darwin":
		return filepath.Join(m.home, "Library", "LaunchAgents", launchdLabelPrefix+name+".plist"), nil
	default:
		return "", fmt.Errorf("unsupported platform: %s", m.goos)
	}
}

// Install writes the service definition and starts it.
func (m *Manager) Install(s Spec) error {
	path, err := m.UnitPath(s.Name)
	if err != nil {
		return err
	}

	var content string
	var cmds [][]string
	switch m.goos {
	case "linux":
		content, err = RenderSystemdUnit(s)
		cmds = [][]string{
			{"systemctl", "--user", "daemon-reload"},
			{"systemctl", "--user", "enable", "--now", s.Name},
		}
	case "darwin":
		content, err = RenderLaunchdPlist(s)
		cmds = [][]string{{"launchctl", "load", "-w", path}}
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.LogPath, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create unit dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write unit file: %w", err)
	}
	for _, args := range cmds {
		if out, err := m.run(args[0], args[1:]...); err != nil {
			return fmt.Errorf("%s: %s: %w", strings.Join(args, " "), bytes.TrimSpace(out), err)
		}
	}
	return nil
}

// Uninstall stops the service and removes its definition. Stop failures
// are ignored so a half-installed service can still be removed.
func (m *Manager) Uninstall(name string) error {
	path, err := m.UnitPath(name)
	if err != nil {
		return err
	}
	switch m.goos {
	case "linux":
		m.run("systemctl", "--user", "disable", "--now", name)
	case "darwin":
		m.run("launchctl", "unload", "-w", path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unit file: %w", err)
	}
	if m.goos == "linux" {
		m.run("systemctl", "--user", "daemon-reload")
	}
	return nil
}

// Status reports whether the service is installed and running.
func (m *Manager) Status(name string) (Status, error) {
	path, err := m.UnitPath(name)
	if err != nil {
		return Status{}, err
	}
	var st Status
	if _, err := os.Stat(path); err == nil {
		st.Installed = true
	}

	switch m.goos {
	case "linux":
		out, _ := m.run("systemctl", "--user", "show", "--property=ActiveState,MainPID", name)
		for _, line := range strings.Split(string(out), "\n") {
			k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
			if !ok {
				continue
			}
			switch k {
			case "ActiveState":
				st.Running = v == "active"
			case "MainPID":
				st.PID, _ = strconv.Atoi(v)
			}
		}
	case "darwin":
		out, err := m.run("launchctl", "list", launchdLabelPrefix+name)
		if err != nil {
			return st, nil
		}
		st.Running = true
		for _, line := range strings.Split(string(out), "\n") {
			if strings.Contains(line, `"PID"`) {
				fields := strings.Fields(strings.TrimSuffix(strings.TrimSpace(line), ";"))
				if len(fields) >= 3 {
					st.PID, _ = strconv.Atoi(fields[len(fields)-1])
				}
			}
		}
	}
	return st, nil
}
