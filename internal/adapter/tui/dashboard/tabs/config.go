package tabs

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"opsconsole/internal/adapter/tui/theme"
)

// ConfigModel displays the effective config as read-only YAML with profile
// tokens masked.
type ConfigModel struct {
	Viewport viewport.Model
	Source   string // config file path, empty when defaults are in use
	content  string
	ready    bool
}

// NewConfig creates a config viewer tab.
func NewConfig() ConfigModel {
	return ConfigModel{}
}

// SetSize sets dimensions.
// One line is reserved for the header.
func (m *ConfigModel) SetSize(w, h int) {
	h = max(h-1, 1)
	if m.ready {
		m.Viewport.Width, m.Viewport.Height = w, h
		return
	}
	m.Viewport = viewport.New(w, h)
	m.Viewport.SetContent(m.content)
	m.ready = true
}

// SetContent sets the YAML config string (should be pre-masked).
func (m *ConfigModel) SetContent(yaml string) {
	m.content = MaskSecrets(yaml)
	if m.ready {
		m.Viewport.SetContent(m.content)
	}
}

// Update handles viewport scrolling; g and G jump to the ends.
func (m ConfigModel) Update(msg tea.Msg) (ConfigModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "g", "home":
			m.Viewport.GotoTop()
			return m, nil
		case "G", "end":
			m.Viewport.GotoBottom()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

// View renders the config tab.
func (m ConfigModel) View() string {
	if !m.ready {
		return ""
	}
	src := "built-in defaults"
	if m.Source != "" {
		src = m.Source
	}
	header := theme.TextMuted.Render(fmt.Sprintf("  Effective configuration from %s (tokens masked) %s restart to apply edits",
		src, theme.SymbolBullet))
	return header + "\n" + m.Viewport.View()
}

// secretKeys are YAML keys whose values MaskSecrets hides.
var secretKeys = []string{"token", "passphrase", "config_key"}

// MaskSecrets replaces non-empty values of secretKeys with asterisks. List
// items ("- token: x") are matched too.
func MaskSecrets(yaml string) string {
	lines := strings.Split(yaml, "\n")
	for i, line := range lines {
		trimmed := strings.TrimPrefix(strings.TrimSpace(line), "- ")
		for _, key := range secretKeys {
			if !strings.HasPrefix(trimmed, key+":") {
				continue
			}
			idx := strings.Index(line, key+":") + len(key)
			val := strings.TrimSpace(line[idx+1:])
			if val != "" && val != `""` && val != "''" {
				lines[i] = line[:idx+1] + " ****"
			}
		}
	}
	return strings.Join(lines, "\n")
}
