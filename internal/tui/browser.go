package tui

import (
	"os/exec"
	"runtime"

	tea "github.com/charmbracelet/bubbletea"
)

// openBrowser launches the system browser for a link. The process is started
// detached and reaped in the background; failures surface as a notice.
func openBrowser(link string) tea.Cmd {
	return func() tea.Msg {
		var cmd *exec.Cmd
		switch runtime.GOOS {
		case "darwin":
			cmd = exec.Command("open", link)
		case "windows":
			cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", link)
		default:
			cmd = exec.Command("xdg-open", link)
		}

		if err := cmd.Start(); err != nil {
			return noticeMsg{text: err.Error(), failed: true}
		}
		go func() { _ = cmd.Wait() }()

		return nil
	}
}
