package auth

import (
	"fmt"
	"os/exec"
	"runtime"
)

// BrowserOpener shows the authorization page to the user.
type BrowserOpener interface {
	Open(url string) error
}

// BrowserFunc adapts a function to BrowserOpener.
type BrowserFunc func(url string) error

func (f BrowserFunc) Open(url string) error {
	return f(url)
}

// SystemBrowser opens URLs with the platform's default handler.
type SystemBrowser struct{}

func (SystemBrowser) Open(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("[SystemBrowser Open] %w", err)
	}
	go cmd.Wait() //nolint:errcheck
	return nil
}
