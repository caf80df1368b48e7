package auth

import (
	"fmt"
	"os/exec"
	"runtime"
)

// openBrowser launches the system default browser at url.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "linux":
		return exec.Command("xdg-open", url).Start()
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	}
	return fmt.Errorf("unsupported platform %s", runtime.GOOS)
}
