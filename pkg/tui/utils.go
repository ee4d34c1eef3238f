package tui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// explorerAddressURL links an address on the chain's block explorer.
func explorerAddressURL(explorer, address string) string {
	if explorer == "" {
		return ""
	}
	return fmt.Sprintf("%s/address/%s", strings.TrimRight(explorer, "/"), address)
}

// openBrowser opens the specified URL in the default browser.
var openBrowser = func(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start"}
	case "darwin":
		cmd = "open"
	default: // "linux", "freebsd", "openbsd", "netbsd"
		cmd = "xdg-open"
	}
	args = append(args, url)
	return exec.Command(cmd, args...).Start()
}
