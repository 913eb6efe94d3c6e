// FilePath: cmd/syncserver/main.go
package main

import (
	"fmt"
	"log"
	"os"

	tm "github.com/buger/goterm"
	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/internal/config"
	"github.com/LowellObservatory/indi-allsky/internal/server"
)

func main() {
	// Clear console and draw logo
	ClearConsole()
	DrawLogo()
	// Initialize version info
	nuts.InitVersion()
	nuts.L.Infof("[Main] Starting AllSky Sync Hub v%s", nuts.GetVersion())

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create and start server
	srv, err := server.New(cfg)
	if err != nil {
		nuts.L.Errorf("[Main] Startup error: %v", err)
		os.Exit(1)
	}
	if err := srv.Start(); err != nil {
		nuts.L.Errorf("[Main] Server error: %v", err)
		os.Exit(1)
	}
}

// ClearConsole clears the console screen and draws the logo.
func ClearConsole() {
	tm.Clear()
	tm.MoveCursor(1, 1)
	tm.Flush()
}

func DrawLogo() {
	fmt.Println()
	lines := []string{
		"    ___    ____ _____ __        ",
		"   /   |  / / // ___// /____  __",
		"  / /| | / / / \\__ \\/ //_/ / / /",
		" / ___ |/ / / ___/ / ,< / /_/ / ",
		"/_/  |_/_/_/ /____/_/|_|\\__, /  ",
		"                       /____/   ",
		"..........................................  " + nuts.GetVersion(),
	}

	for _, line := range lines {
		fmt.Println(line)
	}
}
