//go:build windows

package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/sys/windows/svc"

	"fpsmon/internal/config"
	"fpsmon/internal/ipc"
	"fpsmon/internal/logging"
	"fpsmon/internal/service"
)

func main() {
	var (
		configPath  = flag.String("config", config.DefaultPath(), "path to the JSON config file")
		installFlag = flag.Bool("install", false, "register the service with the service manager")
		removeFlag  = flag.Bool("remove", false, "unregister the service")
		queryFlag   = flag.Bool("query", false, "read one snapshot from a running service and exit")
	)
	flag.Parse()

	cfg := config.Load(*configPath)
	logging.Setup(cfg.LogLevel, cfg.LogFile)

	switch {
	case *installFlag:
		exitOn(service.Install(), "install failed")
		fmt.Println("service installed")
		return
	case *removeFlag:
		exitOn(service.Remove(), "remove failed")
		fmt.Println("service removed")
		return
	case *queryFlag:
		query(cfg.PipeName)
		return
	}

	isService, err := svc.IsWindowsService()
	exitOn(err, "cannot determine run mode")

	if isService {
		// Interactive logging is useless under the SCM; force a file.
		if cfg.LogFile == "" {
			cfg.LogFile = `C:\ProgramData\fpsmon\fpsmon.log`
			logging.Setup(cfg.LogLevel, cfg.LogFile)
		}
	}

	// Registration failure with the SCM is the one fatal error here.
	exitOn(service.Run(cfg, !isService), "service run failed")
}

// query performs one client read, printing either the snapshot or a note
// that the service is unavailable. Absence is ordinary, so it exits zero
// either way.
func query(pipeName string) {
	client := ipc.NewClient(pipeName)
	snap, ok := client.Snapshot()
	if !ok {
		fmt.Println("service unavailable")
		return
	}
	if snap.GameState == nil {
		fmt.Printf("fps=%.0f (no active process)\n", snap.FPS)
		return
	}
	fmt.Printf("fps=%.0f pid=%d name=%s dx=%d fso=%v topmost=%v\n",
		snap.FPS, snap.GameState.PID, snap.GameState.Name,
		snap.GameState.DXVersion, snap.GameState.HasFSO, snap.GameState.CompatibleTopmost)
}

func exitOn(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}
