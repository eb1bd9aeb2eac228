//go:build windows

package service

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/eventlog"
	"golang.org/x/sys/windows/svc/mgr"
)

// Install registers the service with the SCM, set to start automatically,
// and registers an event-log source for it.
func Install() error {
	exepath, err := exePath()
	if err != nil {
		return err
	}
	m, err := mgr.Connect()
	if err != nil {
		return err
	}
	defer m.Disconnect()

	if s, err := m.OpenService(Name); err == nil {
		s.Close()
		return fmt.Errorf("service %s already exists", Name)
	}
	s, err := m.CreateService(Name, exepath, mgr.Config{
		DisplayName: "FPS Monitoring Service",
		Description: "Measures per-process frame rates from graphics presentation traces and publishes them to local clients.",
		StartType:   mgr.StartAutomatic,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := eventlog.InstallAsEventCreate(Name, eventlog.Error|eventlog.Warning|eventlog.Info); err != nil {
		s.Delete()
		return fmt.Errorf("install event source: %w", err)
	}
	return nil
}

// Remove stops the service if needed and unregisters it.
func Remove() error {
	m, err := mgr.Connect()
	if err != nil {
		return err
	}
	defer m.Disconnect()

	s, err := m.OpenService(Name)
	if err != nil {
		return fmt.Errorf("service %s is not installed", Name)
	}
	defer s.Close()

	if status, err := s.Control(svc.Stop); err == nil {
		// Give it a moment to wind down before deleting.
		for i := 0; i < 10 && status.State != svc.Stopped; i++ {
			time.Sleep(300 * time.Millisecond)
			status, err = s.Query()
			if err != nil {
				break
			}
		}
	}
	if err := s.Delete(); err != nil {
		return err
	}
	if err := eventlog.Remove(Name); err != nil {
		return fmt.Errorf("remove event source: %w", err)
	}
	return nil
}

func exePath() (string, error) {
	p, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Abs(p)
}
