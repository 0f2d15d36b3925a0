package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

const serviceName = "CloudDB"
const serviceDisplayName = "CloudDB Table Server"
const serviceDescription = "CloudDB - hosted JSON tables behind API keys"

// cloudDBService implements the svc.Handler interface
type cloudDBService struct{}

// Execute is called by the Windows Service Control Manager
func (s *cloudDBService) Execute(args []string, changeReq <-chan svc.ChangeRequest, status chan<- svc.Status) (bool, uint32) {
	const cmdsAccepted = svc.AcceptStop | svc.AcceptShutdown

	status <- svc.Status{State: svc.StartPending}

	// Change to executable directory so .env and the sqlite file are found
	exePath, err := os.Executable()
	if err == nil {
		os.Chdir(filepath.Dir(exePath))
	}

	stop := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- startServer(stop)
	}()

	status <- svc.Status{State: svc.Running, Accepts: cmdsAccepted}

	for {
		select {
		case err := <-done:
			// server exited on its own
			if err != nil {
				return false, 1
			}
			return false, 0
		case c := <-changeReq:
			switch c.Cmd {
			case svc.Interrogate:
				status <- c.CurrentStatus
			case svc.Stop, svc.Shutdown:
				status <- svc.Status{State: svc.StopPending}
				stop <- os.Interrupt
				<-done
				return false, 0
			}
		}
	}
}

// isRunningAsService checks if the process is running as a Windows Service
func isRunningAsService() bool {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return false
	}
	return isService
}

// runAsService starts the application as a Windows Service
func runAsService() error {
	if err := svc.Run(serviceName, &cloudDBService{}); err != nil {
		return fmt.Errorf("failed to run as service: %w", err)
	}
	return nil
}

func serviceCommands() []cli.Command {
	return []cli.Command{
		{
			Name:   "install",
			Usage:  "Register clouddb as a Windows Service.",
			Action: installService,
		},
		{
			Name:   "uninstall",
			Usage:  "Remove the Windows Service.",
			Action: uninstallService,
		},
		{
			Name:   "start",
			Usage:  "Start the Windows Service.",
			Action: startService,
		},
	}
}

// installService registers clouddb as a Windows Service
func installService(c *cli.Context) error {
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to service manager (run as Administrator): %w", err)
	}
	defer m.Disconnect()

	// Check if service already exists
	s, err := m.OpenService(serviceName)
	if err == nil {
		s.Close()
		fmt.Printf("Service '%s' is already installed.\n", serviceName)
		return nil
	}

	s, err = m.CreateService(serviceName, exePath, mgr.Config{
		DisplayName: serviceDisplayName,
		Description: serviceDescription,
		StartType:   mgr.StartAutomatic,
	}, "serve")
	if err != nil {
		return fmt.Errorf("failed to install service: %w", err)
	}
	defer s.Close()

	fmt.Printf("Service '%s' installed successfully.\n", serviceName)
	fmt.Println("Start with: clouddb start")
	return nil
}

// uninstallService removes clouddb from Windows Services
func uninstallService(c *cli.Context) error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to service manager (run as Administrator): %w", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(serviceName)
	if err != nil {
		fmt.Printf("Service '%s' is not installed.\n", serviceName)
		return nil
	}
	defer s.Close()

	if err := s.Delete(); err != nil {
		return fmt.Errorf("failed to uninstall service: %w", err)
	}

	fmt.Printf("Service '%s' uninstalled successfully.\n", serviceName)
	return nil
}

// startService starts the clouddb Windows Service
func startService(c *cli.Context) error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to service manager (run as Administrator): %w", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(serviceName)
	if err != nil {
		return fmt.Errorf("service '%s' is not installed, run 'clouddb install' first", serviceName)
	}
	defer s.Close()

	if err := s.Start(); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	fmt.Printf("Service '%s' started.\n", serviceName)
	return nil
}
