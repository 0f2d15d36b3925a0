//go:build !windows

package main

import "github.com/urfave/cli"

func isRunningAsService() bool { return false }

func runAsService() error { return nil }

func serviceCommands() []cli.Command { return nil }
