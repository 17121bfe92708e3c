// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// startDetached starts a command without waiting for it to finish.
var startDetached = func(name string, args ...string) error {
	cmd := exec.Command(name, args...) // #nosec G204
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// openCommand returns the platform command that opens dir in a file browser.
func openCommand(goos, dir string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{dir}
	case "windows":
		return "explorer", []string{dir}
	default:
		return "xdg-open", []string{dir}
	}
}

// openProjectDir opens dir with the desktop's file browser.
func openProjectDir(dir string) error {
	if dir == "" {
		return errors.New("no project directory")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	name, args := openCommand(runtime.GOOS, dir)
	if err := startDetached(name, args...); err != nil {
		return fmt.Errorf("run %s: %w", name, err)
	}
	return nil
}
