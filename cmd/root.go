// Package cmd implements the swiftkernel command-line interface: launching
// the kernel against a Jupyter connection file, and inspecting the audit
// database the kernel leaves behind.
package cmd

import (
	"github.com/alecthomas/kong"

	"swiftkernel/config"
	"swiftkernel/logging"
)

// CLI is the top-level command tree.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Debug   bool             `help:"Enable debug logging to file" short:"d"`

	Run      RunCmd      `cmd:"" default:"1" help:"Start the kernel against a Jupyter connection file"`
	Doctor   DoctorCmd   `cmd:"" help:"Check the local Swift toolchain and kernel configuration"`
	History  HistoryCmd  `cmd:"" help:"List recently executed cells from the audit log"`
	Packages PackagesCmd `cmd:"" help:"List packages installed via the audit log"`

	settings *config.Settings `kong:"-"`
}

// AfterApply initializes logging and loads settings.json + environment
// overrides, so every subcommand sees the same resolved configuration.
func (c *CLI) AfterApply() error {
	if err := logging.Initialize(c.Debug, "", 1000); err != nil {
		return err
	}
	settings, err := config.Load()
	if err != nil {
		return err
	}
	c.settings = settings
	return nil
}
