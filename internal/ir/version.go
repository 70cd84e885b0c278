package ir

import (
	"errors"
	"fmt"
)

const (
	// IRVersion is written into every encoded program. Programs carrying a
	// different version are refused rather than reinterpreted, so a kernel
	// store stays readable only by engines that lower the same IR.
	IRVersion = "1"

	// EngineVersion is recorded next to each stored kernel.
	EngineVersion = "0.1.0"
)

// ErrIRVersion is returned for programs encoded under another IRVersion.
var ErrIRVersion = errors.New("unsupported IR version")

// CheckIRVersion reports whether a program encoded under version can be
// decoded by this build.
func CheckIRVersion(version string) error {
	if version != IRVersion {
		return fmt.Errorf("%w %q (want %q)", ErrIRVersion, version, IRVersion)
	}
	return nil
}
