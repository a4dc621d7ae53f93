package cmd

import (
	"os/exec"
)

// Seams for the d2 renderer and the binary checks of validate; tests
// replace them.
var (
	findExecutable = exec.LookPath
	execCommand    = exec.Command
)
