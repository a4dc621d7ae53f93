package wizard

import (
	"os"
	"os/exec"
	"path/filepath"
)

// DetectionResult holds what was auto-detected on the system.
type DetectionResult struct {
	OfctlPath   string // empty if ovs-ofctl is not on PATH
	VsctlPath   string
	D2Available bool
	Configs     []string // existing ipman config files in the working directory
}

// OpenVSwitch reports whether both Open vSwitch tools were found.
func (r DetectionResult) OpenVSwitch() bool {
	return r.OfctlPath != "" && r.VsctlPath != ""
}

// Detector abstracts filesystem and path lookups for testing.
type Detector interface {
	LookPath(name string) (string, error)
	Stat(path string) (os.FileInfo, error)
	Glob(pattern string) ([]string, error)
}

// OSDetector uses the real OS for detection.
type OSDetector struct{}

func (OSDetector) LookPath(name string) (string, error) { return exec.LookPath(name) }
func (OSDetector) Stat(path string) (os.FileInfo, error) { return os.Stat(path) }
func (OSDetector) Glob(pattern string) ([]string, error) { return filepath.Glob(pattern) }

// Detect scans the environment for switch tooling and earlier configs.
func Detect(d Detector) DetectionResult {
	if d == nil {
		d = OSDetector{}
	}

	result := DetectionResult{}

	if p, err := d.LookPath("ovs-ofctl"); err == nil {
		result.OfctlPath = p
	}
	if p, err := d.LookPath("ovs-vsctl"); err == nil {
		result.VsctlPath = p
	}
	if _, err := d.LookPath("d2"); err == nil {
		result.D2Available = true
	}

	for _, p := range []string{"ipman.yml", "ipman.yaml"} {
		if info, err := d.Stat(p); err == nil && !info.IsDir() {
			result.Configs = append(result.Configs, p)
		}
	}
	// variants such as ipman.lab.yml
	if matches, err := d.Glob("ipman.*.yml"); err == nil {
		result.Configs = append(result.Configs, matches...)
	}

	return result
}
