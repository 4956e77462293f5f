// Package device picks the compute backend passed to local model runners.
package device

import (
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

const (
	Auto = "auto"
	CPU  = "cpu"
	CUDA = "cuda"
	MPS  = "mps"
)

// Probe reports which accelerators exist on this host.
type Probe struct {
	HasCUDA func() bool
	HasMPS  func() bool
}

// SystemProbe looks for nvidia-smi on PATH and for Apple Silicon.
var SystemProbe = Probe{
	HasCUDA: func() bool {
		_, err := exec.LookPath("nvidia-smi")
		return err == nil
	},
	HasMPS: func() bool {
		return runtime.GOOS == "darwin" && runtime.GOARCH == "arm64"
	},
}

// Available lists the usable devices, best first. cpu is always present.
func (p Probe) Available() []string {
	var out []string
	if p.HasCUDA != nil && p.HasCUDA() {
		out = append(out, CUDA)
	}
	if p.HasMPS != nil && p.HasMPS() {
		out = append(out, MPS)
	}
	return append(out, CPU)
}

// Select resolves a preference to an available device. Unknown or
// unavailable preferences fall back to the best available one.
func (p Probe) Select(preference string) string {
	avail := p.Available()
	best := avail[0]

	pref := strings.ToLower(strings.TrimSpace(preference))
	if pref == "" || pref == Auto {
		return best
	}
	for _, d := range avail {
		if d == pref {
			return d
		}
	}
	slog.Warn("requested device not available", "requested", preference, "using", best)
	return best
}

// Select uses the system probe.
func Select(preference string) string {
	return SystemProbe.Select(preference)
}
