// Package deps probes the availability of the external binaries the
// download pipeline drives.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/PyotrToheed/Pyotr-x-udemy/internal/config"
)

// Requirement defines an external dependency the downloader relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries for the configured tool set. yt-dlp and
// ffmpeg are mandatory; shaka packager only gates the fallback decryption
// stage.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "yt-dlp", Command: cfg.Tools.YtDlp, Description: "Downloads elementary streams from adaptive manifests"},
		{Name: "FFmpeg", Command: cfg.Tools.FFmpeg, Description: "Primary decrypt and remux stage"},
		{Name: "Shaka Packager", Command: cfg.Tools.Packager, Description: "Fallback decryption stage", Optional: true},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of unavailable mandatory dependencies.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
