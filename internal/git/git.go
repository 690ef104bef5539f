package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// ExportStatus describes how git sees an exported file
type ExportStatus struct {
	File    string
	IsRepo  bool
	Tracked bool
	Ignored bool
}

// IsGitRepo checks if the working directory is inside a git repository
func IsGitRepo(workDir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = workDir
	err := cmd.Run()
	return err == nil
}

// IsTracked checks if a file is tracked by git
func IsTracked(workDir, path string) bool {
	cmd := exec.Command("git", "ls-files", "--", path)
	cmd.Dir = workDir
	output, err := cmd.Output()

	if err != nil {
		return false
	}

	return len(strings.TrimSpace(string(output))) > 0
}

// IsIgnored checks if a file is ignored by git (handles all .gitignore files)
func IsIgnored(workDir, path string) bool {
	cmd := exec.Command("git", "check-ignore", "-q", "--", path)
	cmd.Dir = workDir
	err := cmd.Run()

	// git check-ignore returns exit code 0 if file is ignored
	return err == nil
}

// CheckExport reports the git status of file, relative to workDir. Outside a
// repository only IsRepo is meaningful.
func CheckExport(workDir, file string) *ExportStatus {
	status := &ExportStatus{File: file}
	if !IsGitRepo(workDir) {
		return status
	}
	status.IsRepo = true
	status.Tracked = IsTracked(workDir, file)
	status.Ignored = IsIgnored(workDir, file)
	return status
}

// Safe reports whether nothing needs to be said about the export
func (s *ExportStatus) Safe() bool {
	return !s.IsRepo || (!s.Tracked && s.Ignored)
}

// FormatExportStatus returns warnings for an unsafe export, or ""
func FormatExportStatus(status *ExportStatus) string {
	if status.Safe() {
		return ""
	}

	var result strings.Builder
	result.WriteString("\nGit:\n")
	if status.Tracked {
		result.WriteString(fmt.Sprintf("   error: %s is tracked by git (run: git rm --cached %s)\n", status.File, status.File))
	}
	if !status.Ignored {
		result.WriteString(fmt.Sprintf("   warning: %s contains plaintext passwords and is not in .gitignore\n", status.File))
	}
	return result.String()
}
