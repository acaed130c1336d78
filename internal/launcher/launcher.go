// Package launcher resolves bunx/npx launch commands for npm-packaged
// agent tools. Environments that spawn the core from a GUI often see a
// PATH that excludes the interactive shell's bunx/npx, so the command must
// be resolved against common install locations as a fallback.
//
// Grounded on original_source/crates/gwt-core/src/terminal/runner.rs
// (FallbackRunner, is_node_modules_bin, choose_fallback_runner,
// resolve_command_path_with_env, build_fallback_launch), translated to Go
// idiom: a manual PATH-directory walk in place of the `which` crate, a
// captured env snapshot struct, and a platform switch on runtime.GOOS in
// place of cfg!(windows).
package launcher

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Runner identifies which npm-package runner to use.
type Runner int

const (
	Bunx Runner = iota
	Npx
)

// envSnapshot captures the environment variables fallback resolution
// depends on, so the resolution logic itself stays a pure function of its
// inputs.
type envSnapshot struct {
	path         string
	home         string
	userProfile  string
	localAppData string
	bunInstall   string
}

func captureEnv() envSnapshot {
	return envSnapshot{
		path:         os.Getenv("PATH"),
		home:         os.Getenv("HOME"),
		userProfile:  os.Getenv("USERPROFILE"),
		localAppData: os.Getenv("LOCALAPPDATA"),
		bunInstall:   os.Getenv("BUN_INSTALL"),
	}
}

// IsNodeModulesBin reports whether path looks like a project-local
// node_modules/.bin shim. A cross-platform substring match is sufficient.
func IsNodeModulesBin(path string) bool {
	return strings.Contains(path, "node_modules/.bin") || strings.Contains(path, "node_modules\\.bin")
}

// ChooseFallbackRunner picks bunx when available and not a project-local
// shim, falling back to npx, matching original_source's preference order.
func ChooseFallbackRunner(bunxPath string, npxAvailable bool) (Runner, bool) {
	if bunxPath != "" && !IsNodeModulesBin(bunxPath) {
		return Bunx, true
	}
	if npxAvailable {
		return Npx, true
	}
	return 0, false
}

func commandCandidatesInDir(dir, command string) []string {
	if runtime.GOOS == "windows" {
		return []string{
			filepath.Join(dir, command+".exe"),
			filepath.Join(dir, command+".cmd"),
			filepath.Join(dir, command+".bat"),
			filepath.Join(dir, command),
		}
	}
	return []string{filepath.Join(dir, command)}
}

func resolveCommandPathWithEnv(command string, env envSnapshot) string {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return ""
	}

	if env.path != "" {
		for _, dir := range filepath.SplitList(env.path) {
			for _, candidate := range commandCandidatesInDir(dir, cmd) {
				if isExecutableFile(candidate) {
					return candidate
				}
			}
		}
	}

	var candidates []string
	if env.bunInstall != "" {
		candidates = append(candidates, commandCandidatesInDir(filepath.Join(env.bunInstall, "bin"), cmd)...)
	}

	if runtime.GOOS == "windows" {
		if home := firstNonEmpty(env.userProfile, env.home); home != "" {
			candidates = append(candidates, commandCandidatesInDir(filepath.Join(home, ".bun", "bin"), cmd)...)
		}
		if env.localAppData != "" {
			candidates = append(candidates, commandCandidatesInDir(filepath.Join(env.localAppData, "bun", "bin"), cmd)...)
		}
	} else {
		if env.home != "" {
			candidates = append(candidates, commandCandidatesInDir(filepath.Join(env.home, ".bun", "bin"), cmd)...)
		}
		for _, base := range []string{"/opt/homebrew/bin", "/usr/local/bin", "/usr/bin", "/bin"} {
			candidates = append(candidates, commandCandidatesInDir(base, cmd)...)
		}
	}

	for _, candidate := range candidates {
		if isExecutableFile(candidate) {
			return candidate
		}
	}
	return ""
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ResolveCommandPath resolves command to an absolute path when possible,
// using the current process environment. Best-effort: returns "" if no
// candidate is found.
func ResolveCommandPath(command string) string {
	return resolveCommandPathWithEnv(command, captureEnv())
}

// BuildFallbackLaunch returns the executable and base args for a
// bunx/npx launch of package, preferring a resolved absolute path over
// the bare command name.
func BuildFallbackLaunch(runner Runner, pkg, bunxPath, npxPath string) (string, []string) {
	switch runner {
	case Bunx:
		cmd := bunxPath
		if cmd == "" {
			cmd = "bunx"
		}
		return cmd, []string{pkg}
	default:
		cmd := npxPath
		if cmd == "" {
			cmd = "npx"
		}
		return cmd, []string{"--yes", pkg}
	}
}
