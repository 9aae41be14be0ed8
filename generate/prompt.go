package generate

import (
	"path/filepath"
	"strings"

	"github.com/Paranoid-AF/infill/split"
)

// CodeLlama infilling sentinels.
const (
	TokenPrefix = "<PRE>"
	TokenSuffix = "<SUF>"
	TokenMiddle = "<MID>"
	TokenEOT    = "<EOT>"
)

// Repository-level FIM sentinels (Qwen2.5-Coder family).
const (
	TokenRepoName  = "<|repo_name|>"
	TokenFileSep   = "<|file_sep|>"
	TokenFIMPrefix = "<|fim_prefix|>"
	TokenFIMSuffix = "<|fim_suffix|>"
	TokenFIMMiddle = "<|fim_middle|>"
)

// FormatCodeLlama renders p as "<PRE> {prefix} <SUF>{suffix} <MID>".
// Prefix and suffix are embedded verbatim.
func FormatCodeLlama(p split.Prompt) string {
	return TokenPrefix + " " + p.Prefix + " " + TokenSuffix + p.Suffix + " " + TokenMiddle
}

// FormatRepo renders p in the repository-level format. The repo name and
// file path headers are only emitted when p carries them.
func FormatRepo(p split.Prompt) string {
	var sb strings.Builder
	if p.Repo != "" {
		sb.WriteString(TokenRepoName)
		sb.WriteString(filepath.Base(p.Repo))
		sb.WriteString("\n")
	}
	if p.File != "" {
		sb.WriteString(TokenFileSep)
		sb.WriteString(relativeFile(p.Repo, p.File))
		sb.WriteString("\n")
	}
	sb.WriteString(TokenFIMPrefix)
	sb.WriteString(p.Prefix)
	sb.WriteString(TokenFIMSuffix)
	sb.WriteString(p.Suffix)
	sb.WriteString(TokenFIMMiddle)
	return sb.String()
}

func relativeFile(repo, file string) string {
	file = strings.TrimPrefix(file, "file://")
	if repo == "" {
		return file
	}
	if rel, err := filepath.Rel(repo, file); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return file
}
