package manifest

import (
	"fmt"
	"os"
	"strings"
)

// SetDependency updates (or adds) a single dependency range in agents.toml,
// touching only the affected line. All other lines, including comments and
// blank lines, are preserved byte for byte.
func SetDependency(projectRoot, name, versionRange string) error {
	return rewrite(projectRoot, func(lines []string) ([]string, error) {
		depLine := fmt.Sprintf("%q = %q", name, versionRange)

		idx, sectionEnd := findDependencyLine(lines, name)
		if idx >= 0 {
			lines[idx] = leadingWhitespace(lines[idx]) + depLine
			return lines, nil
		}

		if sectionEnd >= 0 {
			// Insert at the end of the existing [dependencies] section.
			out := make([]string, 0, len(lines)+1)
			out = append(out, lines[:sectionEnd]...)
			out = append(out, depLine)
			out = append(out, lines[sectionEnd:]...)
			return out, nil
		}

		// No [dependencies] section yet: append one.
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) != "" {
			lines = append(lines, "")
		}
		lines = append(lines, "[dependencies]", depLine)
		return lines, nil
	})
}

// RemoveDependency deletes a dependency line from agents.toml.
func RemoveDependency(projectRoot, name string) error {
	return rewrite(projectRoot, func(lines []string) ([]string, error) {
		idx, _ := findDependencyLine(lines, name)
		if idx < 0 {
			return nil, fmt.Errorf("dependency %q not found in %s", name, FileName)
		}
		return append(lines[:idx], lines[idx+1:]...), nil
	})
}

// rewrite applies a line-level transform to agents.toml and writes the
// result back atomically (temp file + rename).
func rewrite(projectRoot string, fn func([]string) ([]string, error)) error {
	path := Path(projectRoot)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", FileName, err)
	}

	hadTrailingNewline := strings.HasSuffix(string(data), "\n")
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")

	lines, err = fn(lines)
	if err != nil {
		return err
	}

	out := strings.Join(lines, "\n")
	if hadTrailingNewline || !strings.HasSuffix(out, "\n") {
		out += "\n"
	}

	tmp, err := os.CreateTemp(projectRoot, ".agents-*.toml")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	tmpName := tmp.Name()
	// CreateTemp gives 0600; the manifest is shared project state.
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("setting manifest permissions: %w", err)
	}
	if _, err := tmp.WriteString(out); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp manifest: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", FileName, err)
	}
	return nil
}

// findDependencyLine locates the line holding the given dependency key.
// It returns (lineIndex, -1) when found, or (-1, insertIndex) where
// insertIndex is the position just past the last entry of the
// [dependencies] section, or (-1, -1) if the section does not exist.
func findDependencyLine(lines []string, name string) (int, int) {
	inSection := false
	sectionEnd := -1

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "[") {
			if inSection {
				return -1, sectionEnd
			}
			inSection = trimmed == "[dependencies]"
			if inSection {
				sectionEnd = i + 1
			}
			continue
		}

		if !inSection {
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		key, _, ok := strings.Cut(trimmed, "=")
		if !ok {
			continue
		}
		if unquoteKey(strings.TrimSpace(key)) == name {
			return i, -1
		}
		sectionEnd = i + 1
	}

	return -1, sectionEnd
}

// unquoteKey strips surrounding quotes from a TOML key if present.
func unquoteKey(key string) string {
	if len(key) >= 2 && (key[0] == '"' || key[0] == '\'') && key[len(key)-1] == key[0] {
		return key[1 : len(key)-1]
	}
	return key
}

// leadingWhitespace returns the indentation prefix of a line.
func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
