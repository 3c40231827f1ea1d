// Package skillpicker lists the coding-agent CLI's locally installed
// skills so the orchestrator can render a `skill:<name>` inline
// keyboard. It never loads, installs, or executes a skill — that
// happens entirely inside the CLI subprocess once the picked skill
// name is sent back as ordinary query text.
package skillpicker

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Summary is one entry in the skill picker's inline keyboard.
type Summary struct {
	Name        string
	Description string
	Dir         string
}

// List scans dir for immediate subdirectories containing a SKILL.md
// file, parsing its front matter for name/description. A missing dir
// yields an empty list, not an error, matching the teacher's own
// "missing directory degrades to none" convention for optional local
// state.
func List(dir string) ([]Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		skillDir := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(filepath.Join(skillDir, "SKILL.md"))
		if err != nil {
			continue
		}
		meta, _ := parseFrontmatter(string(data))
		name := strings.TrimSpace(meta["name"])
		if name == "" {
			name = entry.Name()
		}
		out = append(out, Summary{
			Name:        name,
			Description: strings.TrimSpace(meta["description"]),
			Dir:         skillDir,
		})
	}
	return out, nil
}

// ByName returns the entry whose name or directory basename matches
// (case-insensitively), or an error if none does.
func ByName(dir string, name string) (Summary, error) {
	all, err := List(dir)
	if err != nil {
		return Summary{}, err
	}
	for _, s := range all {
		if strings.EqualFold(s.Name, name) || strings.EqualFold(filepath.Base(s.Dir), name) {
			return s, nil
		}
	}
	return Summary{}, fmt.Errorf("skill not found: %s", name)
}

func parseFrontmatter(content string) (map[string]string, string) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	if !scanner.Scan() {
		return map[string]string{}, ""
	}
	if strings.TrimSpace(scanner.Text()) != "---" {
		return map[string]string{}, content
	}
	var metaLines []string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			break
		}
		metaLines = append(metaLines, line)
	}
	meta := make(map[string]string, len(metaLines))
	for _, line := range metaLines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		meta[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	var bodyLines []string
	for scanner.Scan() {
		bodyLines = append(bodyLines, scanner.Text())
	}
	return meta, strings.Join(bodyLines, "\n")
}
