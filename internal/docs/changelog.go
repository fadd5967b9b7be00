package docs

import (
	"strings"

	"go.uber.org/zap"
)

const unreleasedMarker = "## [Unreleased]"

// unreleasedSection renders the section for date. It always ends with a blank
// line so a following heading stays separated.
func unreleasedSection(date string) string {
	return unreleasedMarker + " - " + date + `

### Added
- Enhanced GitHub repository automation
- Real-time updates via webhooks/polling

### Fixed
- VSCode extension TypeScript errors
- Improved error handling and logging

`
}

// UpdateChangelog writes today's Unreleased section. An existing Unreleased
// section is replaced up to the next level-2 heading; otherwise the section
// goes right after the title line. Reruns on the same day change nothing.
func (u *Updater) UpdateChangelog() (bool, error) {
	section := unreleasedSection(u.now().Format("2006-01-02"))

	changed, err := u.patch(u.changelogFile, func(content string, exists bool) string {
		if !exists {
			return "# Changelog\n\n" + section
		}
		return patchChangelog(content, section)
	})
	if changed {
		u.logger.Info("updated changelog", zap.String("file", u.changelogFile))
	}
	return changed, err
}

func patchChangelog(content, section string) string {
	if start := strings.Index(content, unreleasedMarker); start >= 0 {
		if next := nextLevelTwoHeading(content, start+len(unreleasedMarker)); next >= 0 {
			return content[:start] + section + content[next:]
		}
		return content[:start] + section
	}

	titleEnd := strings.Index(content, "\n") + 1
	if titleEnd == 0 {
		return content + "\n\n" + section
	}
	return content[:titleEnd] + "\n" + section + strings.TrimLeft(content[titleEnd:], "\n")
}

// nextLevelTwoHeading returns the offset of the first "## " line at or after from
func nextLevelTwoHeading(content string, from int) int {
	offset := from
	for offset < len(content) {
		nl := strings.IndexByte(content[offset:], '\n')
		if nl < 0 {
			return -1
		}
		offset += nl + 1
		if strings.HasPrefix(content[offset:], "## ") {
			return offset
		}
	}
	return -1
}
