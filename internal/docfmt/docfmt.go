// Package docfmt converts journal entities to and from the markdown
// documents stored in the remote archive, and computes each entity's
// remote folder and filename.
//
// Documents are deliberately human-editable: a YAML frontmatter block
// carries machine metadata and the body is plain sectioned markdown, so
// the remote folder doubles as a browsable archive. The write side renders
// a fixed layout; the read side is permissive and treats anything it
// cannot parse as an absent field rather than failing the document.
package docfmt

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/inkwell-app/inkwell/internal/entity"
	"gopkg.in/yaml.v3"
)

// Remote folder names, relative to the root application folder. The
// singleton documents live in the root itself.
const (
	FolderCaptures   = "captures"
	FolderCheckins   = "checkins"
	FolderChats      = "chats"
	FolderReviews    = "reviews"
	FolderFrameworks = "frameworks"
)

// Fixed filenames for the singleton documents.
const (
	MemoryFilename    = "memory.md"
	NorthstarFilename = "northstar.md"
)

// PathFor returns the remote folder ("" for the root application folder)
// and filename for an entity. The mapping is a pure function of the
// entity's kind and date/period fields, so repeated syncs always target
// the same remote file.
func PathFor(e any) (folder, name string, err error) {
	switch v := e.(type) {
	case *entity.Capture:
		return FolderCaptures, v.Date + ".md", nil
	case *entity.Checkin:
		return FolderCheckins, fmt.Sprintf("%s-%s.md", v.Date, v.TimeOfDay), nil
	case *entity.Chat:
		return FolderChats, v.Date + ".md", nil
	case *entity.Memory:
		return "", MemoryFilename, nil
	case *entity.Northstar:
		return "", NorthstarFilename, nil
	case *entity.Review:
		return FolderReviews, v.PeriodKey() + ".md", nil
	case *entity.FrameworkSession:
		return FolderFrameworks, fmt.Sprintf("%s-%s.md", v.FrameworkType, v.StartDate), nil
	default:
		return "", "", fmt.Errorf("no remote path for %T", e)
	}
}

var (
	captureFilePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\.md$`)
	checkinFilePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})-(morning|evening)\.md$`)
	chatFilePattern    = captureFilePattern
)

// ParseCaptureFilename extracts the date from a captures-folder filename.
// Files not matching the expected pattern report ok=false and are skipped
// during hydration.
func ParseCaptureFilename(name string) (date string, ok bool) {
	m := captureFilePattern.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseCheckinFilename extracts date and time-of-day from a
// checkins-folder filename.
func ParseCheckinFilename(name string) (date string, tod entity.TimeOfDay, ok bool) {
	m := checkinFilePattern.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	return m[1], entity.TimeOfDay(m[2]), true
}

// ParseChatFilename extracts the date from a chats-folder filename.
func ParseChatFilename(name string) (date string, ok bool) {
	m := chatFilePattern.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// renderFrontmatter marshals meta into a YAML frontmatter block.
func renderFrontmatter(meta any) (string, error) {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal frontmatter: %w", err)
	}
	return "---\n" + string(data) + "---\n\n", nil
}

// splitFrontmatter separates a document into its frontmatter block and
// body. Documents without frontmatter return raw=nil and the whole input
// as body.
func splitFrontmatter(doc string) (raw []byte, body string) {
	if !strings.HasPrefix(doc, "---\n") {
		return nil, doc
	}
	rest := doc[len("---\n"):]
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return nil, doc
	}
	raw = []byte(rest[:idx+1])
	body = rest[idx+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")
	return raw, body
}

// section is a level-2 markdown section: heading text and the trimmed body
// up to the next level-2 heading.
type section struct {
	heading string
	body    string
}

// splitSections walks the body and collects level-2 sections. Text before
// the first section (including the level-1 title) is returned as preamble.
func splitSections(body string) (preamble string, sections []section) {
	var pre strings.Builder
	var cur *section
	var curBody strings.Builder

	flush := func() {
		if cur != nil {
			cur.body = strings.TrimSpace(curBody.String())
			sections = append(sections, *cur)
			cur = nil
			curBody.Reset()
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "## ") && !strings.HasPrefix(line, "###") {
			flush()
			cur = &section{heading: strings.TrimSpace(strings.TrimPrefix(line, "## "))}
			continue
		}
		if cur == nil {
			pre.WriteString(line)
			pre.WriteString("\n")
		} else {
			curBody.WriteString(line)
			curBody.WriteString("\n")
		}
	}
	flush()
	return strings.TrimSpace(pre.String()), sections
}
