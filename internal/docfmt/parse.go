package docfmt

import (
	"bufio"
	"regexp"
	"strings"
	"time"

	"github.com/inkwell-app/inkwell/internal/entity"
	"gopkg.in/yaml.v3"
)

// Parsing is deliberately forgiving: these documents live in a folder the
// user can open and edit by hand, so a malformed line or a reordered
// section must degrade to "field absent", never to a failed document.

// checklistPattern matches a markdown checklist line, capturing the done
// marker and the item text (with any trailing clock suffix).
var checklistPattern = regexp.MustCompile(`^\s*-\s*\[([ xX])\]\s*(.+)$`)

// clockSuffixPattern matches the trailing "(HH:MM)" on a rendered line.
var clockSuffixPattern = regexp.MustCompile(`^(.*?)\s*\((\d{2}:\d{2})\)\s*$`)

// transcriptHeadPattern matches a chat turn heading such as
// "### You (07:32)" or "### Assistant".
var transcriptHeadPattern = regexp.MustCompile(`^###\s+(\S+)(?:\s+\((\d{2}:\d{2})\))?\s*$`)

// DeserializeCaptureDay reconstructs the day-group of captures from a
// captures document. The date context comes from the filename; the
// document's own frontmatter, if present and parseable, takes precedence.
// Lines that are not valid checklist entries are ignored. Fresh IDs are
// assigned, since the document format does not carry them.
func DeserializeCaptureDay(body, date, remoteFileID string) []*entity.Capture {
	raw, rest := splitFrontmatter(body)
	if raw != nil {
		var meta captureMeta
		if err := yaml.Unmarshal(raw, &meta); err == nil && validDate(meta.Date) {
			date = meta.Date
		}
	}

	day, _ := time.Parse(entity.DateLayout, date)

	var captures []*entity.Capture
	inDone := false
	scanner := bufio.NewScanner(strings.NewReader(rest))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "## ") {
			inDone = strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(line, "## ")), "done")
			continue
		}

		m := checklistPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		content := strings.TrimSpace(m[2])
		createdAt := day
		if cm := clockSuffixPattern.FindStringSubmatch(content); cm != nil {
			if clock, err := time.Parse(clockLayout, cm[2]); err == nil {
				content = strings.TrimSpace(cm[1])
				createdAt = day.Add(time.Duration(clock.Hour())*time.Hour +
					time.Duration(clock.Minute())*time.Minute)
			}
		}
		if content == "" {
			continue
		}

		// A marked checkbox always means done; an unmarked box under the
		// Done heading counts too, for hand-moved lines.
		status := entity.CapturePending
		if m[1] != " " || inDone {
			status = entity.CaptureDone
		}

		c := entity.NewCapture(date, content)
		c.Status = status
		c.CreatedAt = createdAt
		c.UpdatedAt = createdAt
		c.RemoteFileID = remoteFileID
		c.SyncStatus = entity.SyncSynced
		captures = append(captures, c)
	}
	return captures
}

// DeserializeCheckin reconstructs a check-in from its document. The date
// and time-of-day context come from the filename and are overridden by a
// parseable frontmatter block. An unrecognized stage falls back to the
// opening stage.
func DeserializeCheckin(body, date string, tod entity.TimeOfDay, remoteFileID string) *entity.Checkin {
	raw, rest := splitFrontmatter(body)
	stage := entity.StageOpening
	if raw != nil {
		var meta checkinMeta
		if err := yaml.Unmarshal(raw, &meta); err == nil {
			if validDate(meta.Date) {
				date = meta.Date
			}
			if t, err := entity.ParseTimeOfDay(meta.TimeOfDay); err == nil {
				tod = t
			}
			stage = entity.ParseCheckinStage(meta.Stage)
		}
	}

	c := entity.NewCheckin(date, tod)
	c.Stage = stage
	_, sections := splitSections(rest)
	for _, s := range sections {
		c.Entries = append(c.Entries, entity.QA{Question: s.heading, Response: s.body})
	}
	c.RemoteFileID = remoteFileID
	c.SyncStatus = entity.SyncSynced
	return c
}

// DeserializeChat reconstructs a conversation from its transcript. Turns
// with an unrecognized speaker are skipped.
func DeserializeChat(body, date, remoteFileID string) *entity.Chat {
	raw, rest := splitFrontmatter(body)
	if raw != nil {
		var meta chatMeta
		if err := yaml.Unmarshal(raw, &meta); err == nil && validDate(meta.Date) {
			date = meta.Date
		}
	}

	day, _ := time.Parse(entity.DateLayout, date)
	chat := entity.NewChat(date)
	chat.RemoteFileID = remoteFileID
	chat.SyncStatus = entity.SyncSynced

	var cur *entity.ChatMessage
	var curBody strings.Builder
	flush := func() {
		if cur != nil {
			cur.Content = strings.TrimSpace(curBody.String())
			if cur.Content != "" {
				chat.Messages = append(chat.Messages, *cur)
			}
			cur = nil
			curBody.Reset()
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(rest))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if m := transcriptHeadPattern.FindStringSubmatch(line); m != nil {
			flush()
			var role entity.ChatRole
			switch strings.ToLower(m[1]) {
			case "you":
				role = entity.RoleUser
			case "assistant":
				role = entity.RoleAssistant
			default:
				continue
			}
			at := day
			if m[2] != "" {
				if clock, err := time.Parse(clockLayout, m[2]); err == nil {
					at = day.Add(time.Duration(clock.Hour())*time.Hour +
						time.Duration(clock.Minute())*time.Minute)
				}
			}
			cur = &entity.ChatMessage{Role: role, At: at}
			continue
		}
		if cur != nil {
			curBody.WriteString(line)
			curBody.WriteString("\n")
		}
	}
	flush()
	return chat
}

// DeserializeMemory reconstructs the profile document from its sections.
func DeserializeMemory(body, remoteFileID string) *entity.Memory {
	_, rest := splitFrontmatter(body)
	m := entity.NewMemory()
	_, sections := splitSections(rest)
	for _, s := range sections {
		m.Sections = append(m.Sections, entity.Section{Heading: s.heading, Body: s.body})
	}
	m.RemoteFileID = remoteFileID
	m.SyncStatus = entity.SyncSynced
	return m
}

// DeserializeNorthstar reconstructs the mission document. The statement is
// the preamble paragraph under the title; values are bullet lines in a
// "Values" section.
func DeserializeNorthstar(body, remoteFileID string) *entity.Northstar {
	_, rest := splitFrontmatter(body)
	preamble, sections := splitSections(rest)

	statement := ""
	for _, line := range strings.Split(preamble, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if statement != "" {
			statement += " "
		}
		statement += line
	}

	n := entity.NewNorthstar(statement)
	for _, s := range sections {
		if !strings.EqualFold(s.heading, "values") {
			continue
		}
		for _, line := range strings.Split(s.body, "\n") {
			line = strings.TrimSpace(line)
			if v, ok := strings.CutPrefix(line, "- "); ok {
				if v = strings.TrimSpace(v); v != "" {
					n.Values = append(n.Values, v)
				}
			}
		}
	}
	n.RemoteFileID = remoteFileID
	n.SyncStatus = entity.SyncSynced
	return n
}

// DeserializeReview reconstructs a review. Period metadata comes from the
// frontmatter; without it the review defaults to a weekly cadence starting
// at the supplied date context.
func DeserializeReview(body, dateContext, remoteFileID string) *entity.Review {
	raw, rest := splitFrontmatter(body)

	period := entity.PeriodWeekly
	start, _ := time.Parse(entity.DateLayout, dateContext)
	end := start.AddDate(0, 0, 6)

	if raw != nil {
		var meta reviewMeta
		if err := yaml.Unmarshal(raw, &meta); err == nil {
			if p, err := entity.ParseReviewPeriod(meta.Period); err == nil {
				period = p
			}
			if t, err := time.Parse(entity.DateLayout, meta.PeriodStart); err == nil {
				start = t
			}
			if t, err := time.Parse(entity.DateLayout, meta.PeriodEnd); err == nil {
				end = t
			}
		}
	}

	r := entity.NewReview(period, start, end)
	_, sections := splitSections(rest)
	for _, s := range sections {
		r.Sections = append(r.Sections, entity.QA{Question: s.heading, Response: s.body})
	}
	r.RemoteFileID = remoteFileID
	r.SyncStatus = entity.SyncSynced
	return r
}

// DeserializeFrameworkSession reconstructs a guided exercise session.
func DeserializeFrameworkSession(body, frameworkType, startDate, remoteFileID string) *entity.FrameworkSession {
	raw, rest := splitFrontmatter(body)
	stage := entity.FrameworkIntro
	if raw != nil {
		var meta frameworkMeta
		if err := yaml.Unmarshal(raw, &meta); err == nil {
			if meta.Framework != "" {
				frameworkType = meta.Framework
			}
			if validDate(meta.StartDate) {
				startDate = meta.StartDate
			}
			stage = entity.ParseFrameworkStage(meta.Stage)
		}
	}

	f := entity.NewFrameworkSession(frameworkType, startDate)
	f.Stage = stage
	_, sections := splitSections(rest)
	for _, s := range sections {
		f.Entries = append(f.Entries, entity.QA{Question: s.heading, Response: s.body})
	}
	f.RemoteFileID = remoteFileID
	f.SyncStatus = entity.SyncSynced
	return f
}

func validDate(s string) bool {
	_, err := time.Parse(entity.DateLayout, s)
	return err == nil
}
