package docfmt

import (
	"fmt"
	"strings"
	"time"

	"github.com/inkwell-app/inkwell/internal/entity"
)

// Frontmatter metadata shapes. Field order here is the order rendered in
// the document.

type captureMeta struct {
	Kind string `yaml:"kind"`
	Date string `yaml:"date"`
}

type checkinMeta struct {
	Kind      string `yaml:"kind"`
	Date      string `yaml:"date"`
	TimeOfDay string `yaml:"time_of_day"`
	Stage     string `yaml:"stage"`
}

type chatMeta struct {
	Kind string `yaml:"kind"`
	Date string `yaml:"date"`
}

type documentMeta struct {
	Kind    string `yaml:"kind"`
	Updated string `yaml:"updated,omitempty"`
}

type reviewMeta struct {
	Kind        string `yaml:"kind"`
	Period      string `yaml:"period"`
	PeriodStart string `yaml:"period_start"`
	PeriodEnd   string `yaml:"period_end"`
}

type frameworkMeta struct {
	Kind      string `yaml:"kind"`
	Framework string `yaml:"framework"`
	StartDate string `yaml:"start_date"`
	Stage     string `yaml:"stage"`
}

// clockLayout renders the time-of-day suffix on capture and chat lines.
const clockLayout = "15:04"

// SerializeCaptureDay renders the entire day-group of captures as one
// document, partitioned into pending and done checklists. Captures
// aggregate many-to-one onto a single file per calendar day.
func SerializeCaptureDay(date string, group []*entity.Capture) (string, error) {
	fm, err := renderFrontmatter(captureMeta{Kind: entity.KindCapture.String(), Date: date})
	if err != nil {
		return "", err
	}

	var pending, done []*entity.Capture
	for _, c := range group {
		if c.Status == entity.CaptureDone {
			done = append(done, c)
		} else {
			pending = append(pending, c)
		}
	}

	var b strings.Builder
	b.WriteString(fm)
	fmt.Fprintf(&b, "# Captures for %s\n\n", date)

	b.WriteString("## Pending\n\n")
	for _, c := range pending {
		fmt.Fprintf(&b, "- [ ] %s (%s)\n", c.Content, c.CreatedAt.UTC().Format(clockLayout))
	}
	b.WriteString("\n## Done\n\n")
	for _, c := range done {
		fmt.Fprintf(&b, "- [x] %s (%s)\n", c.Content, c.CreatedAt.UTC().Format(clockLayout))
	}

	return b.String(), nil
}

// SerializeCheckin renders a check-in with one section per question.
func SerializeCheckin(c *entity.Checkin) (string, error) {
	fm, err := renderFrontmatter(checkinMeta{
		Kind:      entity.KindCheckin.String(),
		Date:      c.Date,
		TimeOfDay: string(c.TimeOfDay),
		Stage:     string(c.Stage),
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(fm)
	title := "Morning Check-in"
	if c.TimeOfDay == entity.Evening {
		title = "Evening Check-in"
	}
	fmt.Fprintf(&b, "# %s (%s)\n", title, c.Date)
	writeQASections(&b, c.Entries)
	return b.String(), nil
}

// SerializeChat renders a conversation transcript, one level-3 heading per
// turn.
func SerializeChat(c *entity.Chat) (string, error) {
	fm, err := renderFrontmatter(chatMeta{Kind: entity.KindChat.String(), Date: c.Date})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(fm)
	fmt.Fprintf(&b, "# Chat (%s)\n", c.Date)
	for _, m := range c.Messages {
		speaker := "You"
		if m.Role == entity.RoleAssistant {
			speaker = "Assistant"
		}
		fmt.Fprintf(&b, "\n### %s (%s)\n\n%s\n", speaker, m.At.UTC().Format(clockLayout), m.Content)
	}
	return b.String(), nil
}

// SerializeMemory renders the profile document, one section per heading.
func SerializeMemory(m *entity.Memory) (string, error) {
	fm, err := renderFrontmatter(documentMeta{
		Kind:    entity.KindMemory.String(),
		Updated: m.UpdatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(fm)
	b.WriteString("# Memory\n")
	for _, s := range m.Sections {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", s.Heading, s.Body)
	}
	return b.String(), nil
}

// SerializeNorthstar renders the mission document: the statement as the
// opening paragraph and values as a bullet list.
func SerializeNorthstar(n *entity.Northstar) (string, error) {
	fm, err := renderFrontmatter(documentMeta{
		Kind:    entity.KindNorthstar.String(),
		Updated: n.UpdatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(fm)
	b.WriteString("# Northstar\n")
	if n.Statement != "" {
		fmt.Fprintf(&b, "\n%s\n", n.Statement)
	}
	if len(n.Values) > 0 {
		b.WriteString("\n## Values\n\n")
		for _, v := range n.Values {
			fmt.Fprintf(&b, "- %s\n", v)
		}
	}
	return b.String(), nil
}

// SerializeReview renders a periodic review, one section per prompt.
func SerializeReview(r *entity.Review) (string, error) {
	fm, err := renderFrontmatter(reviewMeta{
		Kind:        entity.KindReview.String(),
		Period:      string(r.Period),
		PeriodStart: r.PeriodStart.UTC().Format(entity.DateLayout),
		PeriodEnd:   r.PeriodEnd.UTC().Format(entity.DateLayout),
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(fm)
	fmt.Fprintf(&b, "# %s Review %s\n", periodTitle(r.Period), r.PeriodKey())
	writeQASections(&b, r.Sections)
	return b.String(), nil
}

// SerializeFrameworkSession renders a guided exercise session.
func SerializeFrameworkSession(f *entity.FrameworkSession) (string, error) {
	fm, err := renderFrontmatter(frameworkMeta{
		Kind:      entity.KindFrameworkSession.String(),
		Framework: f.FrameworkType,
		StartDate: f.StartDate,
		Stage:     string(f.Stage),
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(fm)
	fmt.Fprintf(&b, "# %s (%s)\n", f.FrameworkType, f.StartDate)
	writeQASections(&b, f.Entries)
	return b.String(), nil
}

func periodTitle(p entity.ReviewPeriod) string {
	switch p {
	case entity.PeriodMonthly:
		return "Monthly"
	case entity.PeriodQuarterly:
		return "Quarterly"
	default:
		return "Weekly"
	}
}

func writeQASections(b *strings.Builder, entries []entity.QA) {
	for _, e := range entries {
		fmt.Fprintf(b, "\n## %s\n", e.Question)
		if e.Response != "" {
			fmt.Fprintf(b, "\n%s\n", e.Response)
		}
	}
}
