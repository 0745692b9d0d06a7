// Package entity defines the syncable record types that make up a journal:
// captures, check-ins, chats, the memory and northstar documents, reviews,
// and framework sessions.
//
// Every kind shares the Syncable base fields used by the sync engine to
// track remote state. Kind is a closed enum so that codec and storage
// dispatch is exhaustive at compile time rather than driven by string keys.
package entity

import "fmt"

// Kind identifies a concrete entity type.
type Kind int

const (
	// KindCapture is a quick inbox item. Many captures share one remote
	// file per calendar day.
	KindCapture Kind = iota
	// KindCheckin is a structured morning/evening Q&A session.
	KindCheckin
	// KindChat is a free-form conversation, one remote file per day.
	KindChat
	// KindMemory is the singleton long-lived profile document.
	KindMemory
	// KindNorthstar is the singleton personal-mission document.
	KindNorthstar
	// KindReview is a weekly/monthly/quarterly reflection.
	KindReview
	// KindFrameworkSession is a guided multi-stage exercise.
	KindFrameworkSession
)

// Kinds returns all entity kinds in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindCapture,
		KindCheckin,
		KindChat,
		KindMemory,
		KindNorthstar,
		KindReview,
		KindFrameworkSession,
	}
}

// String returns the canonical tag for the kind, as stored in the sync
// queue and emitted in document frontmatter.
func (k Kind) String() string {
	switch k {
	case KindCapture:
		return "capture"
	case KindCheckin:
		return "checkin"
	case KindChat:
		return "chat"
	case KindMemory:
		return "memory"
	case KindNorthstar:
		return "northstar"
	case KindReview:
		return "review"
	case KindFrameworkSession:
		return "framework_session"
	default:
		return "unknown"
	}
}

// ParseKind converts a stored kind tag back to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown entity kind %q", s)
}

// Singleton reports whether exactly one row of this kind exists.
func (k Kind) Singleton() bool {
	return k == KindMemory || k == KindNorthstar
}
