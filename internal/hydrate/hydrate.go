// Package hydrate seeds an empty local database from the remote
// document store, so a fresh install on a second device starts with the
// user's existing journal instead of an empty one.
package hydrate

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/inkwell-app/inkwell/internal/docfmt"
	"github.com/inkwell-app/inkwell/internal/drive"
	"github.com/inkwell-app/inkwell/internal/store"
)

// Stage tracks the bootstrapper through its one-way run.
type Stage int

const (
	StageNotStarted Stage = iota
	StageCheckingEmpty
	StageSkipped
	StageHydrating
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageNotStarted:
		return "not_started"
	case StageCheckingEmpty:
		return "checking_empty"
	case StageSkipped:
		return "skipped"
	case StageHydrating:
		return "hydrating"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Result summarizes a hydration run.
type Result struct {
	Hydrated int
	Skipped  int
}

// Bootstrapper performs the one-time remote-to-local import.
type Bootstrapper struct {
	store        *store.Store
	client       *drive.Client
	rootFolder   string
	legacyFolder string
	logger       *log.Logger
	stage        Stage
}

// New creates a Bootstrapper. legacyFolder may be empty; when set it is
// consulted only if the primary root folder yields nothing. If logger
// is nil, a default logger writing to stderr is used.
func New(st *store.Store, client *drive.Client, rootFolder, legacyFolder string, logger *log.Logger) *Bootstrapper {
	if logger == nil {
		logger = log.New(os.Stderr, "[hydrate] ", log.LstdFlags)
	}
	return &Bootstrapper{
		store:        st,
		client:       client,
		rootFolder:   rootFolder,
		legacyFolder: legacyFolder,
		logger:       logger,
	}
}

// Stage returns how far the bootstrapper got.
func (b *Bootstrapper) Stage() Stage {
	return b.stage
}

// Run hydrates the local database if, and only if, it holds no journal
// entries yet. A database with any captures or check-ins is someone's
// working copy and is never touched. A malformed remote file is counted
// and skipped, never fatal.
func (b *Bootstrapper) Run(ctx context.Context) (Result, error) {
	var res Result

	b.stage = StageCheckingEmpty
	empty, err := b.store.IsEmpty(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to check local database: %w", err)
	}
	if !empty {
		b.stage = StageSkipped
		return res, nil
	}
	if !b.client.Available() {
		b.logger.Printf("No credentials, deferring hydration")
		b.stage = StageSkipped
		return res, nil
	}

	b.stage = StageHydrating
	res, err = b.hydrateFrom(ctx, b.rootFolder)
	if err != nil {
		return res, err
	}

	// A user migrating from an older install may have their journal
	// under the old root name. Only worth looking when the primary
	// walk came back empty.
	if res.Hydrated == 0 && b.legacyFolder != "" && b.legacyFolder != b.rootFolder {
		b.logger.Printf("Primary root %q empty, trying legacy root %q", b.rootFolder, b.legacyFolder)
		res, err = b.hydrateFrom(ctx, b.legacyFolder)
		if err != nil {
			return res, err
		}
	}

	b.stage = StageDone
	b.logger.Printf("Hydration complete: %d imported, %d skipped", res.Hydrated, res.Skipped)
	return res, nil
}

func (b *Bootstrapper) hydrateFrom(ctx context.Context, rootName string) (Result, error) {
	var res Result

	rootID, err := b.client.FindFolder(ctx, "", rootName)
	if err != nil {
		return res, fmt.Errorf("failed to look up root folder %q: %w", rootName, err)
	}
	if rootID == "" {
		return res, nil
	}

	b.hydrateSingletons(ctx, rootID, &res)
	b.hydrateCaptures(ctx, rootID, &res)
	b.hydrateCheckins(ctx, rootID, &res)
	return res, nil
}

func (b *Bootstrapper) hydrateSingletons(ctx context.Context, rootID string, res *Result) {
	if body, fileID, ok := b.download(ctx, rootID, docfmt.MemoryFilename, res); ok {
		m := docfmt.DeserializeMemory(body, fileID)
		if err := b.store.PutMemory(ctx, m); err != nil {
			b.logger.Printf("Failed to store memory document: %v", err)
			res.Skipped++
		} else {
			res.Hydrated++
		}
	}
	if body, fileID, ok := b.download(ctx, rootID, docfmt.NorthstarFilename, res); ok {
		n := docfmt.DeserializeNorthstar(body, fileID)
		if err := b.store.PutNorthstar(ctx, n); err != nil {
			b.logger.Printf("Failed to store northstar document: %v", err)
			res.Skipped++
		} else {
			res.Hydrated++
		}
	}
}

// download fetches a named file directly under parentID. Absent files
// are silent; a file that exists but cannot be fetched counts as
// skipped.
func (b *Bootstrapper) download(ctx context.Context, parentID, name string, res *Result) (body, fileID string, ok bool) {
	f, err := b.client.FindFile(ctx, parentID, name)
	if err != nil {
		b.logger.Printf("Failed to look up %s: %v", name, err)
		res.Skipped++
		return "", "", false
	}
	if f == nil {
		return "", "", false
	}
	body, err = b.client.Download(ctx, f.ID)
	if err != nil {
		b.logger.Printf("Failed to download %s: %v", name, err)
		res.Skipped++
		return "", "", false
	}
	return body, f.ID, true
}

func (b *Bootstrapper) hydrateCaptures(ctx context.Context, rootID string, res *Result) {
	files, ok := b.listFolder(ctx, rootID, docfmt.FolderCaptures, res)
	if !ok {
		return
	}
	for _, f := range files {
		date, valid := docfmt.ParseCaptureFilename(f.Name)
		if !valid {
			b.logger.Printf("Skipping unrecognized captures file: %s", f.Name)
			res.Skipped++
			continue
		}
		body, err := b.client.Download(ctx, f.ID)
		if err != nil {
			b.logger.Printf("Failed to download %s: %v", f.Name, err)
			res.Skipped++
			continue
		}
		for _, c := range docfmt.DeserializeCaptureDay(body, date, f.ID) {
			if err := b.store.PutCapture(ctx, c); err != nil {
				b.logger.Printf("Failed to store capture from %s: %v", f.Name, err)
				res.Skipped++
				continue
			}
			res.Hydrated++
		}
	}
}

func (b *Bootstrapper) hydrateCheckins(ctx context.Context, rootID string, res *Result) {
	files, ok := b.listFolder(ctx, rootID, docfmt.FolderCheckins, res)
	if !ok {
		return
	}
	for _, f := range files {
		date, tod, valid := docfmt.ParseCheckinFilename(f.Name)
		if !valid {
			b.logger.Printf("Skipping unrecognized checkins file: %s", f.Name)
			res.Skipped++
			continue
		}
		body, err := b.client.Download(ctx, f.ID)
		if err != nil {
			b.logger.Printf("Failed to download %s: %v", f.Name, err)
			res.Skipped++
			continue
		}
		c := docfmt.DeserializeCheckin(body, date, tod, f.ID)
		if err := b.store.PutCheckin(ctx, c); err != nil {
			b.logger.Printf("Failed to store check-in from %s: %v", f.Name, err)
			res.Skipped++
			continue
		}
		res.Hydrated++
	}
}

func (b *Bootstrapper) listFolder(ctx context.Context, rootID, folder string, res *Result) ([]drive.File, bool) {
	folderID, err := b.client.FindFolder(ctx, rootID, folder)
	if err != nil {
		b.logger.Printf("Failed to look up folder %s: %v", folder, err)
		res.Skipped++
		return nil, false
	}
	if folderID == "" {
		return nil, false
	}
	files, err := b.client.ListFolder(ctx, folderID)
	if err != nil {
		b.logger.Printf("Failed to list folder %s: %v", folder, err)
		res.Skipped++
		return nil, false
	}
	return files, true
}
