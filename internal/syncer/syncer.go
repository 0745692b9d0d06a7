// Package syncer drains the pending mutation queue to the remote
// document store.
//
// The processor delivers at least once: every upload re-renders the full
// document from the local database, so a redelivered mutation converges
// to the same remote state instead of duplicating content. Latest local
// write wins; the remote copy is never consulted before an upload.
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/inkwell-app/inkwell/internal/docfmt"
	"github.com/inkwell-app/inkwell/internal/drive"
	"github.com/inkwell-app/inkwell/internal/entity"
	"github.com/inkwell-app/inkwell/internal/queue"
	"github.com/inkwell-app/inkwell/internal/store"
)

// DefaultMaxRetries is how many delivery attempts an entry gets before
// its entity is marked failed and the entry is dropped.
const DefaultMaxRetries = 3

// DefaultRootFolder is the remote folder holding the whole journal.
const DefaultRootFolder = "Inkwell"

// Result summarizes one drain pass.
type Result struct {
	Processed int
	Failed    int
}

// Processor drains queued mutations to the remote store.
type Processor struct {
	store      *store.Store
	queue      *queue.Queue
	client     *drive.Client
	rootFolder string
	maxRetries int
	logger     *log.Logger
}

// New creates a Processor. If logger is nil, a default logger writing
// to stderr is used.
func New(st *store.Store, q *queue.Queue, client *drive.Client, logger *log.Logger) *Processor {
	if logger == nil {
		logger = log.New(os.Stderr, "[syncer] ", log.LstdFlags)
	}
	return &Processor{
		store:      st,
		queue:      q,
		client:     client,
		rootFolder: DefaultRootFolder,
		maxRetries: DefaultMaxRetries,
		logger:     logger,
	}
}

// SetRootFolder overrides the remote root folder name.
func (p *Processor) SetRootFolder(name string) {
	if name != "" {
		p.rootFolder = name
	}
}

// SetMaxRetries overrides the per-entry attempt cap.
func (p *Processor) SetMaxRetries(n int) {
	if n > 0 {
		p.maxRetries = n
	}
}

// Run drains the queue once, oldest entry first. A missing credential
// makes the whole pass a no-op so queued work survives until the user
// signs in. One entry failing does not stop the rest of the pass.
func (p *Processor) Run(ctx context.Context) (Result, error) {
	var res Result
	if !p.client.Available() {
		return res, nil
	}

	entries, err := p.queue.DequeueAll(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to read sync queue: %w", err)
	}
	if len(entries) == 0 {
		return res, nil
	}

	rootID, err := p.client.GetOrCreateFolder(ctx, "", p.rootFolder)
	if err != nil {
		return res, fmt.Errorf("failed to resolve root folder: %w", err)
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if err := p.process(ctx, rootID, e); err != nil {
			p.logger.Printf("Sync failed for %s %s (attempt %d): %v",
				e.Kind, e.EntityID, e.Retries+1, err)
			res.Failed++
			if err := p.fail(ctx, e); err != nil {
				p.logger.Printf("Failed to record sync failure for %s %s: %v",
					e.Kind, e.EntityID, err)
			}
			continue
		}
		res.Processed++
		if err := p.queue.Remove(ctx, e.Seq); err != nil {
			p.logger.Printf("Failed to remove queue entry %d: %v", e.Seq, err)
		}
	}
	return res, nil
}

// fail bumps the retry counter, and past the cap marks the entity as
// failed and drops the entry so it cannot wedge the queue.
func (p *Processor) fail(ctx context.Context, e queue.Entry) error {
	if e.Retries+1 < p.maxRetries {
		return p.queue.BumpRetry(ctx, e.Seq)
	}

	p.logger.Printf("Giving up on %s %s after %d attempts", e.Kind, e.EntityID, e.Retries+1)
	if e.Op != queue.OpDelete {
		// A vanished entity is a zero-row update here, not an error.
		if err := p.store.SetSyncStatus(ctx, e.Kind, e.EntityID, entity.SyncError); err != nil {
			return err
		}
	}
	return p.queue.Remove(ctx, e.Seq)
}

func (p *Processor) process(ctx context.Context, rootID string, e queue.Entry) error {
	if e.Op == queue.OpDelete {
		return p.processDelete(ctx, rootID, e)
	}
	if e.Kind == entity.KindCapture {
		return p.processCaptureDay(ctx, rootID, e)
	}
	return p.processUpsert(ctx, rootID, e)
}

// processDelete removes the remote file recorded in the entry's hint.
// An entry without a hint means the entity was never uploaded, so there
// is nothing to remove. A capture's hint names a shared day file; while
// siblings still reference it the file is rewritten without the deleted
// capture rather than removed.
func (p *Processor) processDelete(ctx context.Context, rootID string, e queue.Entry) error {
	if e.RemoteFileID == "" {
		return nil
	}
	if e.Kind == entity.KindCapture {
		group, err := p.store.CapturesByRemoteFile(ctx, e.RemoteFileID)
		if err != nil {
			return fmt.Errorf("failed to load day group for remote file %s: %w", e.RemoteFileID, err)
		}
		if len(group) > 0 {
			return p.rewriteCaptureDay(ctx, rootID, group[0].Date, e.RemoteFileID)
		}
	}
	return p.client.DeleteFile(ctx, e.RemoteFileID)
}

// rewriteCaptureDay re-uploads the day file for date, reflecting whatever
// captures currently exist locally, and restamps the group.
func (p *Processor) rewriteCaptureDay(ctx context.Context, rootID, date, remoteID string) error {
	group, err := p.store.CapturesByDate(ctx, date)
	if err != nil {
		return fmt.Errorf("failed to load capture day %s: %w", date, err)
	}

	doc, err := docfmt.SerializeCaptureDay(date, group)
	if err != nil {
		return fmt.Errorf("failed to render capture day %s: %w", date, err)
	}

	remoteID, err = p.upload(ctx, rootID, docfmt.FolderCaptures, date+".md", remoteID, doc)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, g := range group {
		if err := p.store.StampSynced(ctx, entity.KindCapture, g.ID, remoteID, now); err != nil {
			return fmt.Errorf("failed to stamp capture %s: %w", g.ID, err)
		}
	}
	return nil
}

// processCaptureDay re-renders the whole day's captures document. One
// queue entry per capture is enough to refresh the shared file, and the
// resulting remote ID is written back to every capture in the group.
func (p *Processor) processCaptureDay(ctx context.Context, rootID string, e queue.Entry) error {
	c, err := p.store.GetCapture(ctx, e.EntityID)
	if errors.Is(err, sql.ErrNoRows) {
		// Deleted locally after enqueue; the delete entry handles the rest.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load capture: %w", err)
	}

	group, err := p.store.CapturesByDate(ctx, c.Date)
	if err != nil {
		return fmt.Errorf("failed to load capture day %s: %w", c.Date, err)
	}

	// Any member of the group that already synced pins the shared file.
	remoteID := ""
	for _, g := range group {
		if g.RemoteFileID != "" {
			remoteID = g.RemoteFileID
			break
		}
	}
	return p.rewriteCaptureDay(ctx, rootID, c.Date, remoteID)
}

func (p *Processor) processUpsert(ctx context.Context, rootID string, e queue.Entry) error {
	doc, remoteID, target, err := p.render(ctx, e)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	folder, name, err := docfmt.PathFor(target)
	if err != nil {
		return err
	}
	remoteID, err = p.upload(ctx, rootID, folder, name, remoteID, doc)
	if err != nil {
		return err
	}
	return p.store.StampSynced(ctx, e.Kind, e.EntityID, remoteID, time.Now().UTC())
}

// render loads the entity behind a queue entry and serializes it.
func (p *Processor) render(ctx context.Context, e queue.Entry) (doc, remoteID string, target any, err error) {
	switch e.Kind {
	case entity.KindCheckin:
		c, err := p.store.GetCheckin(ctx, e.EntityID)
		if err != nil {
			return "", "", nil, err
		}
		doc, err := docfmt.SerializeCheckin(c)
		return doc, c.RemoteFileID, c, err
	case entity.KindChat:
		c, err := p.store.GetChat(ctx, e.EntityID)
		if err != nil {
			return "", "", nil, err
		}
		doc, err := docfmt.SerializeChat(c)
		return doc, c.RemoteFileID, c, err
	case entity.KindMemory:
		m, err := p.store.GetMemory(ctx)
		if err != nil {
			return "", "", nil, err
		}
		doc, err := docfmt.SerializeMemory(m)
		return doc, m.RemoteFileID, m, err
	case entity.KindNorthstar:
		n, err := p.store.GetNorthstar(ctx)
		if err != nil {
			return "", "", nil, err
		}
		doc, err := docfmt.SerializeNorthstar(n)
		return doc, n.RemoteFileID, n, err
	case entity.KindReview:
		r, err := p.store.GetReview(ctx, e.EntityID)
		if err != nil {
			return "", "", nil, err
		}
		doc, err := docfmt.SerializeReview(r)
		return doc, r.RemoteFileID, r, err
	case entity.KindFrameworkSession:
		f, err := p.store.GetFrameworkSession(ctx, e.EntityID)
		if err != nil {
			return "", "", nil, err
		}
		doc, err := docfmt.SerializeFrameworkSession(f)
		return doc, f.RemoteFileID, f, err
	default:
		return "", "", nil, fmt.Errorf("unknown entity kind %q", e.Kind)
	}
}

// upload writes doc to the remote store: in place when the entity has a
// remote file already, otherwise as a new file in its folder. It
// returns the remote file ID the content now lives under.
func (p *Processor) upload(ctx context.Context, rootID, folder, name, remoteID, doc string) (string, error) {
	if remoteID != "" {
		if _, err := p.client.UpdateFile(ctx, remoteID, doc); err != nil {
			if !drive.IsNotFound(err) {
				return "", err
			}
			// Remote file vanished; fall through and recreate it.
			p.logger.Printf("Remote file %s gone, recreating %s", remoteID, name)
		} else {
			return remoteID, nil
		}
	}

	parentID := rootID
	if folder != "" {
		var err error
		parentID, err = p.client.GetOrCreateFolder(ctx, rootID, folder)
		if err != nil {
			return "", err
		}
	}

	f, err := p.client.CreateFile(ctx, parentID, name, doc)
	if err != nil {
		return "", err
	}
	return f.ID, nil
}
