package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/vaultrev/internal/engine"
	"github.com/roach88/vaultrev/internal/ir"
	"github.com/roach88/vaultrev/internal/store"
)

// ErrNoSyncBase is reported for an item present and different on both
// replicas that was never synced, so no common ancestor is known.
var ErrNoSyncBase = errors.New("item differs on both replicas and has no sync base")

type action string

const (
	actionNone       action = "none"
	actionCreated    action = "created"
	actionUploaded   action = "uploaded"
	actionDownloaded action = "downloaded"
	actionMerged     action = "merged"
	actionConflicted action = "conflicted"
)

type itemResult struct {
	action      action
	conflictIDs []string
}

func (r itemResult) apply(report *Report, id string) {
	switch r.action {
	case actionCreated:
		report.Created = append(report.Created, id)
	case actionUploaded:
		report.Uploaded = append(report.Uploaded, id)
	case actionDownloaded:
		report.Downloaded = append(report.Downloaded, id)
	case actionMerged:
		report.Merged = append(report.Merged, id)
	case actionConflicted:
		report.Conflicted = append(report.Conflicted, id)
		report.ConflictIDs = append(report.ConflictIDs, r.conflictIDs...)
	}
}

func isTransient(err error) bool {
	return store.IsTransient(err)
}

// syncItem reconciles one item. It re-reads both sides and the sync base
// on every call. A retry after the remote write landed but the local
// follow-up failed finds the local changes already on the remote and only
// downloads; the one case it cannot recognize is a same-field line merge,
// where the remote holds merged text rather than the local value.
func (s *Syncer) syncItem(ctx context.Context, id string) (itemResult, error) {
	local, localOK, err := s.getItem(ctx, s.local, id)
	if err != nil {
		return itemResult{}, err
	}
	remote, remoteOK, err := s.getItem(ctx, s.remote, id)
	if err != nil {
		return itemResult{}, err
	}

	switch {
	case !localOK && !remoteOK:
		return itemResult{action: actionNone}, nil
	case !remoteOK:
		return s.createOn(ctx, s.remote, local, true)
	case !localOK:
		return s.createOn(ctx, s.local, remote, false)
	}

	base, err := s.local.Store().ReadSyncBase(ctx, id)
	hasBase := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return itemResult{}, err
	}

	localFP, err := ir.ItemFingerprint(local.Fields())
	if err != nil {
		return itemResult{}, err
	}
	remoteFP, err := ir.ItemFingerprint(remote.Fields())
	if err != nil {
		return itemResult{}, err
	}

	if localFP == remoteFP {
		if !hasBase || base.RemoteRevisionID != remote.HeadRevisionID {
			return itemResult{action: actionNone}, s.putBase(ctx, remote)
		}
		return itemResult{action: actionNone}, nil
	}
	if !hasBase {
		return itemResult{}, ErrNoSyncBase
	}

	baseFP, err := ir.ItemFingerprint(base.Fields)
	if err != nil {
		return itemResult{}, err
	}
	localChanged := localFP != baseFP
	remoteChanged := remoteFP != baseFP || remote.HeadRevisionID != base.RemoteRevisionID

	// Changes already handed to the remote wait for an admin there.
	if pending, err := s.openConflicts(ctx, id); err != nil || len(pending) > 0 {
		return itemResult{action: actionConflicted, conflictIDs: pending}, err
	}

	if localChanged && remoteChanged && landed(base.Fields, local.Fields(), remote.Fields()) {
		if err := s.download(ctx, local, remote); err != nil {
			return itemResult{}, err
		}
		return itemResult{action: actionUploaded}, nil
	}

	switch {
	case localChanged && !remoteChanged:
		return s.upload(ctx, local, remote, base, actionUploaded)
	case !localChanged && remoteChanged:
		if err := s.download(ctx, local, remote); err != nil {
			return itemResult{}, err
		}
		return itemResult{action: actionDownloaded}, nil
	case localChanged && remoteChanged:
		return s.upload(ctx, local, remote, base, actionMerged)
	}
	// Neither side moved past the base but they differ; the base is stale.
	return itemResult{action: actionNone}, s.putBase(ctx, remote)
}

func (s *Syncer) getItem(ctx context.Context, e *engine.Engine, id string) (ir.Item, bool, error) {
	item, err := e.GetItem(ctx, id)
	if engine.IsNotFound(err) {
		return ir.Item{}, false, nil
	}
	if err != nil {
		return ir.Item{}, false, err
	}
	return item, true, nil
}

// createOn copies src to the replica that lacks it under the same id.
func (s *Syncer) createOn(ctx context.Context, dst *engine.Engine, src ir.Item, toRemote bool) (itemResult, error) {
	res, err := dst.CreateItem(ctx, engine.CreateItemRequest{
		ItemID:       src.ID,
		ParentItemID: src.ParentItemID,
		AuthorUserID: s.author,
		Values:       src.Fields(),
	})
	if err != nil {
		return itemResult{}, fmt.Errorf("create %s: %w", src.ID, err)
	}

	remoteHead := src.HeadRevisionID
	if toRemote {
		remoteHead = res.RevisionID
	}
	err = s.writeBase(ctx, ir.SyncBase{ItemID: src.ID, RemoteRevisionID: remoteHead, Fields: src.Fields()})
	return itemResult{action: actionCreated}, err
}

// upload records the local changes since the base on the remote, with the
// synced remote head as base revision. If the remote head moved, the
// remote engine runs conflict detection.
func (s *Syncer) upload(ctx context.Context, local, remote ir.Item, base ir.SyncBase, onMerge action) (itemResult, error) {
	changes := diffFields(base.Fields, local.Fields())
	res, err := s.remote.RecordRevision(ctx, engine.RecordRequest{
		ItemID:         local.ID,
		AuthorUserID:   s.author,
		Changes:        changes,
		BaseRevisionID: base.RemoteRevisionID,
	})
	if err != nil {
		return itemResult{}, fmt.Errorf("upload %s: %w", local.ID, err)
	}

	if len(res.ConflictIDs) > 0 {
		// Only the conflicted fields are settled by the admin. Their local
		// values move into the snapshot so they are not uploaded again; the
		// fields that merged cleanly keep the old base so the next pass
		// re-uploads them against the resolution.
		snapshot, err := s.conflictSnapshot(ctx, base.Fields, local.Fields(), res.ConflictIDs)
		if err != nil {
			return itemResult{}, err
		}
		err = s.writeBase(ctx, ir.SyncBase{
			ItemID:           local.ID,
			RemoteRevisionID: remote.HeadRevisionID,
			Fields:           snapshot,
		})
		return itemResult{action: actionConflicted, conflictIDs: res.ConflictIDs}, err
	}

	updated, err := s.remote.GetItem(ctx, local.ID)
	if err != nil {
		return itemResult{}, err
	}
	if err := s.download(ctx, local, updated); err != nil {
		return itemResult{}, err
	}

	act := actionUploaded
	if res.MergeRevisionID != "" {
		act = onMerge
	}
	return itemResult{action: act}, nil
}

// download records the remote values locally as a fast-forward and
// advances the base to the remote head.
func (s *Syncer) download(ctx context.Context, local, remote ir.Item) error {
	changes := diffFields(local.Fields(), remote.Fields())
	if len(changes) > 0 {
		_, err := s.local.RecordRevision(ctx, engine.RecordRequest{
			ItemID:         local.ID,
			AuthorUserID:   s.author,
			Changes:        changes,
			BaseRevisionID: local.HeadRevisionID,
		})
		if err != nil {
			return fmt.Errorf("download %s: %w", local.ID, err)
		}
	}
	return s.putBase(ctx, remote)
}

// conflictSnapshot returns base with each conflicted field replaced by its
// local value.
func (s *Syncer) conflictSnapshot(ctx context.Context, base, local map[string]string, conflictIDs []string) (map[string]string, error) {
	snapshot := make(map[string]string, len(base))
	for name, v := range base {
		snapshot[name] = v
	}
	for _, id := range conflictIDs {
		c, err := s.remote.GetConflictDetail(ctx, id)
		if err != nil {
			return nil, err
		}
		snapshot[c.FieldName] = local[c.FieldName]
	}
	return snapshot, nil
}

func (s *Syncer) openConflicts(ctx context.Context, id string) ([]string, error) {
	conflicts, err := s.remote.ListItemConflicts(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for _, c := range conflicts {
		if c.IsOpen() {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (s *Syncer) putBase(ctx context.Context, remote ir.Item) error {
	return s.writeBase(ctx, ir.SyncBase{
		ItemID:           remote.ID,
		RemoteRevisionID: remote.HeadRevisionID,
		Fields:           remote.Fields(),
	})
}

func (s *Syncer) writeBase(ctx context.Context, base ir.SyncBase) error {
	base.SyncedAt = s.clock.Now()
	return s.local.Store().InTx(ctx, func(tx *store.Tx) error {
		return tx.PutSyncBase(ctx, base)
	})
}

// landed reports whether every field local changed since base already has
// the local value on the remote.
func landed(base, local, remote map[string]string) bool {
	changes := diffFields(base, local)
	if len(changes) == 0 {
		return false
	}
	for name := range changes {
		if remote[name] != local[name] {
			return false
		}
	}
	return true
}

// diffFields returns a change for every item field whose value differs
// between from and to.
func diffFields(from, to map[string]string) map[string]ir.FieldChange {
	changes := make(map[string]ir.FieldChange)
	for _, name := range ir.KnownFields() {
		if from[name] != to[name] {
			changes[name] = ir.Change(from[name], to[name])
		}
	}
	return changes
}
