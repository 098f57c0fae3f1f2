package store

import (
	"context"
	"fmt"

	"github.com/roach88/vaultrev/internal/ir"
)

// ItemReport is the result of checking one item's revision log against
// the head-state and version-log invariants.
type ItemReport struct {
	ItemID     string   `json:"item_id"`
	Revisions  int      `json:"revisions"`
	Versions   int      `json:"versions"`
	HeadSeq    int64    `json:"head_seq"`
	Violations []string `json:"violations"`
}

// OK reports whether the item passed every check.
func (r ItemReport) OK() bool {
	return len(r.Violations) == 0
}

func (r *ItemReport) violate(format string, args ...any) {
	r.Violations = append(r.Violations, fmt.Sprintf(format, args...))
}

// VerifyItem checks that:
//  1. VersionSeq values start at 1 and increase by exactly 1
//  2. every revision of the item has exactly one ItemVersions row
//  3. the head names the version row whose seq equals the item's VersionSeq
//  4. merge revisions have two parents, edit revisions at most one
//  5. no parent edge is a self-loop
func (s *Store) VerifyItem(ctx context.Context, itemID string) (ItemReport, error) {
	report := ItemReport{ItemID: itemID, Violations: []string{}}

	item, err := s.ReadItem(ctx, itemID)
	if err != nil {
		return report, fmt.Errorf("verify item: %w", err)
	}
	report.HeadSeq = item.VersionSeq

	revisions, err := s.ListRevisions(ctx, itemID)
	if err != nil {
		return report, fmt.Errorf("verify item: %w", err)
	}
	report.Revisions = len(revisions)

	versions, err := s.ReadItemVersions(ctx, itemID)
	if err != nil {
		return report, fmt.Errorf("verify item: %w", err)
	}
	report.Versions = len(versions)

	parents, err := s.ReadItemParents(ctx, itemID)
	if err != nil {
		return report, fmt.Errorf("verify item: %w", err)
	}

	// Version log is contiguous from 1.
	versionOf := make(map[string]int, len(versions))
	for i, v := range versions {
		if v.VersionSeq != int64(i+1) {
			report.violate("version_seq %d at position %d, expected %d", v.VersionSeq, i+1, i+1)
		}
		versionOf[v.RevisionID]++
	}

	// Each revision appears exactly once in the version log.
	byID := make(map[string]ir.Revision, len(revisions))
	for _, rev := range revisions {
		byID[rev.ID] = rev
		if n := versionOf[rev.ID]; n != 1 {
			report.violate("revision %s has %d version rows, expected 1", rev.ID, n)
		}
	}
	for _, v := range versions {
		if _, ok := byID[v.RevisionID]; !ok {
			report.violate("version %d points at revision %s which does not belong to the item", v.VersionSeq, v.RevisionID)
		}
	}

	// Head agrees with the version log.
	switch {
	case item.VersionSeq == 0 && item.HeadRevisionID != "":
		report.violate("head %s set with version_seq 0", item.HeadRevisionID)
	case item.VersionSeq > 0:
		if item.VersionSeq > int64(len(versions)) {
			report.violate("version_seq %d beyond version log of length %d", item.VersionSeq, len(versions))
		} else if got := versions[item.VersionSeq-1].RevisionID; got != item.HeadRevisionID {
			report.violate("head %s does not match version %d (%s)", item.HeadRevisionID, item.VersionSeq, got)
		}
	}

	// Parent counts and self-loops.
	parentCount := make(map[string]int, len(revisions))
	for _, e := range parents {
		if e.RevisionID == e.ParentRevisionID {
			report.violate("revision %s is its own parent", e.RevisionID)
		}
		parentCount[e.RevisionID]++
	}
	for _, rev := range revisions {
		n := parentCount[rev.ID]
		switch rev.Type {
		case ir.RevisionMerge:
			if n != 2 {
				report.violate("merge revision %s has %d parents, expected 2", rev.ID, n)
			}
		case ir.RevisionEdit:
			if n > 1 {
				report.violate("edit revision %s has %d parents, expected at most 1", rev.ID, n)
			}
		}
	}

	return report, nil
}

// VerifyAll checks every item and returns one report per item, ordered by
// item id.
func (s *Store) VerifyAll(ctx context.Context) ([]ItemReport, error) {
	items, err := s.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify all: %w", err)
	}

	reports := make([]ItemReport, 0, len(items))
	for _, item := range items {
		report, err := s.VerifyItem(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}
