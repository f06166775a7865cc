package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/verte-zerg/woodshed/internal/analysis"
)

// orphanPrefix marks persisted rows whose bar range no longer maps onto
// any chunk of the current segmentation.
const orphanPrefix = "orphan:"

// persistedRange is an old chunk row's bar range.
type persistedRange struct {
	chunkID  string
	firstBar int
	lastBar  int
}

// Reconcile remaps persisted chunk ids onto a fresh segmentation. Chunk
// ids are positional and shift when the underlying score changes, so
// each old row is matched to the new chunk with the largest bar-range
// overlap and rewritten to its id. Old rows with no overlapping new
// chunk are left in place rather than deleted; their history stays
// recoverable.
func (s *Store) Reconcile(ctx context.Context, songKey string, chunks []analysis.Chunk) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, first_bar, last_bar FROM chunks WHERE song = ?`, songKey)
	if err != nil {
		return err
	}
	var old []persistedRange
	for rows.Next() {
		var pr persistedRange
		if err := rows.Scan(&pr.chunkID, &pr.firstBar, &pr.lastBar); err != nil {
			if cerr := rows.Close(); cerr != nil {
				// Best-effort rows close.
				_ = cerr
			}
			return err
		}
		old = append(old, pr)
	}
	if cerr := rows.Close(); cerr != nil {
		// Best-effort rows close.
		_ = cerr
	}
	if err := rows.Err(); err != nil {
		return err
	}

	remap := map[string]analysis.Chunk{}
	var orphans []string
	taken := map[string]struct{}{}
	for _, pr := range old {
		best, bestOverlap := analysis.Chunk{}, 0
		for _, c := range chunks {
			if _, ok := taken[c.ID]; ok {
				continue
			}
			if ov := overlap(pr.firstBar, pr.lastBar, c.FirstBar, c.LastBar); ov > bestOverlap {
				best, bestOverlap = c, ov
			}
		}
		if bestOverlap == 0 {
			if !strings.HasPrefix(pr.chunkID, orphanPrefix) {
				orphans = append(orphans, pr.chunkID)
			}
			continue
		}
		taken[best.ID] = struct{}{}
		if pr.chunkID == best.ID && pr.firstBar == best.FirstBar && pr.lastBar == best.LastBar {
			continue
		}
		remap[pr.chunkID] = best
	}
	if len(remap) == 0 && len(orphans) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	// Two passes through temporary ids so remappings that swap positions
	// cannot collide on the primary key.
	// Orphans (no overlapping new chunk) move out of the positional id
	// space so a remapped row can never collide with them.
	for _, id := range orphans {
		if err = renameChunk(ctx, tx, songKey, id, orphanPrefix+id); err != nil {
			return err
		}
	}

	tmpIDs := map[string]analysis.Chunk{}
	for oldID, c := range remap {
		tmp := "reconcile:" + oldID
		if err = renameChunk(ctx, tx, songKey, oldID, tmp); err != nil {
			return err
		}
		tmpIDs[tmp] = c
	}
	for tmpID, c := range tmpIDs {
		if err = renameChunk(ctx, tx, songKey, tmpID, c.ID); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`UPDATE chunks SET first_bar = ?, last_bar = ?, label = ? WHERE song = ? AND chunk_id = ?`,
			c.FirstBar, c.LastBar, c.Label, songKey, c.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func renameChunk(ctx context.Context, tx *sql.Tx, songKey, from, to string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE chunks SET chunk_id = ? WHERE song = ? AND chunk_id = ?`, to, songKey, from); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE chunk_history SET chunk_id = ? WHERE song = ? AND chunk_id = ?`, to, songKey, from)
	return err
}

func overlap(aFirst, aLast, bFirst, bLast int) int {
	lo, hi := aFirst, aLast
	if bFirst > lo {
		lo = bFirst
	}
	if bLast < hi {
		hi = bLast
	}
	if hi < lo {
		return 0
	}
	return hi - lo + 1
}
