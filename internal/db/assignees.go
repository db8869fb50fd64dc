package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// assigneeTable names a join table linking an owner row to actor ids.
type assigneeTable struct {
	table  string
	column string
}

var (
	itemAssignees  = assigneeTable{table: "item_assignees", column: "item_id"}
	issueAssignees = assigneeTable{table: "issue_assignees", column: "issue_id"}
)

// replaceAssignees swaps the full assignee set for ownerID inside tx.
// Duplicates and blank ids are dropped.
func replaceAssignees(ctx context.Context, tx *sql.Tx, t assigneeTable, ownerID string, actors []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+t.table+` WHERE `+t.column+` = ?`, ownerID); err != nil {
		return fmt.Errorf("failed to clear assignees: %w", err)
	}
	for _, actor := range normalizeActors(actors) {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO `+t.table+` (`+t.column+`, actor_id) VALUES (?, ?)`,
			ownerID, actor)
		if err != nil {
			return fmt.Errorf("failed to add assignee %s: %w", actor, err)
		}
	}
	return nil
}

// listAssignees returns the assignees of each id, sorted.
func (db *DB) listAssignees(ctx context.Context, t assigneeTable, ids []string) (map[string][]string, error) {
	result := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+t.column+`, actor_id FROM `+t.table+`
		WHERE `+t.column+` IN (`+placeholders+`)
		ORDER BY actor_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignees: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var ownerID, actor string
		if err := rows.Scan(&ownerID, &actor); err != nil {
			return nil, fmt.Errorf("failed to scan assignee: %w", err)
		}
		result[ownerID] = append(result[ownerID], actor)
	}
	return result, rows.Err()
}

func normalizeActors(actors []string) []string {
	seen := make(map[string]bool, len(actors))
	var out []string
	for _, a := range actors {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
