package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ListKeywords returns the keywords in the order they were added.
func (d *Database) ListKeywords(ctx context.Context) ([]string, error) {
	query := "select keyword from keywords order by id"

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "ListKeywords")
		}
	}()

	var keywords []string
	for rows.Next() {
		var k string
		if err = rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		keywords = append(keywords, k)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return keywords, nil
}

// AddKeywords stores new keywords and returns the ones that were not
// already present.
func (d *Database) AddKeywords(ctx context.Context, keywords []string) ([]string, error) {
	query := "insert or ignore into keywords (keyword) values (?)"

	var added []string
	var errs []error

	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}

		res, err := d.db.ExecContext(ctx, query, k)
		if err != nil {
			errs = append(errs, fmt.Errorf("add keyword %q: %w", k, err))
			continue
		}

		if n, _ := res.RowsAffected(); n > 0 {
			added = append(added, k)
		}
	}

	return added, errors.Join(errs...)
}

// RemoveKeywords deletes keywords and returns the ones that existed.
func (d *Database) RemoveKeywords(ctx context.Context, keywords []string) ([]string, error) {
	query := "delete from keywords where keyword = ?"

	var removed []string
	var errs []error

	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}

		res, err := d.db.ExecContext(ctx, query, k)
		if err != nil {
			errs = append(errs, fmt.Errorf("remove keyword %q: %w", k, err))
			continue
		}

		if n, _ := res.RowsAffected(); n > 0 {
			removed = append(removed, k)
		}
	}

	return removed, errors.Join(errs...)
}
