// This file contains test helpers only available during testing.
package postgres

import (
	"context"
	"fmt"
)

// TruncateForTest removes all rows from the records table.
// It is exported so that the postgres_test package can call it.
func (s *KVStore) TruncateForTest(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "TRUNCATE TABLE records RESTART IDENTITY")
	if err != nil {
		return fmt.Errorf("postgres: failed to truncate records: %w", err)
	}
	return nil
}
