package archive

import "context"

// SetSchemaVersionForTest overwrites the stored schema version.
func SetSchemaVersionForTest(s *Store, version int) error {
	_, err := s.db.ExecContext(context.Background(), "UPDATE schema_version SET version = ?", version)
	return err
}
