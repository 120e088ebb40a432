// Package archive keeps a local SQLite history of completed practice
// sessions so results stay available when the scoring service is offline.
//
// Each completed session stores its aggregate scores plus every attempt that
// was recorded, including locally synthesized fallback attempts. The schema
// is versioned; a mismatch is reported rather than migrated.
package archive
