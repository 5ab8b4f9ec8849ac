package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/nikbrunner/bmtree/internal/model"
)

const currentSchemaVersion = 1

// SQLite implements Store using a SQLite database.
type SQLite struct {
	db     *sql.DB
	path   string
	log    logrus.FieldLogger
	events broadcaster
}

// SQLiteOption configures a SQLite store.
type SQLiteOption func(*SQLite)

// WithSQLiteLogger sets the logger for schema and write diagnostics.
func WithSQLiteLogger(log logrus.FieldLogger) SQLiteOption {
	return func(s *SQLite) { s.log = log }
}

// NewSQLite opens (and migrates) the database at path.
func NewSQLite(path string, opts ...SQLiteOption) (*SQLite, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys and set pragmas for performance
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, path: path, log: discardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Subscribe implements Store.
func (s *SQLite) Subscribe() (<-chan model.ChangeEvent, func()) {
	return s.events.Subscribe()
}

// migrate runs database migrations.
func (s *SQLite) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// Table doesn't exist or is empty, start fresh
		version = 0
	}

	if version < 1 {
		s.log.WithField("path", s.path).Debug("creating bookmark schema")
		if err := s.migrateV1(); err != nil {
			return fmt.Errorf("migrate v1: %w", err)
		}
	}

	return nil
}

// migrateV1 creates the node table and the fixed roots.
func (s *SQLite) migrateV1() error {
	schema := `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY NOT NULL,
			parent_id TEXT,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0,
			date_added TEXT NOT NULL,
			FOREIGN KEY (parent_id) REFERENCES nodes(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_nodes_parent_position ON nodes(parent_id, position);
		CREATE INDEX IF NOT EXISTS idx_nodes_url ON nodes(url);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for i, root := range DefaultRoots() {
		if _, err := s.db.Exec(`
			INSERT OR IGNORE INTO nodes (id, parent_id, kind, title, url, position, date_added)
			VALUES (?, NULL, ?, ?, '', ?, ?)
		`, root.ID, root.Kind.String(), root.Title, i, now); err != nil {
			return err
		}
	}

	_, err := s.db.Exec("INSERT OR REPLACE INTO schema_version (version) VALUES (?)", currentSchemaVersion)
	return err
}

type nodeRow struct {
	node     model.Node
	parentID sql.NullString
}

func scanNode(rows *sql.Rows) (nodeRow, error) {
	var r nodeRow
	var kind, dateAdded string
	if err := rows.Scan(&r.node.ID, &r.parentID, &kind, &r.node.Title, &r.node.URL, &dateAdded); err != nil {
		return nodeRow{}, err
	}
	r.node.Kind = model.ParseNodeKind(kind)
	r.node.DateAdded, _ = time.Parse(time.RFC3339, dateAdded)
	if r.parentID.Valid {
		r.node.ParentID = &r.parentID.String
	}
	return r, nil
}

// ListRoots implements Store.
func (s *SQLite) ListRoots(ctx context.Context) ([]model.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_id, kind, title, url, date_added
		FROM nodes
		ORDER BY position, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := make(map[string]model.Node)
	children := make(map[string][]string)
	var roots []string

	for rows.Next() {
		r, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes[r.node.ID] = r.node
		if r.parentID.Valid {
			children[r.parentID.String] = append(children[r.parentID.String], r.node.ID)
		} else {
			roots = append(roots, r.node.ID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	visited := make(map[string]bool)
	var build func(id string) (model.Node, error)
	build = func(id string) (model.Node, error) {
		if visited[id] {
			return model.Node{}, fmt.Errorf("node %q reachable twice: %w", id, ErrCycle)
		}
		visited[id] = true

		n := nodes[id]
		if n.IsFolder() {
			n.Children = make([]model.Node, 0, len(children[id]))
			for _, childID := range children[id] {
				child, err := build(childID)
				if err != nil {
					return model.Node{}, err
				}
				n.Children = append(n.Children, child)
			}
		}
		return n, nil
	}

	result := make([]model.Node, 0, len(roots))
	for _, id := range roots {
		n, err := build(id)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, nil
}

// GetChildren implements Store. Folder children are returned shallow.
func (s *SQLite) GetChildren(ctx context.Context, folderID string) ([]model.Node, error) {
	if err := s.checkFolder(ctx, s.db, folderID); err != nil {
		return nil, fmt.Errorf("get children of %q: %w", folderID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_id, kind, title, url, date_added
		FROM nodes
		WHERE parent_id = ?
		ORDER BY position, id
	`, folderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	children := []model.Node{}
	for rows.Next() {
		r, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		children = append(children, r.node)
	}
	return children, rows.Err()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLite) checkFolder(ctx context.Context, q querier, id string) error {
	var kind string
	err := q.QueryRowContext(ctx, "SELECT kind FROM nodes WHERE id = ?", id).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if model.ParseNodeKind(kind) != model.KindFolder {
		return ErrNotFolder
	}
	return nil
}

// MoveNode implements Store. The node is appended to the new parent's
// children and the old parent's positions are compacted.
func (s *SQLite) MoveNode(ctx context.Context, nodeID, newParentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var oldParent sql.NullString
	var oldPosition int
	err = tx.QueryRowContext(ctx, "SELECT parent_id, position FROM nodes WHERE id = ?", nodeID).
		Scan(&oldParent, &oldPosition)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("move %q: %w", nodeID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if !oldParent.Valid {
		return fmt.Errorf("move %q: %w", nodeID, ErrRootMove)
	}

	if err := s.checkFolder(ctx, tx, newParentID); err != nil {
		return fmt.Errorf("move %q to %q: %w", nodeID, newParentID, err)
	}

	var cycle int
	err = tx.QueryRowContext(ctx, `
		WITH RECURSIVE ancestors(id) AS (
			SELECT ?
			UNION ALL
			SELECT n.parent_id FROM nodes n JOIN ancestors a ON n.id = a.id
			WHERE n.parent_id IS NOT NULL
		)
		SELECT COUNT(*) FROM ancestors WHERE id = ?
	`, newParentID, nodeID).Scan(&cycle)
	if err != nil {
		return err
	}
	if cycle > 0 {
		return fmt.Errorf("move %q to %q: %w", nodeID, newParentID, ErrCycle)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE nodes SET position = position - 1
		WHERE parent_id = ? AND position > ? AND id != ?
	`, oldParent.String, oldPosition, nodeID); err != nil {
		return err
	}

	var position int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), -1) + 1 FROM nodes WHERE parent_id = ? AND id != ?
	`, newParentID, nodeID).Scan(&position); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE nodes SET parent_id = ?, position = ? WHERE id = ?
	`, newParentID, position, nodeID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"node": nodeID, "from": oldParent.String, "to": newParentID}).Debug("moved node")
	s.events.publish(model.ChangeEvent{
		Kind:        model.EventMoved,
		NodeID:      nodeID,
		ParentID:    newParentID,
		OldParentID: oldParent.String,
	})
	return nil
}

// Create implements Writer. The node and all children it carries are
// inserted in one transaction, appended to parentID.
func (s *SQLite) Create(ctx context.Context, parentID string, node model.Node) (model.Node, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Node{}, err
	}
	defer tx.Rollback()

	if err := s.checkFolder(ctx, tx, parentID); err != nil {
		return model.Node{}, fmt.Errorf("create under %q: %w", parentID, err)
	}

	var position int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), -1) + 1 FROM nodes WHERE parent_id = ?
	`, parentID).Scan(&position); err != nil {
		return model.Node{}, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (id, parent_id, kind, title, url, position, date_added)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return model.Node{}, err
	}
	defer stmt.Close()

	created, err := insertTree(ctx, stmt, parentID, position, node)
	if err != nil {
		return model.Node{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.Node{}, err
	}

	s.events.publish(model.ChangeEvent{Kind: model.EventCreated, NodeID: created.ID, ParentID: parentID})
	return created, nil
}

// insertTree inserts node under parentID at position, then its children.
func insertTree(ctx context.Context, stmt *sql.Stmt, parentID string, position int, node model.Node) (model.Node, error) {
	if node.ID == "" {
		node.ID = model.GenerateID()
	}
	if node.DateAdded.IsZero() {
		node.DateAdded = time.Now()
	}
	node.ParentID = model.StringPtr(parentID)

	url := node.URL
	if node.IsFolder() {
		url = ""
	}
	if _, err := stmt.ExecContext(ctx,
		node.ID, parentID, node.Kind.String(), node.Title, url, position,
		node.DateAdded.UTC().Format(time.RFC3339),
	); err != nil {
		return model.Node{}, fmt.Errorf("insert %q: %w", node.ID, err)
	}

	node.Children = slices.Clone(node.Children)
	for i := range node.Children {
		child, err := insertTree(ctx, stmt, node.ID, i, node.Children[i])
		if err != nil {
			return model.Node{}, err
		}
		node.Children[i] = child
	}
	return node, nil
}

// Remove implements Writer. Folder contents are removed by cascade.
func (s *SQLite) Remove(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var parent sql.NullString
	var position int
	err = tx.QueryRowContext(ctx, "SELECT parent_id, position FROM nodes WHERE id = ?", id).Scan(&parent, &position)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("remove %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if !parent.Valid {
		return fmt.Errorf("remove %q: %w", id, ErrRootMove)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM nodes WHERE id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE nodes SET position = position - 1 WHERE parent_id = ? AND position > ?
	`, parent.String, position); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.events.publish(model.ChangeEvent{Kind: model.EventRemoved, NodeID: id, ParentID: parent.String})
	return nil
}
