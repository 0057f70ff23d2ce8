// Package catalog keeps a registry of named datasets in a database, so
// callers can address a table as @name instead of a filesystem path.
// supported database types: sqlite, postgres, mysql
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	_ "github.com/go-sql-driver/mysql" // mysql driver loaded here
	_ "github.com/lib/pq"              // postgres driver loaded here
	_ "modernc.org/sqlite"             // sqlite driver loaded here
)

// ErrUnknownName is returned by Resolve for names that were never registered.
var ErrUnknownName = errors.New("dataset name not registered")

// Store is a dataset registry over database/sql.
type Store struct {
	db     *sql.DB
	dbType string
}

// Entry is one registered dataset.
type Entry struct {
	Name string
	Path string
}

// NewStore opens (and if needed bootstraps) the registry database. The
// database type is sniffed from the connection string.
func NewStore(conn string) (*Store, error) {
	dbType := func(c string) (string, error) {
		if strings.HasPrefix(c, "postgres://") {
			return "postgres", nil
		}
		if strings.Contains(c, "@tcp(") {
			return "mysql", nil
		}
		if strings.HasPrefix(c, "file:") || strings.HasSuffix(c, ".sqlite") || strings.HasSuffix(c, ".db") {
			return "sqlite", nil
		}
		return "", fmt.Errorf("unsupported database type in connection string")
	}

	dbt, err := dbType(conn)
	if err != nil {
		return nil, fmt.Errorf("can't determine catalog database type: %w", err)
	}

	db, err := sql.Open(dbt, conn)
	if err != nil {
		return nil, fmt.Errorf("error opening catalog database: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS pglance_datasets (name VARCHAR(255) PRIMARY KEY, path TEXT)`)
	if err != nil {
		return nil, fmt.Errorf("error creating catalog table: %w", err)
	}
	log.Printf("[INFO] dataset catalog: using %s database, type: %s", conn, dbt)
	return &Store{db: db, dbType: dbt}, nil
}

// Register stores or replaces the path for a name.
func (s *Store) Register(name, path string) error {
	var stmt string
	switch s.dbType {
	case "sqlite":
		stmt = "INSERT OR REPLACE INTO pglance_datasets (name, path) VALUES ($1, $2)"
	case "postgres":
		stmt = "INSERT INTO pglance_datasets (name, path) VALUES ($1, $2) ON CONFLICT (name) DO UPDATE SET path = $2"
	case "mysql":
		stmt = "REPLACE INTO pglance_datasets (name, path) VALUES (?, ?)"
	default:
		return fmt.Errorf("unsupported database type: %s", s.dbType)
	}
	if _, err := s.db.Exec(stmt, name, path); err != nil {
		return fmt.Errorf("error registering dataset %s: %w", name, err)
	}
	log.Printf("[INFO] registered dataset %q -> %s", name, path)
	return nil
}

// Resolve returns the path registered under name.
func (s *Store) Resolve(name string) (string, error) {
	query := "SELECT path FROM pglance_datasets WHERE name = ?"
	if s.dbType == "postgres" {
		query = "SELECT path FROM pglance_datasets WHERE name = $1"
	}
	var path string
	if err := s.db.QueryRow(query, name).Scan(&path); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrUnknownName, name)
		}
		return "", fmt.Errorf("error resolving dataset %s: %w", name, err)
	}
	return path, nil
}

// List returns all registered datasets ordered by name.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query("SELECT name, path FROM pglance_datasets ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("error listing datasets: %w", err)
	}
	defer rows.Close() // nolint

	var res []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.Path); err != nil {
			return nil, fmt.Errorf("error scanning catalog row: %w", err)
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// Remove deletes a name from the registry. Removing an unknown name is not
// an error.
func (s *Store) Remove(name string) error {
	query := "DELETE FROM pglance_datasets WHERE name = ?"
	if s.dbType == "postgres" {
		query = "DELETE FROM pglance_datasets WHERE name = $1"
	}
	if _, err := s.db.Exec(query, name); err != nil {
		return fmt.Errorf("error removing dataset %s: %w", name, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
