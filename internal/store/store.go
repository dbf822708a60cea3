package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"newscurator/internal/core"
)

// Store is the SQLite-backed per-URL artifact cache: raw fetched HTML and
// extraction artifacts, both keyed by URL hash. Repeat runs hit this cache
// and skip network and parsing work entirely. Durable week outputs are flat
// JSON files; this store is cache only.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the artifact cache under cacheDir.
func NewStore(cacheDir string) (*Store, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dbPath := filepath.Join(cacheDir, "newscurator.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	pagesTable := `
	CREATE TABLE IF NOT EXISTS pages (
		url_hash TEXT PRIMARY KEY,
		url TEXT,
		html TEXT,
		fetched_at DATETIME
	);`

	extractionsTable := `
	CREATE TABLE IF NOT EXISTS extractions (
		url_hash TEXT PRIMARY KEY,
		url TEXT,
		title TEXT,
		snippet TEXT,
		domain TEXT,
		published_date TEXT,
		extracted_text TEXT,
		word_count INTEGER,
		author TEXT,
		topic TEXT,
		extracted_at DATETIME
	);`

	for _, table := range []string{pagesTable, extractionsTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// CachePage stores raw fetched HTML under its URL hash.
func (s *Store) CachePage(urlHash, url, html string) error {
	_, err := sq.Insert("pages").
		Columns("url_hash", "url", "html", "fetched_at").
		Values(urlHash, url, html, time.Now().UTC()).
		Suffix("ON CONFLICT(url_hash) DO UPDATE SET html = excluded.html, fetched_at = excluded.fetched_at").
		RunWith(s.db).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to cache page %s: %w", urlHash, err)
	}
	return nil
}

// GetCachedPage returns the cached HTML for a URL hash, or "" on a miss.
func (s *Store) GetCachedPage(urlHash string) (string, error) {
	var html string
	err := sq.Select("html").
		From("pages").
		Where(sq.Eq{"url_hash": urlHash}).
		RunWith(s.db).
		QueryRow().
		Scan(&html)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query page %s: %w", urlHash, err)
	}
	return html, nil
}

// CacheExtraction stores an extraction artifact under its URL hash.
func (s *Store) CacheExtraction(article core.ExtractedArticle) error {
	_, err := sq.Insert("extractions").
		Columns("url_hash", "url", "title", "snippet", "domain", "published_date",
			"extracted_text", "word_count", "author", "topic", "extracted_at").
		Values(article.Hash, article.URL, article.Title, article.Snippet, article.Domain,
			article.PublishedDate, article.ExtractedText, article.WordCount,
			article.Author, string(article.Topic), time.Now().UTC()).
		Suffix("ON CONFLICT(url_hash) DO UPDATE SET snippet = excluded.snippet WHERE snippet = ''").
		RunWith(s.db).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to cache extraction %s: %w", article.Hash, err)
	}
	return nil
}

// GetCachedExtraction returns the cached extraction artifact for a URL hash,
// or nil on a miss.
func (s *Store) GetCachedExtraction(urlHash string) (*core.ExtractedArticle, error) {
	var article core.ExtractedArticle
	var topic string

	err := sq.Select("url", "title", "snippet", "domain", "published_date",
		"extracted_text", "word_count", "author", "topic").
		From("extractions").
		Where(sq.Eq{"url_hash": urlHash}).
		RunWith(s.db).
		QueryRow().
		Scan(&article.URL, &article.Title, &article.Snippet, &article.Domain,
			&article.PublishedDate, &article.ExtractedText, &article.WordCount,
			&article.Author, &topic)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query extraction %s: %w", urlHash, err)
	}

	article.Hash = urlHash
	article.Topic = core.Topic(topic)
	return &article, nil
}

// CacheStats represents cache statistics
type CacheStats struct {
	PageCount       int
	ExtractionCount int
	CacheSize       int64
	LastUpdated     time.Time
}

// GetCacheStats returns statistics about the cache
func (s *Store) GetCacheStats() (*CacheStats, error) {
	stats := &CacheStats{}

	counts := map[string]*int{
		"pages":       &stats.PageCount,
		"extractions": &stats.ExtractionCount,
	}
	for table, target := range counts {
		err := sq.Select("COUNT(*)").From(table).RunWith(s.db).QueryRow().Scan(target)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
	}

	if fileInfo, err := os.Stat(s.path); err == nil {
		stats.CacheSize = fileInfo.Size()
		stats.LastUpdated = fileInfo.ModTime()
	}
	return stats, nil
}

// ClearCache removes all cached data
func (s *Store) ClearCache() error {
	for _, table := range []string{"pages", "extractions"} {
		if _, err := sq.Delete(table).RunWith(s.db).Exec(); err != nil {
			return fmt.Errorf("failed to clear %s table: %w", table, err)
		}
	}

	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}
