package storage

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) String() string {
	if d == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		api_identifier TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS authors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		name_key TEXT NOT NULL UNIQUE,
		email TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT,
		content TEXT,
		url TEXT NOT NULL UNIQUE,
		image_url TEXT,
		source_id INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
		category_id INTEGER REFERENCES categories(id) ON DELETE SET NULL,
		author_id INTEGER REFERENCES authors(id) ON DELETE SET NULL,
		published_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS articles_published_at_idx ON articles (published_at)`,
	`CREATE INDEX IF NOT EXISTS articles_source_id_idx ON articles (source_id)`,
	`CREATE TABLE IF NOT EXISTS user_preferences (
		user_id INTEGER PRIMARY KEY,
		preferred_sources TEXT NOT NULL DEFAULT '[]',
		preferred_categories TEXT NOT NULL DEFAULT '[]',
		preferred_authors TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS sources (
		id BIGSERIAL PRIMARY KEY,
		api_identifier TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS authors (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		name_key TEXT NOT NULL UNIQUE,
		email TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS articles (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		content TEXT,
		url TEXT NOT NULL UNIQUE,
		image_url TEXT,
		source_id BIGINT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
		category_id BIGINT REFERENCES categories(id) ON DELETE SET NULL,
		author_id BIGINT REFERENCES authors(id) ON DELETE SET NULL,
		published_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		search_vector tsvector GENERATED ALWAYS AS (
			to_tsvector('english',
				coalesce(title, '') || ' ' || coalesce(description, '') || ' ' || coalesce(content, ''))
		) STORED
	)`,
	`CREATE INDEX IF NOT EXISTS articles_published_at_idx ON articles (published_at)`,
	`CREATE INDEX IF NOT EXISTS articles_source_id_idx ON articles (source_id)`,
	`CREATE INDEX IF NOT EXISTS articles_search_vector_idx ON articles USING GIN (search_vector)`,
	`CREATE TABLE IF NOT EXISTS user_preferences (
		user_id BIGINT PRIMARY KEY,
		preferred_sources TEXT NOT NULL DEFAULT '[]',
		preferred_categories TEXT NOT NULL DEFAULT '[]',
		preferred_authors TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

func (d dialect) schema() []string {
	if d == dialectPostgres {
		return postgresSchema
	}
	return sqliteSchema
}
