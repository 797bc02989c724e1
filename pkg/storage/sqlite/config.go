package sqlite

// Config holds SQLite database settings.
type Config struct {
	// Path is the database file path. ":memory:" opens an in-memory
	// database that lives for the duration of the process.
	Path string
}

// defaults applies default values for unset configuration fields.
func (c *Config) defaults() {
	if c.Path == "" {
		c.Path = "auskunft.db"
	}
}
