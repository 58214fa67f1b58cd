package database

// DatabaseService stores rendered image previews keyed by PreviewKey.
type DatabaseService interface {
	CreateDatabase() error
	DoesDatabaseExist() bool
	Close() error

	// GetPreview returns nil without error when no preview is stored under key.
	GetPreview(key string) ([]byte, error)
	SetPreview(key string, preview []byte) error
	DeletePreview(key string) error
	CountPreviews() (int, error)
}
