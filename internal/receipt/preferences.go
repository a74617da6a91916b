package receipt

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	preferencesBucket = "preferences"
	themeKey          = "theme"
)

// Theme is the display theme preference
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme validates a theme name
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case ThemeLight, ThemeDark:
		return Theme(s), nil
	default:
		return "", fmt.Errorf("unknown theme %q (want light or dark)", s)
	}
}

// Preferences defines the durable client-side settings
type Preferences interface {
	// Theme returns the stored theme, ThemeLight when none was saved
	Theme() (Theme, error)

	// SetTheme stores the theme
	SetTheme(theme Theme) error

	// Close releases the underlying store
	Close() error
}

// BoltPreferences implements Preferences using BoltDB
type BoltPreferences struct {
	db *bbolt.DB
}

// NewBoltPreferences opens (or creates) the preferences file at path
func NewBoltPreferences(path string) (*BoltPreferences, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(preferencesBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltPreferences{db: db}, nil
}

// Theme returns the stored theme
func (b *BoltPreferences) Theme() (Theme, error) {
	theme := ThemeLight
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(preferencesBucket)).Get([]byte(themeKey))
		if data == nil {
			return nil
		}
		parsed, err := ParseTheme(string(data))
		if err != nil {
			return err
		}
		theme = parsed
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reading theme: %w", err)
	}
	return theme, nil
}

// SetTheme stores the theme
func (b *BoltPreferences) SetTheme(theme Theme) error {
	if _, err := ParseTheme(string(theme)); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(preferencesBucket)).Put([]byte(themeKey), []byte(theme))
	})
}

// Close closes the database connection
func (b *BoltPreferences) Close() error {
	return b.db.Close()
}
