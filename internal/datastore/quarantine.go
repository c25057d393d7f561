package datastore

import (
	"fmt"
	"time"

	"github.com/starford/recipebox/internal/storage"
)

// Quarantine moves the document file aside so the next open starts from an
// empty document. It is the manual recovery path for a corrupted file and
// must not run while a Store has the file open. It returns the new name, or
// "" when there was no file.
func Quarantine(p storage.Provider, name string, now time.Time) (string, error) {
	ok, err := p.Exists(name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	aside := fmt.Sprintf("%s.corrupt-%s", name, now.UTC().Format("20060102T150405Z"))
	if err := p.Move(name, aside); err != nil {
		return "", fmt.Errorf("datastore: quarantine: %w", err)
	}
	return aside, nil
}
