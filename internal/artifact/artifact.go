package artifact

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// ErrForeignURL is returned when a url does not point into the store.
	ErrForeignURL = errors.New("artifact url does not belong to this store")
)

// Object is an uploaded file on its way to the blob store.
type Object struct {
	OwnerID     string
	Modality    string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Store interface {
	// Put stores the object and returns the url clients use to reach it.
	Put(ctx context.Context, obj Object) (string, error)
	// Delete removes the object behind url. Deleting a missing object is not an error.
	Delete(ctx context.Context, url string) error
	Type() string
}

// objectKey lays objects out as <owner>/<modality>/<uuid>-<filename>.
func objectKey(obj Object) string {
	return path.Join(obj.OwnerID, obj.Modality, fmt.Sprintf("%s-%s", uuid.NewString(), sanitize(obj.FileName)))
}

func sanitize(fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

func keyFromURL(baseURL, url string) (string, error) {
	key, found := strings.CutPrefix(url, strings.TrimSuffix(baseURL, "/")+"/")
	if !found || key == "" || strings.Contains(key, "..") {
		return "", errors.Wrapf(ErrForeignURL, "url %q", url)
	}
	return key, nil
}
