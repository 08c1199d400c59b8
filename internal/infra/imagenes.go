package infra

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrImagenInvalida is returned for anything that is not a base64 data URI of
// a jpeg, png or webp image.
var ErrImagenInvalida = errors.New("imagen no valida")

var dataURIRe = regexp.MustCompile(`^data:image/(jpeg|png|webp);base64,`)

// DecodeDataURI returns the file extension and the decoded bytes of a data URI.
func DecodeDataURI(s string) (string, []byte, error) {
	m := dataURIRe.FindStringSubmatch(s)
	if m == nil {
		return "", nil, ErrImagenInvalida
	}
	data, err := base64.StdEncoding.DecodeString(s[len(m[0]):])
	if err != nil || len(data) == 0 {
		return "", nil, fmt.Errorf("%w: base64", ErrImagenInvalida)
	}
	ext := m[1]
	if ext == "jpeg" {
		ext = "jpg"
	}
	return ext, data, nil
}

// ImageStore keeps product images as files under one directory, which the
// router also serves at /images/products.
type ImageStore struct {
	dir         string
	placeholder string
}

func NewImageStore(dir, placeholder string) *ImageStore {
	return &ImageStore{dir: dir, placeholder: placeholder}
}

func (s *ImageStore) Dir() string { return s.dir }

// Placeholder is the shared image name given to imported products.
func (s *ImageStore) Placeholder() string { return s.placeholder }

// Save decodes every data URI before writing anything, then stores each image
// under a fresh uuid name. On a write error the files already written are
// removed.
func (s *ImageStore) Save(dataURIs []string) ([]string, error) {
	type decoded struct {
		ext  string
		data []byte
	}
	imgs := make([]decoded, 0, len(dataURIs))
	for i, uri := range dataURIs {
		ext, data, err := DecodeDataURI(uri)
		if err != nil {
			return nil, fmt.Errorf("imagen %d: %w", i+1, err)
		}
		imgs = append(imgs, decoded{ext, data})
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("imagenes: create dir: %w", err)
	}

	names := make([]string, 0, len(imgs))
	for _, img := range imgs {
		name := uuid.NewString() + "." + img.ext
		if err := os.WriteFile(filepath.Join(s.dir, name), img.data, 0644); err != nil {
			s.Delete(names)
			return nil, fmt.Errorf("imagenes: write %s: %w", name, err)
		}
		names = append(names, name)
	}
	return names, nil
}

// Delete removes the named files. Missing files and the shared placeholder are
// skipped.
func (s *ImageStore) Delete(names []string) {
	for _, name := range names {
		if name == "" || name == s.placeholder {
			continue
		}
		err := os.Remove(filepath.Join(s.dir, filepath.Base(name)))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("imagen", name).Msg("no se pudo borrar la imagen")
		}
	}
}
