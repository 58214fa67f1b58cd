package imagesource

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	ErrImageNotFound    = errors.New("image not found")
	ErrInvalidImageName = errors.New("invalid image name")
)

// Image describes one file of the image folder.
type Image struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Source enumerates and reads the images under review.
type Source interface {
	List() ([]Image, error)
	Read(name string) ([]byte, Image, error)
}

// Folder is a Source backed by a flat directory. Every List call rescans it.
type Folder struct {
	root string
}

func NewFolder(root string) *Folder {
	return &Folder{root: root}
}

func (f *Folder) Root() string {
	return f.root
}

// List returns the regular, non-hidden files whose name contains a dot,
// sorted by name. A missing folder yields an empty list.
func (f *Folder) List() ([]Image, error) {
	entries, err := os.ReadDir(f.root)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("image folder does not exist", "path", f.root)
		return []Image{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read image folder %s: %w", f.root, err)
	}

	images := make([]Image, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !isCandidateName(name) {
			continue
		}
		// Stat follows symlinks, so linked images are listed too
		info, err := os.Stat(filepath.Join(f.root, name))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		images = append(images, Image{Name: name, Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })
	return images, nil
}

// Read returns the content of one image.
func (f *Folder) Read(name string) ([]byte, Image, error) {
	if err := validateName(name); err != nil {
		return nil, Image{}, err
	}
	path := filepath.Join(f.root, name)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
		return nil, Image{}, fmt.Errorf("%w: %s", ErrImageNotFound, name)
	}
	if err != nil {
		return nil, Image{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Image{}, fmt.Errorf("read image %s: %w", name, err)
	}
	return data, Image{Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func isCandidateName(name string) bool {
	return !strings.HasPrefix(name, ".") && strings.Contains(name, ".")
}

func validateName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidImageName, name)
	}
	return nil
}

// Names extracts the image names in listing order.
func Names(images []Image) []string {
	names := make([]string, len(images))
	for i, img := range images {
		names[i] = img.Name
	}
	return names
}
