// Package dataset builds labelled evaluation datasets from directory trees of
// face images (one sub-directory per person) and embeds them into a corpus.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ImageExtensions lists the accepted image file extensions (lowercase).
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

var ErrSourceNotFound = errors.New("source directory not found")

// Person is one identity folder. Images from several source trees with the
// same folder name are merged into one Person.
type Person struct {
	Name   string
	Images []string // paths under their source directory, sorted
}

// IsImage reports whether path has an accepted image extension (case-insensitive).
func IsImage(path string) bool {
	return slices.Contains(ImageExtensions, strings.ToLower(filepath.Ext(path)))
}

// ListPersons returns every person folder found directly under the source
// directories, sorted by name.
func ListPersons(sources []string) ([]Person, error) {
	byName := make(map[string]*Person)

	for _, src := range sources {
		info, err := os.Stat(src)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, src)
		}

		entries, err := os.ReadDir(src)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", src, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			images, err := listImages(filepath.Join(src, entry.Name()))
			if err != nil {
				return nil, err
			}
			p, ok := byName[entry.Name()]
			if !ok {
				p = &Person{Name: entry.Name()}
				byName[entry.Name()] = p
			}
			p.Images = append(p.Images, images...)
		}
	}

	persons := make([]Person, 0, len(byName))
	for _, p := range byName {
		slices.Sort(p.Images)
		persons = append(persons, *p)
	}
	slices.SortFunc(persons, func(a, b Person) int { return strings.Compare(a.Name, b.Name) })
	return persons, nil
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var images []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && IsImage(entry.Name()) {
			images = append(images, filepath.Join(dir, entry.Name()))
		}
	}
	return images, nil
}

type CreateOptions struct {
	Sources         []string
	Output          string
	NumPersons      int
	ImagesPerPerson int
	Seed            int64
}

type CreateResult struct {
	Available int // person folders found in the sources
	Eligible  int // persons with at least ImagesPerPerson images
	Persons   int // persons copied
	Images    int // images copied
	// Short is set when fewer eligible persons existed than requested and all were used.
	Short bool
}

// Create samples persons and images from the sources and copies them to
// Output/<person>/. An existing Output directory is removed first.
func Create(opts CreateOptions) (*CreateResult, error) {
	if opts.NumPersons <= 0 || opts.ImagesPerPerson <= 0 {
		return nil, fmt.Errorf("persons and images per person must be positive")
	}
	if opts.Output == "" {
		return nil, fmt.Errorf("output directory is required")
	}

	persons, err := ListPersons(opts.Sources)
	if err != nil {
		return nil, err
	}

	result := &CreateResult{Available: len(persons)}

	var eligible []Person
	for _, p := range persons {
		if len(p.Images) >= opts.ImagesPerPerson {
			eligible = append(eligible, p)
		}
	}
	result.Eligible = len(eligible)

	rng := rand.New(rand.NewPCG(uint64(opts.Seed), uint64(opts.Seed)))

	selected := eligible
	if len(eligible) < opts.NumPersons {
		result.Short = true
	} else {
		selected = sample(rng, eligible, opts.NumPersons)
	}

	if err := os.RemoveAll(opts.Output); err != nil {
		return nil, fmt.Errorf("removing existing %s: %w", opts.Output, err)
	}
	if err := os.MkdirAll(opts.Output, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", opts.Output, err)
	}

	for _, p := range selected {
		dir := filepath.Join(opts.Output, p.Name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
		for _, img := range sample(rng, p.Images, opts.ImagesPerPerson) {
			if err := copyFile(img, destPath(dir, img)); err != nil {
				return nil, err
			}
			result.Images++
		}
		result.Persons++
	}

	return result, nil
}

// sample returns k distinct elements of items chosen uniformly, without modifying items.
func sample[T any](rng *rand.Rand, items []T, k int) []T {
	if k >= len(items) {
		return slices.Clone(items)
	}
	idx := rng.Perm(len(items))[:k]
	out := make([]T, 0, k)
	for _, i := range idx {
		out = append(out, items[i])
	}
	return out
}

// destPath keeps the original file name unless a file from another source
// already took it, in which case the source directory name is prefixed.
func destPath(dir, img string) string {
	dst := filepath.Join(dir, filepath.Base(img))
	if _, err := os.Stat(dst); err == nil {
		source := filepath.Base(filepath.Dir(filepath.Dir(img)))
		dst = filepath.Join(dir, source+"_"+filepath.Base(img))
	}
	return dst
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}
