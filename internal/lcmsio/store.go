// Package lcmsio locates and opens LCMS sample files in a plate directory.
// A directory is either a local path or a Google Storage prefix of the form
// gs://bucket/path.
package lcmsio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"google.golang.org/api/iterator"
)

const gsPrefix = "gs://"

// ErrSampleNotFound means none of the candidate file names of a sample exist
var ErrSampleNotFound = errors.New("lcmsio: sample not found")

// Extensions that are tried, in order, when a sample name is not a file
var sampleExtensions = []string{"", ".mzML", ".mzml"}

// Store opens sample files. The Google Storage client is only created when
// a gs:// directory is used.
type Store struct {
	mu     sync.Mutex
	client *storage.Client
}

// NewStore returns a Store. Close must be called when done.
func NewStore() *Store {
	return &Store{}
}

// NewStoreWithClient returns a Store that uses an existing storage client
func NewStoreWithClient(client *storage.Client) *Store {
	return &Store{client: client}
}

// Close releases the storage client, if any
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *Store) storageClient(ctx context.Context) (*storage.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, pfx.Err(err)
		}
		s.client = client
	}
	return s.client, nil
}

// IsRemote reports whether dir refers to Google Storage
func IsRemote(dir string) bool {
	return strings.HasPrefix(dir, gsPrefix)
}

// splitGS splits gs://bucket/some/prefix into bucket and prefix. The prefix
// never has a trailing slash.
func splitGS(dir string) (string, string, error) {
	parts := strings.SplitN(strings.TrimPrefix(dir, gsPrefix), "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("no bucket in google storage path %q", dir)
	}
	prefix := ""
	if len(parts) == 2 {
		prefix = strings.Trim(parts[1], "/")
	}
	return parts[0], prefix, nil
}

// Candidates returns the file names that are tried for a sample
func Candidates(dir, sample string) []string {
	out := make([]string, 0, len(sampleExtensions))
	for _, ext := range sampleExtensions {
		if IsRemote(dir) {
			out = append(out, strings.TrimSuffix(dir, "/")+"/"+sample+ext)
		} else {
			out = append(out, filepath.Join(dir, sample+ext))
		}
	}
	return out
}

// Open opens the file of a sample in dir. The returned name is the file that
// was actually opened.
func (s *Store) Open(ctx context.Context, dir, sample string) (io.ReadCloser, string, error) {
	if IsRemote(dir) {
		return s.openRemote(ctx, dir, sample)
	}
	for _, name := range Candidates(dir, sample) {
		fi, err := os.Stat(name)
		if err != nil || fi.IsDir() {
			continue
		}
		f, err := os.Open(name)
		if err != nil {
			return nil, name, pfx.Err(err)
		}
		return f, name, nil
	}
	return nil, "", fmt.Errorf("%w: %s in %s", ErrSampleNotFound, sample, dir)
}

func (s *Store) openRemote(ctx context.Context, dir, sample string) (io.ReadCloser, string, error) {
	bucket, prefix, err := splitGS(dir)
	if err != nil {
		return nil, "", err
	}
	client, err := s.storageClient(ctx)
	if err != nil {
		return nil, "", err
	}
	bkt := client.Bucket(bucket)
	for _, ext := range sampleExtensions {
		object := path.Join(prefix, sample+ext)
		r, err := bkt.Object(object).NewReader(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) {
			continue
		}
		name := gsPrefix + bucket + "/" + object
		if err != nil {
			return nil, name, pfx.Err(fmt.Errorf("%s: %w", name, err))
		}
		return r, name, nil
	}
	return nil, "", fmt.Errorf("%w: %s in %s", ErrSampleNotFound, sample, dir)
}

// List returns the sample names (file names without extension) of all mzML
// files in dir, sorted
func (s *Store) List(ctx context.Context, dir string) ([]string, error) {
	var names []string
	if IsRemote(dir) {
		bucket, prefix, err := splitGS(dir)
		if err != nil {
			return nil, err
		}
		client, err := s.storageClient(ctx)
		if err != nil {
			return nil, err
		}
		q := &storage.Query{Prefix: prefix + "/", Delimiter: "/"}
		if prefix == "" {
			q.Prefix = ""
		}
		it := client.Bucket(bucket).Objects(ctx, q)
		for {
			attrs, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, pfx.Err(err)
			}
			names = append(names, path.Base(attrs.Name))
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, pfx.Err(err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
	}
	return sampleNames(names), nil
}

func sampleNames(files []string) []string {
	var out []string
	for _, f := range files {
		ext := filepath.Ext(f)
		if strings.EqualFold(ext, ".mzML") {
			out = append(out, strings.TrimSuffix(f, ext))
		}
	}
	sort.Strings(out)
	return out
}
