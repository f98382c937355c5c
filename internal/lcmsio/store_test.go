package lcmsio

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(name, []byte(content), 0644))
}

func TestOpenLocal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "A1.mzML"), "a1")
	writeFile(t, filepath.Join(dir, "B2.mzml"), "b2")
	writeFile(t, filepath.Join(dir, "C3"), "c3")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "D4"), 0755))
	writeFile(t, filepath.Join(dir, "D4.mzML"), "d4")

	s := NewStore()
	defer s.Close()
	ctx := context.Background()

	for sample, want := range map[string]string{
		"A1":      "a1",
		"A1.mzML": "a1",
		"B2":      "b2",
		"C3":      "c3",
		"D4":      "d4", // directory named D4 is skipped
	} {
		r, name, err := s.Open(ctx, dir, sample)
		require.NoError(t, err, sample)
		b, err := io.ReadAll(r)
		require.NoError(t, err)
		r.Close()
		require.Equal(t, want, string(b), name)
	}

	_, _, err := s.Open(ctx, dir, "missing")
	require.True(t, errors.Is(err, ErrSampleNotFound), "got %v", err)
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.mzML", "a.mzml", "notes.txt"} {
		writeFile(t, filepath.Join(dir, n), "")
	}
	s := NewStore()
	names, err := s.List(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, names)
}

func TestCandidatesAndSplit(t *testing.T) {
	require.Equal(t,
		[]string{"gs://bkt/plate/s1", "gs://bkt/plate/s1.mzML", "gs://bkt/plate/s1.mzml"},
		Candidates("gs://bkt/plate/", "s1"))
	require.Equal(t, filepath.Join("plate", "s1.mzML"), Candidates("plate", "s1")[1])

	bucket, prefix, err := splitGS("gs://bkt/some/plate/")
	require.NoError(t, err)
	require.Equal(t, "bkt", bucket)
	require.Equal(t, "some/plate", prefix)

	bucket, prefix, err = splitGS("gs://bkt")
	require.NoError(t, err)
	require.Equal(t, "bkt", bucket)
	require.Equal(t, "", prefix)

	_, _, err = splitGS("gs:///x")
	require.Error(t, err)

	require.True(t, IsRemote("gs://x/y"))
	require.False(t, IsRemote("/data/gs://"))
}
