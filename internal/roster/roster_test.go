package roster

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Basic(t *testing.T) {
	r, err := Parse(strings.NewReader("id,name\n1,Ann\n2,Bob\n"))
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())

	p, ok := r.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "Ann", p.Name)

	_, ok = r.Lookup(99)
	assert.False(t, ok)
}

func TestParse_HeaderOrderFlexible(t *testing.T) {
	r, err := Parse(strings.NewReader("name,id\nAnn,1\n"))
	require.NoError(t, err)

	p, ok := r.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "Ann", p.Name)
}

func TestParse_MissingColumns(t *testing.T) {
	_, err := Parse(strings.NewReader("uid,fullname\n1,Ann\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id and name")
}

func TestParse_BadID(t *testing.T) {
	_, err := Parse(strings.NewReader("id,name\nabc,Ann\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad id")
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	require.Error(t, err)
}

func TestParse_DuplicateIDKeepsLast(t *testing.T) {
	r, err := Parse(strings.NewReader("id,name\n1,Ann\n1,Anne\n"))
	require.NoError(t, err)

	p, ok := r.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "Anne", p.Name)
	assert.Equal(t, 1, r.Len())
}

func TestPeople_SortedByID(t *testing.T) {
	r, err := Parse(strings.NewReader("id,name\n3,Cat\n1,Ann\n2,Bob\n"))
	require.NoError(t, err)

	people := r.People()
	require.Len(t, people, 3)
	assert.Equal(t, int64(1), people[0].ID)
	assert.Equal(t, int64(2), people[1].ID)
	assert.Equal(t, int64(3), people[2].ID)
}

func TestParse_NormalizesNames(t *testing.T) {
	// "e" + combining acute accent normalizes to a single rune.
	r, err := Parse(strings.NewReader("id,name\n1,Ane\u0301\n"))
	require.NoError(t, err)

	p, ok := r.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "An\u00e9", p.Name)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name\n1,Ann\n"), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
}
