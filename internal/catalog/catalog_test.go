package catalog_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/directory-submitter/constants"
	"github.com/joseph-ayodele/directory-submitter/internal/catalog"
	"github.com/joseph-ayodele/directory-submitter/internal/common"
	"github.com/joseph-ayodele/directory-submitter/internal/entity"
)

const twoEntries = `version: "v1"
directories:
  - name: "Alpha"
    url: "https://alpha.example/submit"
    category: "General"
    difficulty: easy
    requirements: ["Logo"]
  - name: "Beta"
    url: "https://beta.example/add"
    category: "Tech"
`

func TestDefaultCatalog(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)
	dirs, err := c.Directories(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, dirs)
	assert.Equal(t, "Product Hunt", dirs[0].Name)
	assert.NotEmpty(t, c.Version())
}

func TestDefaultCatalog_EveryEntryIsSubmittable(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)
	dirs, _ := c.Directories(context.Background())

	// a pro job is fully served by the built-in list
	assert.GreaterOrEqual(t, len(dirs), constants.TierPro.Quota())
	for _, d := range dirs {
		err := common.NewValidator().Field(d.Name, d.URL, common.HTTPURL).Error()
		assert.NoError(t, err, "directory %q", d.Name)
	}
}

func TestLoad(t *testing.T) {
	builtin, err := catalog.Load("")
	require.NoError(t, err)
	def, err := catalog.Default()
	require.NoError(t, err)
	assert.Equal(t, def.Len(), builtin.Len())

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(twoEntries), 0o644))
	fromFile, err := catalog.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, fromFile.Len())

	_, err = catalog.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	c, err := catalog.Parse([]byte(twoEntries))
	require.NoError(t, err)
	assert.Equal(t, "v1", c.Version())

	dirs, _ := c.Directories(context.Background())
	require.Len(t, dirs, 2)
	assert.Equal(t, constants.DifficultyEasy, dirs[0].Difficulty)
	// missing difficulty defaults to medium
	assert.Equal(t, constants.DifficultyMedium, dirs[1].Difficulty)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"duplicate names": `directories:
  - {name: "A", url: "https://a.example"}
  - {name: "A", url: "https://b.example"}`,
		"relative url":       `directories: [{name: "A", url: "/submit"}]`,
		"unknown difficulty": `directories: [{name: "A", url: "https://a.example", difficulty: "brutal"}]`,
		"unknown field":      `directories: [{name: "A", url: "https://a.example", priority: 1}]`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := catalog.Parse([]byte(doc))
			assert.Error(t, err)
		})
	}

	_, err := catalog.NewStatic("v", []entity.Directory{{Name: "", URL: "https://x.example"}})
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestStatic_ReturnsCopies(t *testing.T) {
	c, err := catalog.NewStatic("v", []entity.Directory{{Name: "A", URL: "https://a.example"}})
	require.NoError(t, err)

	dirs, _ := c.Directories(context.Background())
	dirs[0].Name = "mutated"

	again, _ := c.Directories(context.Background())
	assert.Equal(t, "A", again[0].Name)
}

func TestTake(t *testing.T) {
	dirs := []entity.Directory{{Name: "1"}, {Name: "2"}, {Name: "3"}}

	assert.Len(t, catalog.Take(dirs, 50), 3)
	assert.Nil(t, catalog.Take(dirs, 0))

	two := catalog.Take(dirs, 2)
	require.Len(t, two, 2)
	assert.Equal(t, "1", two[0].Name)
	assert.Equal(t, "2", two[1].Name)

	// appending to the subset must not clobber the source
	_ = append(two, entity.Directory{Name: "x"})
	assert.Equal(t, "3", dirs[2].Name)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(twoEntries), 0o644))

	w, err := catalog.NewWatcher(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Equal(t, "v1", w.Version())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// give the watcher a moment to register
	time.Sleep(100 * time.Millisecond)
	updated := `version: "v2"
directories:
  - {name: "Gamma", url: "https://gamma.example"}
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	require.Eventually(t, func() bool { return w.Version() == "v2" }, 5*time.Second, 50*time.Millisecond)
	dirs, _ := w.Directories(context.Background())
	require.Len(t, dirs, 1)
	assert.Equal(t, "Gamma", dirs[0].Name)

	// a broken file keeps the last good snapshot
	require.NoError(t, os.WriteFile(path, []byte("directories: [{name: \"\"}]"), 0o644))
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, "v2", w.Version())

	cancel()
	assert.NoError(t, <-done)
}
