package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	out := bytes.NewBuffer(nil)
	cmd.SetOut(out)
	cmd.SetErr(bytes.NewBuffer(nil))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func lines(out string) []string {
	return strings.Split(strings.TrimSpace(out), "\n")
}

func TestCLI(t *testing.T) {
	dir := t.TempDir()
	config := filepath.Join(dir, "config.yaml")

	t.Run("init", func(t *testing.T) {
		out, err := execute(t, "init", "--path", dir, "--title", "people", "--locale", "FR", "--fallbacks", "fr=en|de")
		require.NoError(t, err)
		assert.Contains(t, out, "new project created")
		bits, err := os.ReadFile(config)
		require.NoError(t, err)
		assert.Contains(t, string(bits), "# People docmap configuration")
		assert.Contains(t, string(bits), "engine: kv")
		assert.Contains(t, string(bits), "locale: fr")
		assert.Contains(t, string(bits), "fr: [en, de]")
		_, err = os.Stat(filepath.Join(dir, "schema.yaml"))
		assert.NoError(t, err)
	})
	t.Run("import", func(t *testing.T) {
		path := filepath.Join(dir, "people.jsonl")
		require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
			`{"_id": 1, "n": "alice", "age": 30, "title": {"en": "Dr", "fr": "Docteur"}}`,
			`{"_id": 2, "n": "bob", "age": 25, "title": {"en": "Mr"}}`,
			``,
			`{"_id": 3, "n": "carol", "age": 35, "title": {"de": "Frau"}}`,
		}, "\n")), 0644))
		out, err := execute(t, "import", "Person", path, "--config", config)
		require.NoError(t, err)
		assert.Equal(t, `{"imported":3}`, strings.TrimSpace(out))
	})
	t.Run("import invalid document", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.jsonl")
		require.NoError(t, os.WriteFile(path, []byte(`{"_id": `), 0644))
		_, err := execute(t, "import", "Person", path, "--config", config)
		assert.Error(t, err)
	})
	t.Run("count", func(t *testing.T) {
		out, err := execute(t, "count", "Person", "--config", config)
		require.NoError(t, err)
		assert.Equal(t, "3", strings.TrimSpace(out))
		out, err = execute(t, "count", "Person", "--config", config, "--where", `{"age": {"$gt": 26}}`)
		require.NoError(t, err)
		assert.Equal(t, "2", strings.TrimSpace(out))
	})
	t.Run("pluck", func(t *testing.T) {
		out, err := execute(t, "pluck", "Person", "name", "--config", config, "--sort", "age:asc")
		require.NoError(t, err)
		assert.Equal(t, []string{`"bob"`, `"alice"`, `"carol"`}, lines(out))
	})
	t.Run("pluck localized with fallbacks", func(t *testing.T) {
		out, err := execute(t, "pluck", "Person", "title", "--config", config)
		require.NoError(t, err)
		assert.Equal(t, []string{`"Docteur"`, `"Mr"`, `"Frau"`}, lines(out))
	})
	t.Run("first flattened", func(t *testing.T) {
		out, err := execute(t, "first", "Person", "--config", config, "--sort", "age:desc", "--flatten")
		require.NoError(t, err)
		assert.Contains(t, out, `"n":"carol"`)
		assert.Contains(t, out, `"title.de":"Frau"`)
	})
	t.Run("last", func(t *testing.T) {
		out, err := execute(t, "last", "Person", "--config", config, "-n", "2")
		require.NoError(t, err)
		got := lines(out)
		require.Len(t, got, 2)
		assert.Contains(t, got[0], `"n":"bob"`)
		assert.Contains(t, got[1], `"n":"carol"`)
	})
	t.Run("distinct", func(t *testing.T) {
		out, err := execute(t, "distinct", "Person", "name", "--config", config, "--where", `{"age": {"$lt": 31}}`)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{`"alice"`, `"bob"`}, lines(out))
	})
	t.Run("aggregate", func(t *testing.T) {
		out, err := execute(t, "aggregate", "Person", "age", "--config", config)
		require.NoError(t, err)
		assert.Contains(t, out, `"count":3`)
		assert.Contains(t, out, `"sum":90`)
		assert.Contains(t, out, `"max":35`)
	})
	t.Run("explain", func(t *testing.T) {
		out, err := execute(t, "explain", "Person", "--config", config, "--limit", "1")
		require.NoError(t, err)
		assert.NotEmpty(t, strings.TrimSpace(out))
	})
	t.Run("classes", func(t *testing.T) {
		out, err := execute(t, "classes", "--config", config)
		require.NoError(t, err)
		assert.Contains(t, out, "name: Circle")
		assert.Contains(t, out, "parent: Shape")
		assert.Contains(t, out, "collection: people")
		assert.Contains(t, out, "n (name): string")
		assert.Contains(t, out, "company: belongs_to Company")
	})
	t.Run("unknown class", func(t *testing.T) {
		_, err := execute(t, "count", "Robot", "--config", config)
		assert.Error(t, err)
	})
	t.Run("invalid selector", func(t *testing.T) {
		_, err := execute(t, "count", "Person", "--config", config, "--where", `{"age":`)
		assert.Error(t, err)
	})
	t.Run("invalid sort", func(t *testing.T) {
		_, err := execute(t, "first", "Person", "--config", config, "--sort", "age:sideways")
		assert.Error(t, err)
	})
}

func TestParseSort(t *testing.T) {
	order, err := parseSort([]string{"age:desc", "n", "dob:ASC"})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "age", Value: -1}, {Key: "n", Value: 1}, {Key: "dob", Value: 1}}, order)
}
