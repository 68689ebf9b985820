package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sasta-kro/corvus-paas/leadmagnet-host/publish"
)

type commandEnvironment struct {
	assetRoot string
	logRoot   string
	workDir   string
}

// newCommandEnvironment points every storage location at a temp directory.
func newCommandEnvironment(t *testing.T) commandEnvironment {
	t.Helper()
	baseDir := t.TempDir()
	environment := commandEnvironment{
		assetRoot: filepath.Join(baseDir, "assets"),
		logRoot:   filepath.Join(baseDir, "logs"),
		workDir:   filepath.Join(baseDir, "work"),
	}
	require.NoError(t, os.MkdirAll(environment.workDir, 0755))

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(baseDir, "db", "leadmagnets.db"))
	t.Setenv("STORAGE_BACKEND", "filesystem")
	t.Setenv("ASSET_ROOT", environment.assetRoot)
	t.Setenv("LOG_ROOT", environment.logRoot)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FILE", "")
	return environment
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCommand := newRootCommand()
	var output bytes.Buffer
	rootCommand.SetOut(&output)
	rootCommand.SetErr(&output)
	rootCommand.SetArgs(args)
	err := rootCommand.ExecuteContext(context.Background())
	return output.String(), err
}

func writeSiteFolder(t *testing.T, directory string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(directory, "css"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(directory, "index.html"),
		[]byte("<html><head></head><body><form><input name=\"email\"></form></body></html>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(directory, "css", "style.css"), []byte("body{}"), 0644))
}

func writeSiteZip(t *testing.T, zipPath string) {
	t.Helper()
	var buffer bytes.Buffer
	zipWriter := zip.NewWriter(&buffer)
	entry, err := zipWriter.Create("index.html")
	require.NoError(t, err)
	_, err = entry.Write([]byte("<html><head></head><body>hello</body></html>"))
	require.NoError(t, err)
	require.NoError(t, zipWriter.Close())
	require.NoError(t, os.WriteFile(zipPath, buffer.Bytes(), 0644))
}

func TestPublishCommand_Folder(t *testing.T) {
	environment := newCommandEnvironment(t)
	siteDir := filepath.Join(environment.workDir, "site")
	writeSiteFolder(t, siteDir)

	output, err := runCommand(t, "publish", "--name", "Spring Guide", siteDir)
	require.NoError(t, err)

	var result publish.Result
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.Equal(t, "spring-guide", result.Slug)
	assert.Equal(t, "Spring Guide", result.Name)
	assert.Equal(t, "/lm/spring-guide", result.URL)
	assert.NotEmpty(t, result.ID)

	assert.FileExists(t, filepath.Join(environment.assetRoot, "spring-guide", "index.html"))
	assert.FileExists(t, filepath.Join(environment.assetRoot, "spring-guide", "css", "style.css"))
	assert.FileExists(t, filepath.Join(environment.logRoot, "spring-guide.log"))
}

func TestPublishCommand_ZipFile(t *testing.T) {
	environment := newCommandEnvironment(t)
	zipPath := filepath.Join(environment.workDir, "bundle.zip")
	writeSiteZip(t, zipPath)

	output, err := runCommand(t, "publish", "--name", "Checklist", "--description", "one page", zipPath)
	require.NoError(t, err)

	var result publish.Result
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.Equal(t, "checklist", result.Slug)
	assert.FileExists(t, filepath.Join(environment.assetRoot, "checklist", "index.html"))
}

func TestPublishCommand_SameNameTwiceIsACollision(t *testing.T) {
	environment := newCommandEnvironment(t)
	zipPath := filepath.Join(environment.workDir, "bundle.zip")
	writeSiteZip(t, zipPath)

	_, err := runCommand(t, "publish", "--name", "Checklist", zipPath)
	require.NoError(t, err)

	_, err = runCommand(t, "publish", "--name", "Checklist", zipPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, publish.ErrSlugCollision)
}

func TestPublishCommand_RejectsNonZipFile(t *testing.T) {
	environment := newCommandEnvironment(t)
	textPath := filepath.Join(environment.workDir, "notes.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("hello"), 0644))

	_, err := runCommand(t, "publish", "--name", "Notes", textPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither a folder nor a .zip file")
	assert.NoDirExists(t, filepath.Join(environment.assetRoot, "notes"))
}

func TestPublishCommand_RequiresName(t *testing.T) {
	environment := newCommandEnvironment(t)
	siteDir := filepath.Join(environment.workDir, "site")
	writeSiteFolder(t, siteDir)

	_, err := runCommand(t, "publish", siteDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestPublishCommand_MissingPath(t *testing.T) {
	environment := newCommandEnvironment(t)

	_, err := runCommand(t, "publish", "--name", "Ghost", filepath.Join(environment.workDir, "missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
