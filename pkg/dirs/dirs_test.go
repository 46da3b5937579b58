package dirs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDataDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("HOME", home)
	t.Setenv("AppData", home)

	dir, err := GetDataDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(dir) != appName {
		t.Errorf("\nExpected: .../%s\nGot:      %s", appName, dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("data directory %s was not created", dir)
	}

	paths := ConfigSearchPaths()
	if len(paths) != 2 || paths[0] != "." || paths[1] != dir {
		t.Errorf("unexpected search paths: %v", paths)
	}
}

func TestGetSaveDirectory(t *testing.T) {
	got, err := GetSaveDirectory("/srv/videos")
	if err != nil || got != "/srv/videos" {
		t.Errorf("\nExpected: /srv/videos\nGot:      %s (%v)", got, err)
	}

	cwd, _ := os.Getwd()
	got, err = GetSaveDirectory("")
	if err != nil || got != cwd {
		t.Errorf("\nExpected: %s\nGot:      %s (%v)", cwd, got, err)
	}
}
