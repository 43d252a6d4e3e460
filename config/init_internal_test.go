package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func setUpConfigPath(t *testing.T) func() {
	dir, err := ioutil.TempDir("", "hbbft-config")
	if err != nil {
		t.Fatalf("error in TempDir : %s", err.Error())
	}
	old := configPath
	SetPath(filepath.Join(dir, "config.yml"))
	return func() {
		SetPath(old)
		os.RemoveAll(dir)
	}
}

func TestInit(t *testing.T) {
	defer setUpConfigPath(t)()

	if err := Init(""); err != nil {
		t.Fatalf("unexpected err: %s", err)
	}
	if !fileExists(Path()) {
		t.Fatalf("%s does not exist", Path())
	}
	if fileExists(Path() + ".tmp") {
		t.Fatalf("temporary file is left")
	}

	c, err := Load(Path())
	if err != nil {
		t.Fatalf("error in Load : %s", err.Error())
	}
	if c.HoneyBadger.ProposeInterval != defaultConfig.HoneyBadger.ProposeInterval {
		t.Fatalf("expected propose interval is %s, but got %s", defaultConfig.HoneyBadger.ProposeInterval, c.HoneyBadger.ProposeInterval)
	}
}

func TestInit_WithSource(t *testing.T) {
	defer setUpConfigPath(t)()

	if err := Init("testdata/config.golden.yml"); err != nil {
		t.Fatalf("unexpected err: %s", err)
	}
	// overwrite
	if err := Init("testdata/config.golden.yml"); err != nil {
		t.Fatalf("unexpected err: %s", err)
	}

	c, err := Load(Path())
	if err != nil {
		t.Fatalf("error in Load : %s", err.Error())
	}
	if c.Identity.Address != "127.0.0.1:7000" {
		t.Fatalf("expected address is %s, but got %s", "127.0.0.1:7000", c.Identity.Address)
	}
}
