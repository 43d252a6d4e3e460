package log_test

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DE-labtory/hbbft/log"
)

func setUpFileLogger(t *testing.T) (string, func()) {
	dir, err := ioutil.TempDir("", "hbbft-log")
	if err != nil {
		t.Fatalf("error in TempDir : %s", err.Error())
	}
	path := filepath.Join(dir, "test", "hbbft.log")
	if err := log.EnableOnlyFileLogger(true, path); err != nil {
		t.Fatal(err)
	}
	return path, func() {
		log.EnableFileLogger(false, "")
		log.EnableStdLogger(true)
		log.SetLevel("info")
		os.RemoveAll(dir)
	}
}

func read(t *testing.T, path string) string {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatalf("error in ReadFile : %s", err.Error())
	}
	return string(data)
}

func TestDebug(t *testing.T) {
	path, tearDown := setUpFileLogger(t)
	defer tearDown()

	log.SetLevel("debug")
	log.Debug("msg", "debug printed")

	if !strings.Contains(read(t, path), "level=debug msg=\"debug printed\"") {
		t.Fatalf("expected debug log, but got %s", read(t, path))
	}
}

func TestInfo(t *testing.T) {
	path, tearDown := setUpFileLogger(t)
	defer tearDown()

	log.SetToInfo()
	log.Debug("msg", "hidden")
	log.Info("msg", "shown")

	out := read(t, path)
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected debug log filtered, but got %s", out)
	}
	if !strings.Contains(out, "level=info msg=shown") {
		t.Fatalf("expected info log, but got %s", out)
	}
}

func TestSetLevel_Error(t *testing.T) {
	path, tearDown := setUpFileLogger(t)
	defer tearDown()

	log.SetLevel("error")
	log.Warn("msg", "warn")
	log.Error("msg", "error")

	out := read(t, path)
	if strings.Contains(out, "level=warn") || !strings.Contains(out, "level=error") {
		t.Fatalf("expected only error log, but got %s", out)
	}
}

func TestLogger(t *testing.T) {
	path, tearDown := setUpFileLogger(t)
	defer tearDown()

	if err := log.Logger().Log("component", "api"); err != nil {
		t.Fatalf("error in Log : %s", err.Error())
	}
	if !bytes.Contains([]byte(read(t, path)), []byte("component=api")) {
		t.Fatalf("expected log of Logger, but got %s", read(t, path))
	}
}
