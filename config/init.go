package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// Init writes config file to Path(). Config of srcPath is copied when it is
// given, otherwise default config is written.
func Init(srcPath string) error {
	if srcPath == "" {
		return Write(configPath, Default())
	}

	conf, err := readConfigFile(srcPath)
	if err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return err
	}
	return Write(configPath, conf)
}

// readConfigFile reads the yaml config of filename on top of default values
func readConfigFile(filename string) (*Config, error) {
	conf := Default()

	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(conf); err != nil {
		return nil, fmt.Errorf("failure to decode config: %s", err)
	}
	return conf, nil
}

// Write replaces config file of path with conf
func Write(path string, conf *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0775); err != nil {
		return err
	}

	f, err := openFile(path, 0660)
	if err != nil {
		return err
	}
	if err := encode(f, conf); err != nil {
		f.abort()
		return err
	}
	return f.Close()
}

func encode(w io.Writer, value interface{}) error {
	buf, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// file behaves like os.File, but does an atomic rename operation at Close.
type file struct {
	*os.File
	path string
}

func openFile(path string, mode os.FileMode) (*file, error) {
	f, err := os.OpenFile(path+".tmp", os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(f.Name(), mode); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &file{File: f, path: path}, nil
}

func (f *file) Close() error {
	if err := f.File.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), f.path)
}

func (f *file) abort() {
	f.File.Close()
	os.Remove(f.Name())
}

// fileExists check if the file with the given path exits.
func fileExists(filename string) bool {
	fi, err := os.Lstat(filename)
	if fi != nil || (err != nil && !os.IsNotExist(err)) {
		return true
	}
	return false
}
