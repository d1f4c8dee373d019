package storage

import (
	"fmt"
	"os"
	"path"
)

type FileSystemStorage struct {
	Path string
}

func NewFileSystemStorage(path string) Storage {
	return FileSystemStorage{
		Path: path,
	}
}

/*
fileName here should be a file name with extension, relative to Path.
this function returns full path of the saved file
*/
func (s FileSystemStorage) Save(fileName, _ string, buf []byte) (string, error) {
	if err := os.MkdirAll(s.Path, 0755); err != nil {
		return "", fmt.Errorf("fs storage: %w", err)
	}
	fullPath := path.Join(s.Path, path.Base(fileName))
	if err := os.WriteFile(fullPath, buf, 0644); err != nil {
		return "", fmt.Errorf("fs storage: %w", err)
	}
	return fullPath, nil
}
