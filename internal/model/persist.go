package model

import (
	"encoding/gob"
	"fmt"
	"os"
)

// SaveTree writes a fitted tree to disk with gob encoding.
func SaveTree(path string, t *Tree) error {
	return saveGob(path, t)
}

// LoadTree reads a tree saved by SaveTree.
func LoadTree(path string) (*Tree, error) {
	var t Tree
	if err := loadGob(path, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SaveForest writes a fitted forest to disk with gob encoding.
func SaveForest(path string, f *Forest) error {
	return saveGob(path, f)
}

// LoadForest reads a forest saved by SaveForest.
func LoadForest(path string) (*Forest, error) {
	var f Forest
	if err := loadGob(path, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func saveGob(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return f.Close()
}

func loadGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open model file: %w", err)
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decode model: %w", err)
	}
	return nil
}
