package model

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadTree(t *testing.T) {
	x, y := twoBandDataset(150, 31)

	tree, err := NewTree(TreeConfig{MaxDepth: 5})
	require.NoError(t, err)
	require.NoError(t, tree.Fit(x, y))

	path := filepath.Join(t.TempDir(), "tree.gob")
	require.NoError(t, SaveTree(path, tree))

	loaded, err := LoadTree(path)
	require.NoError(t, err)

	assert.Equal(t, tree.Classes, loaded.Classes)
	assert.Equal(t, tree.NodeCount(), loaded.NodeCount())
	for i := range x {
		assert.Equal(t, tree.Predict(x[i]), loaded.Predict(x[i]))
	}
}

func TestSaveLoadForest(t *testing.T) {
	x, y := twoBandDataset(150, 37)

	forest, err := NewForest(ForestConfig{NumTrees: 5, MaxDepth: 4, Bootstrap: true, Seed: 3})
	require.NoError(t, err)
	require.NoError(t, forest.Fit(x, y))

	path := filepath.Join(t.TempDir(), "forest.gob")
	require.NoError(t, SaveForest(path, forest))

	loaded, err := LoadForest(path)
	require.NoError(t, err)

	assert.Len(t, loaded.Trees, 5)
	for i := range x {
		assert.Equal(t, forest.Predict(x[i]), loaded.Predict(x[i]))
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadTree(filepath.Join(t.TempDir(), "nope.gob"))
	assert.Error(t, err)
	_, err = LoadForest(filepath.Join(t.TempDir(), "nope.gob"))
	assert.Error(t, err)
}
