package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	t.Run("perfect predictions", func(t *testing.T) {
		y := []int{1, 2, 3, 4, 1, 2}
		ev, err := Evaluate(y, y)
		require.NoError(t, err)

		assert.Equal(t, 1.0, ev.Accuracy)
		assert.Equal(t, 1.0, ev.MacroF1)
		assert.Equal(t, []int{1, 2, 3, 4}, ev.Classes)
		for _, cm := range ev.PerClass {
			assert.Equal(t, 1.0, cm.Precision)
			assert.Equal(t, 1.0, cm.Recall)
		}
	})

	t.Run("mixed predictions", func(t *testing.T) {
		yTrue := []int{1, 1, 1, 2, 2, 2}
		yPred := []int{1, 1, 2, 2, 2, 1}

		ev, err := Evaluate(yTrue, yPred)
		require.NoError(t, err)
		assert.InDelta(t, 4.0/6.0, ev.Accuracy, 1e-9)

		// Confusion: class 1 row {2, 1}, class 2 row {1, 2}.
		assert.Equal(t, [][]int{{2, 1}, {1, 2}}, ev.Confusion)

		class1 := ev.PerClass[0]
		assert.Equal(t, 1, class1.Class)
		assert.InDelta(t, 2.0/3.0, class1.Precision, 1e-9)
		assert.InDelta(t, 2.0/3.0, class1.Recall, 1e-9)
		assert.Equal(t, 3, class1.Support)
	})

	t.Run("class never predicted has zero precision", func(t *testing.T) {
		ev, err := Evaluate([]int{1, 2, 2}, []int{2, 2, 2})
		require.NoError(t, err)
		assert.Zero(t, ev.PerClass[0].Precision)
		assert.Zero(t, ev.PerClass[0].Recall)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := Evaluate(nil, nil)
		assert.Error(t, err)
		_, err = Evaluate([]int{1}, []int{1, 2})
		assert.Error(t, err)
	})
}
