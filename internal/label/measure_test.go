package label

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaceCachesByKey(t *testing.T) {
	a, err := Face(10, false)
	require.NoError(t, err)
	b, err := Face(10, false)
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := Face(10, true)
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestMeasureTextDeterministic(t *testing.T) {
	face, err := Face(10, false)
	require.NoError(t, err)

	text := "Суп куриный с домашней лапшой и зеленью"
	lines1, h1 := MeasureText(text, face, 300)
	lines2, h2 := MeasureText(text, face, 300)

	assert.Equal(t, lines1, lines2)
	assert.Equal(t, h1, h2)
	assert.Equal(t, len(lines1)*lineHeight(face), h1)
}

func TestWrapText(t *testing.T) {
	face, err := Face(10, false)
	require.NoError(t, err)

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, wrapText("   ", face, 300))
	})

	t.Run("short text stays on one line", func(t *testing.T) {
		lines := wrapText("Соль", face, 1000)
		assert.Equal(t, []string{"Соль"}, lines)
	})

	t.Run("no width gives single line", func(t *testing.T) {
		lines := wrapText("a b c", face, 0)
		assert.Equal(t, []string{"a b c"}, lines)
	})

	t.Run("every line fits the width", func(t *testing.T) {
		lines := wrapText("Суп куриный с домашней лапшой и зеленью", face, 200)
		require.NotEmpty(t, lines)
		for _, line := range lines {
			assert.LessOrEqual(t, textWidth(face, line), 200, "line %q", line)
		}
	})

	t.Run("oversized word is hard split", func(t *testing.T) {
		word := strings.Repeat("Щ", 60)
		lines := wrapText(word, face, 100)
		require.Greater(t, len(lines), 1)
		for _, line := range lines {
			assert.LessOrEqual(t, textWidth(face, line), 100)
		}
		assert.Equal(t, word, strings.Join(lines, ""))
	})
}

func TestWrapToLinesTruncation(t *testing.T) {
	face, err := Face(10, false)
	require.NoError(t, err)

	long := strings.Repeat("состав ингредиент ", 20)

	t.Run("unlimited keeps everything", func(t *testing.T) {
		all := WrapToLines(long, face, 250, 0)
		assert.Greater(t, len(all), 2)
	})

	t.Run("truncated tail carries ellipsis", func(t *testing.T) {
		lines := WrapToLines(long, face, 250, 2)
		require.Len(t, lines, 2)
		assert.True(t, strings.HasSuffix(lines[1], "..."))
		assert.LessOrEqual(t, textWidth(face, lines[1]), 250)
	})

	t.Run("short text is untouched", func(t *testing.T) {
		lines := WrapToLines("Соль", face, 1000, 2)
		assert.Equal(t, []string{"Соль"}, lines)
	})
}
