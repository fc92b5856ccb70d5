package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const original = `fn read(buf: &mut [u8], p: *const u8, len: usize) {
    unsafe {
        std::ptr::copy(p, buf.as_mut_ptr(), len);
    }
}`

const fixed = `fn read(buf: &mut [u8], src: &[u8]) {
    let n = buf.len().min(src.len());
    buf[..n].copy_from_slice(&src[..n]);
}`

func TestUnified(t *testing.T) {
	text, err := Unified(original, fixed, "vulnerable_code", "remediated_code", 3)
	require.NoError(t, err)

	assert.Contains(t, text, "--- vulnerable_code")
	assert.Contains(t, text, "+++ remediated_code")
	assert.Contains(t, text, "-    unsafe {")
	assert.Contains(t, text, "+    let n = buf.len().min(src.len());")
}

func TestUnified_NoChanges(t *testing.T) {
	text, err := Unified(original, original, "a", "b", 3)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestSideBySide(t *testing.T) {
	rows := SideBySide("a\nb\nc", "a\nx\nc")
	require.Len(t, rows, 4)

	assert.Equal(t, Row{Original: "a", Fixed: "a", Status: "unchanged"}, rows[0])
	assert.Equal(t, Row{Original: "b", Status: "removed"}, rows[1])
	assert.Equal(t, Row{Fixed: "x", Status: "added"}, rows[2])
	assert.Equal(t, Row{Original: "c", Fixed: "c", Status: "unchanged"}, rows[3])
}

func TestStats(t *testing.T) {
	added, removed, modified := Stats("a\nb\nc", "a\nx\ny\nc")
	assert.Equal(t, 2, added)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, modified)
}

func TestGenerate(t *testing.T) {
	res, err := Generate(original, fixed, "vulnerable_code", "remediated_code")
	require.NoError(t, err)

	assert.True(t, res.HasChanges)
	assert.Greater(t, res.LinesAdded, 0)
	assert.Greater(t, res.LinesRemoved, 0)
	assert.True(t, strings.HasPrefix(res.DiffText, "--- vulnerable_code"))
}

func TestGenerate_Identical(t *testing.T) {
	res, err := Generate("same", "same", "a", "b")
	require.NoError(t, err)

	assert.False(t, res.HasChanges)
	assert.Zero(t, res.LinesAdded)
	assert.Zero(t, res.LinesRemoved)
}
