package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frag(s, font string, size, x, y float64) pdf.Text {
	return pdf.Text{S: s, Font: font, FontSize: size, X: x, Y: y, W: size * 0.5 * float64(len(s))}
}

func TestAssembleLines_SingleLine(t *testing.T) {
	fragments := []pdf.Text{
		frag("Chapter", "Helvetica-Bold", 24, 72, 700),
		frag(" ", "Helvetica-Bold", 24, 156, 700),
		frag("1", "Helvetica-Bold", 24, 168, 700),
	}

	spans := assembleLines(fragments, 1)
	require.Len(t, spans, 1)
	assert.Equal(t, "Chapter 1", spans[0].Text)
	assert.Equal(t, 24.0, spans[0].FontSize)
	assert.True(t, spans[0].Bold)
	assert.Equal(t, 1, spans[0].Page)
	assert.Equal(t, 700.0, spans[0].Y)
}

func TestAssembleLines_SplitsBaselines(t *testing.T) {
	fragments := []pdf.Text{
		frag("Title", "Times-Bold", 18, 72, 720),
		frag("Body text on the next line", "Times-Roman", 11, 72, 700),
	}

	spans := assembleLines(fragments, 3)
	require.Len(t, spans, 2)
	assert.Equal(t, "Title", spans[0].Text)
	assert.True(t, spans[0].Bold)
	assert.Equal(t, "Body text on the next line", spans[1].Text)
	assert.False(t, spans[1].Bold)
	assert.Equal(t, 11.0, spans[1].FontSize)
}

func TestAssembleLines_WordGapInsertsSpace(t *testing.T) {
	// Two fragments on the same baseline with a wide gap between them.
	left := frag("Left", "Helvetica", 12, 72, 500)
	right := frag("Right", "Helvetica", 12, left.X+left.W+20, 500)

	spans := assembleLines([]pdf.Text{left, right}, 1)
	require.Len(t, spans, 1)
	assert.Equal(t, "Left Right", spans[0].Text)
}

func TestAssembleLines_OrdersTopToBottom(t *testing.T) {
	fragments := []pdf.Text{
		frag("second", "Helvetica", 12, 72, 300),
		frag("first", "Helvetica", 12, 72, 600),
	}

	spans := assembleLines(fragments, 1)
	require.Len(t, spans, 2)
	assert.Equal(t, "first", spans[0].Text)
	assert.Equal(t, "second", spans[1].Text)
}

func TestAssembleLines_SkipsMalformedFragments(t *testing.T) {
	fragments := []pdf.Text{
		frag("", "Helvetica", 12, 72, 500),
		frag("ok", "Helvetica", 0, 72, 480), // no usable font size
		frag("kept", "Helvetica", 12, 72, 460),
	}

	spans := assembleLines(fragments, 1)
	require.Len(t, spans, 1)
	assert.Equal(t, "kept", spans[0].Text)
}

func TestAssembleLines_Empty(t *testing.T) {
	assert.Nil(t, assembleLines(nil, 1))
}

func TestIsBoldFont(t *testing.T) {
	tests := []struct {
		font string
		want bool
	}{
		{"Helvetica-Bold", true},
		{"Arial-BoldMT", true},
		{"HelveticaNeue-Heavy", true},
		{"Roboto-Black", true},
		{"Times-Roman", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isBoldFont(tt.font), tt.font)
	}
}

func TestValidator_MissingFile(t *testing.T) {
	v := NewValidator(1024 * 1024)

	result, err := v.ValidateFile("/nonexistent/file.pdf")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Message, "does not exist")
}

func TestValidator_EmptyPath(t *testing.T) {
	v := NewValidator(1024 * 1024)

	result, err := v.ValidateFile("")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Message, "path cannot be empty")
}

func TestValidator_NotAPDF(t *testing.T) {
	v := NewValidator(1024 * 1024)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o600))

	result, err := v.ValidateFile(path)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Message, "not a PDF")
}

func TestToBookmarks_ClampsPages(t *testing.T) {
	outline := []Outline{
		{Title: "Intro", Page: 0},
		{Title: "Appendix", Page: 99, Kids: []Outline{{Title: "Tables", Page: 100}}},
	}

	bms := toBookmarks(outline, 10)
	require.Len(t, bms, 2)
	assert.Equal(t, 1, bms[0].PageFrom)
	assert.Equal(t, 10, bms[1].PageFrom)
	require.Len(t, bms[1].Kids, 1)
	assert.Equal(t, 10, bms[1].Kids[0].PageFrom)
}
