package storage

import (
	"bytes"
	"context"
	"image/color"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"invoice-scan/pkg/models"
)

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"My cool movie.mov", "My_cool_movie.mov"},
		{"../../../etc/passwd", "etc_passwd"},
		{"i contain cool \u00fcml\u00e4uts.txt", "i_contain_cool_umlauts.txt"},
		{`C:\Users\me\invoice.pdf`, "C_Users_me_invoice.pdf"},
		{"invoice (1).png", "invoice_1.png"},
		{"...", ""},
		{"\u00e9\u00e9\u00e9", "eee"},
		{"\u65e5\u672c.png", "png"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SecureFilename(tt.in))
		})
	}
}

func TestSecureFilenameDeviceNames(t *testing.T) {
	tests := []struct {
		in      string
		windows bool
		want    string
	}{
		{"CON.png", false, "CON.png"},
		{"CON.png", true, "_CON.png"},
		{"lpt1.tar.pdf", true, "_lpt1.tar.pdf"},
		{"console.png", true, "console.png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, secureFilename(tt.in, tt.windows), "%s windows=%v", tt.in, tt.windows)
	}
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"invoice.png", true},
		{"invoice.JPG", true},
		{"invoice.jpeg", true},
		{"scan.PDF", true},
		{"archive.tar.pdf", true},
		{"invoice.gif", false},
		{"pdf", false},
		{"invoice.", false},
		{"invoice.pdf.exe", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Allowed(tt.name), tt.name)
	}
}

func TestDerivedImageName(t *testing.T) {
	assert.Equal(t, "invoice.jpg", DerivedImageName("invoice.pdf"))
	assert.Equal(t, "a.b.jpg", DerivedImageName("a.b.PDF"))
	assert.True(t, IsPDF("X.Pdf"))
	assert.False(t, IsPDF("x.png"))
}

func fileHeader(t *testing.T, name string, body []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

type recordingLedger struct {
	tracked   []models.StoredFile
	forgotten []string
}

func (l *recordingLedger) Track(_ context.Context, f models.StoredFile) error {
	l.tracked = append(l.tracked, f)
	return nil
}

func (l *recordingLedger) Expired(context.Context, time.Time) ([]string, error) { return nil, nil }

func (l *recordingLedger) Forget(_ context.Context, name string) error {
	l.forgotten = append(l.forgotten, name)
	return nil
}

func TestStoreSaveUploadAndRemove(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	ledger := &recordingLedger{}
	s, err := NewStore(dir, ledger, zap.NewNop())
	require.NoError(t, err)

	path, err := s.SaveUpload(context.Background(), fileHeader(t, "a.pdf", []byte("%PDF-1.4")), "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.pdf"), path)
	assert.True(t, s.Exists("a.pdf"))

	require.Len(t, ledger.tracked, 1)
	assert.Equal(t, models.KindUpload, ledger.tracked[0].Kind)
	assert.EqualValues(t, 8, ledger.tracked[0].Size)
	assert.Len(t, ledger.tracked[0].SHA256, 64)

	require.NoError(t, s.Remove(context.Background(), "a.pdf"))
	assert.False(t, s.Exists("a.pdf"))
	assert.Equal(t, []string{"a.pdf"}, ledger.forgotten)

	assert.NoError(t, s.Remove(context.Background(), "a.pdf"))
}

func TestStoreSaveUploadOverwrites(t *testing.T) {
	s, err := NewStore(t.TempDir(), nil, nil)
	require.NoError(t, err)

	_, err = s.SaveUpload(context.Background(), fileHeader(t, "x.png", []byte("first")), "x.png")
	require.NoError(t, err)
	_, err = s.SaveUpload(context.Background(), fileHeader(t, "x.png", []byte("second")), "x.png")
	require.NoError(t, err)

	b, err := os.ReadFile(s.Path("x.png"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(b))
}

func TestStoreSaveImage(t *testing.T) {
	ledger := &recordingLedger{}
	s, err := NewStore(t.TempDir(), ledger, nil)
	require.NoError(t, err)

	img := imaging.New(8, 8, color.White)
	_, err = s.SaveImage(context.Background(), img, "page.jpg")
	require.NoError(t, err)

	decoded, err := imaging.Open(s.Path("page.jpg"))
	require.NoError(t, err)
	assert.Equal(t, 8, decoded.Bounds().Dx())
	require.Len(t, ledger.tracked, 1)
	assert.Equal(t, models.KindDerived, ledger.tracked[0].Kind)
	assert.Positive(t, ledger.tracked[0].Size)
}

func TestDirLedgerExpired(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.jpg")
	fresh := filepath.Join(dir, "fresh.jpg")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	names, err := DirLedger{Dir: dir}.Expired(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"old.jpg"}, names)
}
