package vision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
)

// mockModel is a test double for VisionModel.
type mockModel struct {
	text     string
	err      error
	delay    time.Duration
	gotMIME  string
	gotImage []byte
	gotInstr string
}

func (m *mockModel) Describe(ctx context.Context, instruction string, image []byte, mimeType string) (string, error) {
	m.gotInstr = instruction
	m.gotImage = image
	m.gotMIME = mimeType
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.text, m.err
}

func (m *mockModel) ModelName() string { return "mock-vision" }
func (m *mockModel) Close() error      { return nil }

func writeImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G', 1, 2, 3}, 0600))
	return path
}

func TestExtractor_Metadata(t *testing.T) {
	e := New(&mockModel{}, 0)

	assert.Equal(t, driven.ExtractorVision, e.Kind())
	assert.Contains(t, e.SupportedMIMETypes(), "image/jpg")
	assert.Contains(t, e.SupportedMIMETypes(), "image/png")
	assert.Equal(t, DefaultTimeout, e.timeout)
}

func TestExtract_SinglePageTranscription(t *testing.T) {
	model := &mockModel{text: "Client wants a dashboard by Friday."}
	path := writeImage(t, "chat.png")

	pages, err := New(model, time.Second).Extract(context.Background(), domain.SourceFile{Path: path, MIMEType: "image/png"})
	require.NoError(t, err)

	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "Client wants a dashboard by Friday.", pages[0].Text)
	assert.Equal(t, "mock-vision", pages[0].Metadata[MetaVisionModel])
	assert.Equal(t, Instruction, model.gotInstr)
	assert.Equal(t, "image/png", model.gotMIME)
	assert.NotEmpty(t, model.gotImage)
}

func TestExtract_JPGAliasSentAsJPEG(t *testing.T) {
	model := &mockModel{text: "ok"}
	path := writeImage(t, "shot.jpg")

	_, err := New(model, time.Second).Extract(context.Background(), domain.SourceFile{Path: path, MIMEType: "image/jpg"})
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", model.gotMIME)
}

func TestExtract_Timeout(t *testing.T) {
	model := &mockModel{text: "late", delay: time.Second}
	path := writeImage(t, "slow.png")

	_, err := New(model, 20*time.Millisecond).Extract(context.Background(), domain.SourceFile{Path: path, MIMEType: "image/png"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRemoteExtraction))
	assert.Contains(t, domain.PublicMessage(err), "timed out")
}

func TestExtract_RemoteFailure(t *testing.T) {
	model := &mockModel{err: errors.New("502 bad gateway")}
	path := writeImage(t, "x.png")

	_, err := New(model, time.Second).Extract(context.Background(), domain.SourceFile{Path: path, MIMEType: "image/png"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRemoteExtraction))
	assert.Equal(t, "Vision model request failed", domain.PublicMessage(err))
}

func TestExtract_EmptyContent(t *testing.T) {
	model := &mockModel{text: "  \n "}
	path := writeImage(t, "blank.png")

	_, err := New(model, time.Second).Extract(context.Background(), domain.SourceFile{Path: path, MIMEType: "image/png"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRemoteExtraction))
	assert.Equal(t, "Vision model returned empty content", domain.PublicMessage(err))
}

func TestExtract_UnreadableFileIsLocalFailure(t *testing.T) {
	model := &mockModel{text: "never"}

	_, err := New(model, time.Second).Extract(context.Background(), domain.SourceFile{Path: "/missing.png", MIMEType: "image/png"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrExtraction))
	assert.False(t, errors.Is(err, domain.ErrRemoteExtraction))
	assert.Empty(t, model.gotInstr, "model must not be called")
}

func TestExtract_CustomInstruction(t *testing.T) {
	model := &mockModel{text: "ok"}
	path := writeImage(t, "board.png")
	file := domain.SourceFile{Path: path, MIMEType: "image/png"}

	_, err := New(model, time.Second).WithInstruction("List every task.").Extract(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "List every task.", model.gotInstr)

	_, err = New(model, time.Second).WithInstruction("   ").Extract(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, Instruction, model.gotInstr)
}
