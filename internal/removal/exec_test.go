package removal

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFakeTool creates an executable shell script standing in for the
// external background-removal binary.
func writeFakeTool(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tool scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-rembg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestExecAdapter_Remove(t *testing.T) {
	tool := writeFakeTool(t, `
echo "progress 0.25" >&2
echo "progress 0.75" >&2
cat
`)
	a := NewExecAdapter(tool, nil, zerolog.Nop())

	var seen []float64
	out, err := a.Remove(context.Background(), []byte("image-bytes"), Options{}, func(p float64) {
		seen = append(seen, p)
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), out)
	assert.Equal(t, []float64{0.25, 0.75}, seen)
}

func TestExecAdapter_OptionFlags(t *testing.T) {
	// The fake tool echoes its arguments back so the flag wiring is visible.
	tool := writeFakeTool(t, `printf '%s ' "$@"`)
	a := NewExecAdapter(tool, []string{"--base"}, zerolog.Nop())

	out, err := a.Remove(context.Background(), nil, Options{
		Model:         "medium",
		OutputFormat:  "png",
		OutputQuality: 80,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "--base --model medium --format png --quality 80 ", string(out))
}

func TestExecAdapter_OversizedStderrLine(t *testing.T) {
	// A tool dumping one huge diagnostic line must not wedge the pipe:
	// stderr is drained to EOF so Wait can return once the tool exits.
	tool := writeFakeTool(t, `
head -c 200000 /dev/zero | tr '\0' x >&2
echo >&2
cat
`)
	a := NewExecAdapter(tool, nil, zerolog.Nop())

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := a.Remove(context.Background(), []byte("image-bytes"), Options{}, nil)
		done <- result{out, err}
	}()

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, []byte("image-bytes"), res.out)
	case <-time.After(5 * time.Second):
		t.Fatal("Remove did not return after the tool exited")
	}
}

func TestExecAdapter_ToolFailure(t *testing.T) {
	tool := writeFakeTool(t, `
echo "model file missing" >&2
exit 3
`)
	a := NewExecAdapter(tool, nil, zerolog.Nop())

	_, err := a.Remove(context.Background(), []byte("x"), Options{}, nil)
	assert.Error(t, err)
}

func TestExecAdapter_NoTool(t *testing.T) {
	a := NewExecAdapter("", nil, zerolog.Nop())
	_, err := a.Remove(context.Background(), nil, Options{}, nil)
	assert.ErrorIs(t, err, ErrNoTool)
}

func TestExecAdapter_ContextCancellation(t *testing.T) {
	tool := writeFakeTool(t, `sleep 10`)
	a := NewExecAdapter(tool, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Remove(ctx, []byte("x"), Options{}, nil)
	assert.Error(t, err)
}

func TestFunc_ImplementsAdapter(t *testing.T) {
	var a Adapter = Func(func(_ context.Context, image []byte, _ Options, _ ProgressFunc) ([]byte, error) {
		return image, nil
	})
	out, err := a.Remove(context.Background(), []byte("ok"), Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), out)
}
