package server

import (
	"context"
	"testing"

	"github.com/MeKo-Tech/qrkit/internal/controller"
	"github.com/MeKo-Tech/qrkit/internal/imagesource"
	"github.com/MeKo-Tech/qrkit/internal/platform"
	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/scan"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server    *Server
	ctrl      *controller.Controller
	clipboard *platform.MemoryClipboard
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	clip := &platform.MemoryClipboard{}
	ctrl := controller.New(controller.Deps{
		Normalizer:    imagesource.NewNormalizer(clip, platform.OSFiles{}, platform.NewHTTPFetcher(0)),
		Decoder:       scan.NewDecoder(nil, true),
		Encoder:       qrgen.NewGenerator(),
		Clipboard:     clip,
		TextClipboard: clip,
		Notifier:      &platform.RecordingNotifier{},
	}, controller.Options{Size: 200})
	return &testEnv{server: NewServer(ctrl, cfg), ctrl: ctrl, clipboard: clip}
}

func (e *testEnv) putClipboardImage(t *testing.T, png []byte) {
	t.Helper()
	require.NoError(t, e.clipboard.WriteImage(context.Background(), png))
}
