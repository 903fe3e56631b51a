package controller

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/qrkit/internal/imagesource"
	"github.com/MeKo-Tech/qrkit/internal/platform"
	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/scan"
	"github.com/MeKo-Tech/qrkit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEncoder struct {
	inner Encoder
	calls atomic.Int32
}

func (e *countingEncoder) Encode(text string, size int) (*qrgen.Generated, error) {
	e.calls.Add(1)
	return e.inner.Encode(text, size)
}

type failingFiles struct{ platform.OSFiles }

func (failingFiles) WriteFile(context.Context, string, []byte) error {
	return errors.New("disk full")
}

type fixture struct {
	ctrl      *Controller
	clipboard *platform.MemoryClipboard
	notifier  *platform.RecordingNotifier
	encoder   *countingEncoder
}

func newFixture(t *testing.T, dialogs platform.Dialogs, files platform.FileIO) *fixture {
	t.Helper()
	if files == nil {
		files = platform.OSFiles{}
	}
	clip := &platform.MemoryClipboard{}
	notifier := &platform.RecordingNotifier{}
	encoder := &countingEncoder{inner: qrgen.NewGenerator()}
	ctrl := New(Deps{
		Normalizer:    imagesource.NewNormalizer(clip, files, platform.NewHTTPFetcher(0)),
		Decoder:       scan.NewDecoder(nil, true),
		Encoder:       encoder,
		Clipboard:     clip,
		TextClipboard: clip,
		Files:         files,
		Dialogs:       dialogs,
		Notifier:      notifier,
	}, Options{Size: 256})
	return &fixture{ctrl: ctrl, clipboard: clip, notifier: notifier, encoder: encoder}
}

func TestInitialState(t *testing.T) {
	f := newFixture(t, nil, nil)
	assert.Equal(t, scan.StatusInitial, f.ctrl.Status().Status)
	assert.Equal(t, "not yet scanned", f.ctrl.Status().Message())
	assert.Nil(t, f.ctrl.Generated())
	assert.Empty(t, f.ctrl.PendingText())
}

func TestScanClipboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	out := f.ctrl.ScanClipboard(ctx)
	assert.Equal(t, scan.StatusNoImage, out.Status)
	assert.Equal(t, scan.MessageNoImage, f.ctrl.Status().Message())

	require.NoError(t, f.clipboard.WriteImage(ctx, testutil.MustQRPNG(t, "from clipboard", 200)))
	out = f.ctrl.ScanClipboard(ctx)
	assert.Equal(t, scan.StatusSuccess, out.Status)
	assert.Equal(t, "from clipboard", f.ctrl.Status().Text)

	require.NoError(t, f.clipboard.WriteImage(ctx, []byte("not an image")))
	out = f.ctrl.ScanClipboard(ctx)
	assert.Equal(t, scan.StatusSourceError, out.Status)
	assert.ErrorIs(t, out.Err, imagesource.ErrIoOrFormat)
}

func TestOpenFile(t *testing.T) {
	ctx := context.Background()
	path := testutil.WriteTempFile(t, "qr.png", testutil.MustQRPNG(t, "opened file", 200))

	f := newFixture(t, platform.PresetDialogs{OpenPath: path}, nil)
	out, ok := f.ctrl.OpenFile(ctx)
	require.True(t, ok)
	assert.Equal(t, scan.StatusSuccess, out.Status)
	assert.Equal(t, "opened file", out.Text)

	canceled := newFixture(t, platform.PresetDialogs{}, nil)
	out, ok = canceled.ctrl.OpenFile(ctx)
	assert.False(t, ok)
	assert.Equal(t, scan.StatusInitial, out.Status)
	assert.Equal(t, scan.StatusInitial, canceled.ctrl.Status().Status)

	missing := newFixture(t, platform.PresetDialogs{OpenPath: filepath.Join(t.TempDir(), "gone.png")}, nil)
	out, ok = missing.ctrl.OpenFile(ctx)
	assert.True(t, ok)
	assert.Equal(t, scan.StatusSourceError, out.Status)
}

func TestScanSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	events, cancel := f.ctrl.Subscribe()
	defer cancel()

	uri := imagesource.EncodeDataURI("image/png", testutil.MustQRPNG(t, "resolved elsewhere", 200))
	out := f.ctrl.ScanSource(ctx, imagesource.DroppedBase64(uri))
	assert.Equal(t, scan.StatusSuccess, out.Status)
	assert.Equal(t, "resolved elsewhere", f.ctrl.Status().Text)

	select {
	case ev := <-events:
		assert.Equal(t, EventScan, ev.Type)
		assert.Equal(t, "source", ev.Trigger)
	case <-time.After(time.Second):
		t.Fatal("no scan event")
	}
}

func TestOverlappingScansLastEventMatchesStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	events, cancel := f.ctrl.Subscribe()

	const scans = 8
	uris := make([]string, scans)
	for i := range uris {
		uris[i] = imagesource.EncodeDataURI("image/png", testutil.MustQRPNG(t, fmt.Sprintf("overlap %d", i), 160))
	}

	var wg sync.WaitGroup
	for _, uri := range uris {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.ctrl.ScanSource(ctx, imagesource.DroppedBase64(uri))
		}()
	}
	wg.Wait()
	cancel()

	var last Event
	n := 0
	for ev := range events {
		last = ev
		n++
	}
	require.Equal(t, scans, n)
	assert.Equal(t, f.ctrl.Status().Text, last.Status.Text)
}

func TestDrop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	t.Run("file", func(t *testing.T) {
		path := testutil.WriteTempFile(t, "drop.png", testutil.MustQRPNG(t, "dropped file", 200))
		out, err := f.ctrl.Drop(ctx, imagesource.NewFileDrop(path))
		require.NoError(t, err)
		assert.Equal(t, "dropped file", out.Text)
	})

	t.Run("data uri with symbol", func(t *testing.T) {
		uri := imagesource.EncodeDataURI("image/png", testutil.MustQRPNG(t, "inline", 200))
		out, err := f.ctrl.Drop(ctx, imagesource.NewURIDrop(uri))
		require.NoError(t, err)
		assert.Equal(t, scan.StatusSuccess, out.Status)
		assert.Equal(t, "inline", out.Text)
	})

	t.Run("data uri without symbol is no code", func(t *testing.T) {
		uri := imagesource.EncodeDataURI("image/png", testutil.MustBlankPNG(t, 120, 120))
		out, err := f.ctrl.Drop(ctx, imagesource.NewURIDrop(uri))
		require.NoError(t, err)
		assert.Equal(t, scan.StatusNoCode, out.Status)
		assert.Equal(t, "no QR code found", f.ctrl.Status().Message())
	})

	t.Run("remote link", func(t *testing.T) {
		png := testutil.MustQRPNG(t, "remote", 200)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(png)
		}))
		defer srv.Close()

		out, err := f.ctrl.Drop(ctx, imagesource.NewURIDrop(srv.URL+"/qr.png"))
		require.NoError(t, err)
		assert.Equal(t, "remote", out.Text)
	})

	t.Run("unreachable host is a network source error", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		out, err := f.ctrl.Drop(ctx, imagesource.NewURIDrop("http://"+addr+"/qr.png"))
		require.NoError(t, err)
		assert.Equal(t, scan.StatusSourceError, out.Status)
		assert.ErrorIs(t, out.Err, imagesource.ErrNetwork)
	})

	t.Run("unsupported payload leaves state", func(t *testing.T) {
		before := f.ctrl.Status()
		out, err := f.ctrl.Drop(ctx, imagesource.DropPayload{Types: []string{"text/plain"}})
		assert.ErrorIs(t, err, ErrUnsupportedDrop)
		assert.Equal(t, before, out)
		assert.Equal(t, before, f.ctrl.Status())
	})
}

func TestHangingDropDoesNotBlockClipboardScan(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx := context.Background()
	f := newFixture(t, nil, nil)
	require.NoError(t, f.clipboard.WriteImage(ctx, testutil.MustQRPNG(t, "still responsive", 200)))

	dropDone := make(chan scan.Outcome, 1)
	go func() {
		out, _ := f.ctrl.Drop(ctx, imagesource.NewURIDrop(srv.URL+"/slow.png"))
		dropDone <- out
	}()

	clipDone := make(chan scan.Outcome, 1)
	go func() { clipDone <- f.ctrl.ScanClipboard(ctx) }()

	select {
	case out := <-clipDone:
		assert.Equal(t, scan.StatusSuccess, out.Status)
		assert.Equal(t, "still responsive", f.ctrl.Status().Text)
	case <-time.After(10 * time.Second):
		t.Fatal("clipboard scan blocked behind pending drop")
	}

	select {
	case <-dropDone:
		t.Fatal("drop finished before the server answered")
	default:
	}

	close(release)
	select {
	case out := <-dropDone:
		assert.Equal(t, scan.StatusSourceError, out.Status)
		assert.ErrorIs(t, out.Err, imagesource.ErrNetwork)
	case <-time.After(10 * time.Second):
		t.Fatal("drop never completed")
	}
	// The drop finished last, so its outcome wins.
	assert.Equal(t, scan.StatusSourceError, f.ctrl.Status().Status)
}

func TestGenerateGating(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	_, err := f.ctrl.Generate(ctx)
	assert.ErrorIs(t, err, ErrNothingToGenerate)

	f.ctrl.SetText("")
	_, err = f.ctrl.Generate(ctx)
	assert.ErrorIs(t, err, ErrNothingToGenerate)

	f.ctrl.SetText("   ")
	_, err = f.ctrl.Generate(ctx)
	assert.ErrorIs(t, err, ErrNothingToGenerate)

	assert.Zero(t, f.encoder.calls.Load())
	assert.Nil(t, f.ctrl.Generated())
	assert.Empty(t, f.notifier.Notices())
}

func TestSetTextIgnoresEmpty(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.ctrl.SetText("keep me")
	f.ctrl.SetText("")
	assert.Equal(t, "keep me", f.ctrl.PendingText())
}

func TestGenerateTwiceKeepsOnlySecond(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	f.ctrl.SetText("first")
	first, err := f.ctrl.Generate(ctx)
	require.NoError(t, err)

	f.ctrl.SetText("second")
	second, err := f.ctrl.Generate(ctx)
	require.NoError(t, err)

	current := f.ctrl.Generated()
	require.NotNil(t, current)
	assert.Same(t, second, current)
	assert.Equal(t, "second", current.Text)
	assert.NotEqual(t, first.PNG, current.PNG)
	assert.Equal(t, 256, current.Canvas.Bounds().Dx())

	// The exportable image holds only the second text.
	px, err := imagesource.NewNormalizer(nil, nil, nil).Normalize(ctx,
		imagesource.DroppedBase64(imagesource.EncodeDataURI("image/png", current.PNG)))
	out := scan.NewDecoder(nil, true).Resolve(ctx, px, err)
	assert.Equal(t, "second", out.Text)
}

func TestGenerateFailureKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	f.ctrl.SetText("good")
	good, err := f.ctrl.Generate(ctx)
	require.NoError(t, err)

	tooLong := make([]byte, 5000)
	for i := range tooLong {
		tooLong[i] = 'a'
	}
	f.ctrl.SetText(string(tooLong))
	_, err = f.ctrl.Generate(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, qrgen.ErrCapacity)

	assert.Same(t, good, f.ctrl.Generated())
	notices := f.notifier.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, platform.LevelError, notices[0].Level)
}

func TestCopy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	assert.ErrorIs(t, f.ctrl.Copy(ctx), ErrNothingGenerated)
	assert.Empty(t, f.notifier.Notices())

	f.ctrl.SetText("copy me")
	g, err := f.ctrl.Generate(ctx)
	require.NoError(t, err)
	require.NoError(t, f.ctrl.Copy(ctx))

	img, err := f.clipboard.ReadImage(ctx)
	require.NoError(t, err)
	assert.Equal(t, g.PNG, img)
	notices := f.notifier.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, platform.LevelInfo, notices[0].Level)
}

func TestSave(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing generated", func(t *testing.T) {
		f := newFixture(t, platform.PresetDialogs{SavePath: t.TempDir()}, nil)
		_, err := f.ctrl.Save(ctx)
		assert.ErrorIs(t, err, ErrNothingGenerated)
		assert.Empty(t, f.notifier.Notices())
	})

	t.Run("default name in chosen directory", func(t *testing.T) {
		dir := t.TempDir()
		f := newFixture(t, platform.PresetDialogs{SavePath: dir}, nil)
		f.ctrl.SetText("save me")
		g, err := f.ctrl.Generate(ctx)
		require.NoError(t, err)

		path, err := f.ctrl.Save(ctx)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "qrcode.png"), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, g.PNG, data)
		require.Len(t, f.notifier.Notices(), 1)
	})

	t.Run("canceled", func(t *testing.T) {
		f := newFixture(t, platform.PresetDialogs{}, nil)
		f.ctrl.SetText("cancel")
		g, err := f.ctrl.Generate(ctx)
		require.NoError(t, err)

		_, err = f.ctrl.Save(ctx)
		assert.ErrorIs(t, err, ErrDialogCanceled)
		var pe *PersistError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, PersistDialogCanceled, pe.Kind)
		assert.Empty(t, f.notifier.Notices())
		assert.Same(t, g, f.ctrl.Generated())
	})

	t.Run("write failure", func(t *testing.T) {
		f := newFixture(t, platform.PresetDialogs{SavePath: "/tmp/out.png"}, failingFiles{})
		f.ctrl.SetText("fail")
		g, err := f.ctrl.Generate(ctx)
		require.NoError(t, err)

		_, err = f.ctrl.Save(ctx)
		var pe *PersistError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, PersistIoFailure, pe.Kind)
		assert.NotErrorIs(t, err, ErrDialogCanceled)

		notices := f.notifier.Notices()
		require.Len(t, notices, 1)
		assert.Equal(t, platform.LevelError, notices[0].Level)
		assert.Same(t, g, f.ctrl.Generated())
	})
}

func TestCopyResult(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	assert.ErrorIs(t, f.ctrl.CopyResult(ctx), ErrNoResult)

	uri := imagesource.EncodeDataURI("image/png", testutil.MustQRPNG(t, "copy text", 200))
	_, err := f.ctrl.Drop(ctx, imagesource.NewURIDrop(uri))
	require.NoError(t, err)

	require.NoError(t, f.ctrl.CopyResult(ctx))
	assert.Equal(t, "copy text", f.clipboard.Text())
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	events, unsubscribe := f.ctrl.Subscribe()
	defer unsubscribe()

	f.ctrl.SetText("events")
	_, err := f.ctrl.Generate(ctx)
	require.NoError(t, err)
	f.ctrl.ScanClipboard(ctx)

	var got []EventType
	for range 3 {
		select {
		case ev := <-events:
			got = append(got, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}
	assert.Equal(t, []EventType{EventText, EventGenerated, EventScan}, got)

	unsubscribe()
	unsubscribe()
	_, open := <-events
	assert.False(t, open)
}

func TestSubscribeSlowConsumerDoesNotBlock(t *testing.T) {
	f := newFixture(t, nil, nil)
	_, unsubscribe := f.ctrl.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := range subscriberBuffer * 3 {
			f.ctrl.SetText(string(rune('a' + i%26)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publishing blocked on a full subscriber")
	}
}

func TestPersistError(t *testing.T) {
	err := &PersistError{Kind: PersistIoFailure, Op: "save", Err: errors.New("denied")}
	assert.Equal(t, "save: io failure: denied", err.Error())
	assert.Equal(t, "save: dialog canceled", (&PersistError{Kind: PersistDialogCanceled, Op: "save"}).Error())
}

func TestSetSize(t *testing.T) {
	f := newFixture(t, nil, nil)
	assert.Equal(t, 256, f.ctrl.Size())

	for _, bad := range []int{0, -5, qrgen.MaxSize + 1, 40000} {
		err := f.ctrl.SetSize(bad)
		require.Error(t, err, "size %d", bad)
		assert.ErrorIs(t, err, qrgen.ErrInvalidInput)
	}
	assert.Equal(t, 256, f.ctrl.Size())

	require.NoError(t, f.ctrl.SetSize(128))
	f.ctrl.SetText("resized")
	g, err := f.ctrl.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 128, g.Canvas.Bounds().Dx())
	assert.Equal(t, 128, g.Size)
}
