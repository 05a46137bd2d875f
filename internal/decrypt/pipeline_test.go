package decrypt

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/PyotrToheed/Pyotr-x-udemy/internal/config"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/license"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/services"
)

// fakeExecutor fabricates tool side effects: writing downloaded tracks,
// decrypted intermediates, and remuxed outputs.
type fakeExecutor struct {
	t     *testing.T
	calls [][]string

	videoBytes       int
	videoErr         error
	audioBytes       int
	audioErr         error
	decryptOutBytes  int
	ffmpegErr        error
	remuxOutBytes    int
	packagerOutBytes int
}

func (f *fakeExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	f.calls = append(f.calls, append([]string{binary}, args...))
	switch binary {
	case "yt-dlp":
		template := args[slices.Index(args, "-o")+1]
		if strings.Contains(template, "video.") {
			if f.videoBytes > 0 {
				writeBytes(f.t, strings.Replace(template, "%(ext)s", "mp4", 1), f.videoBytes)
			}
			return f.videoErr
		}
		if f.audioBytes > 0 {
			writeBytes(f.t, strings.Replace(template, "%(ext)s", "m4a", 1), f.audioBytes)
		}
		return f.audioErr
	case "ffmpeg":
		output := args[len(args)-1]
		if slices.Contains(args, "-decryption_key") {
			writeBytes(f.t, output, f.decryptOutBytes)
			return f.ffmpegErr
		}
		writeBytes(f.t, output, f.remuxOutBytes)
		return nil
	case "packager":
		streams := args[0]
		output := streams[strings.Index(streams, "output=")+len("output="):]
		writeBytes(f.t, output, f.packagerOutBytes)
		return nil
	default:
		f.t.Fatalf("unexpected binary %q", binary)
		return nil
	}
}

func writeBytes(t *testing.T, path string, n int) {
	t.Helper()
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, n), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func (f *fakeExecutor) invoked(binary string) int {
	count := 0
	for _, call := range f.calls {
		if call[0] == binary {
			count++
		}
	}
	return count
}

func testPipeline(t *testing.T, executor *fakeExecutor, packagerInstalled bool) *Pipeline {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.WorkDir = t.TempDir()
	pipeline := NewPipeline(&cfg, nil).WithExecutor(executor)
	pipeline.WithLookPath(func(binary string) (string, error) {
		if packagerInstalled {
			return "/usr/bin/" + binary, nil
		}
		return "", errors.New("not found")
	})
	return pipeline
}

func testJob(t *testing.T) Job {
	t.Helper()
	return Job{
		ManifestURL: "https://cdn.example/stream.mpd",
		Keys:        []license.ContentKey{{ID: "00112233445566778899aabbccddeeff", Key: "ffeeddccbbaa99887766554433221100"}},
		Title:       "Intro",
		OutputPath:  filepath.Join(t.TempDir(), "001 Intro.mp4"),
	}
}

func TestProcessPrimaryPath(t *testing.T) {
	executor := &fakeExecutor{t: t, videoBytes: 4096, audioBytes: 4096, decryptOutBytes: 4096}
	pipeline := testPipeline(t, executor, true)
	job := testJob(t)

	if err := pipeline.Process(context.Background(), job); err != nil {
		t.Fatalf("process: %v", err)
	}
	info, err := os.Stat(job.OutputPath)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() < 1000 {
		t.Fatalf("output below threshold: %d", info.Size())
	}
	if executor.invoked("packager") != 0 {
		t.Fatal("fallback must not run after a complete primary pass")
	}

	var decryptArgs []string
	for _, call := range executor.calls {
		if call[0] == "ffmpeg" {
			decryptArgs = call[1:]
		}
	}
	if !slices.Contains(decryptArgs, "-decryption_key") {
		t.Fatalf("decrypt args missing key flag: %v", decryptArgs)
	}
	if !slices.Contains(decryptArgs, "title=Intro") {
		t.Fatalf("decrypt args missing title metadata: %v", decryptArgs)
	}
}

func TestProcessMissingVideoTrack(t *testing.T) {
	executor := &fakeExecutor{t: t, videoBytes: 0}
	pipeline := testPipeline(t, executor, true)

	err := pipeline.Process(context.Background(), testJob(t))
	if !errors.Is(err, services.ErrTrackDownload) {
		t.Fatalf("expected ErrTrackDownload, got %v", err)
	}
	if executor.invoked("ffmpeg") != 0 {
		t.Fatal("decrypt must not run without a video track")
	}
}

func TestProcessAudioFailureTolerated(t *testing.T) {
	executor := &fakeExecutor{t: t, videoBytes: 4096, audioErr: errors.New("no audio formats"), decryptOutBytes: 4096}
	pipeline := testPipeline(t, executor, true)
	job := testJob(t)

	if err := pipeline.Process(context.Background(), job); err != nil {
		t.Fatalf("process without audio: %v", err)
	}

	for _, call := range executor.calls {
		if call[0] != "ffmpeg" {
			continue
		}
		inputs := 0
		for _, arg := range call[1:] {
			if arg == "-i" {
				inputs++
			}
		}
		if inputs != 1 {
			t.Fatalf("expected single input without audio, got %d in %v", inputs, call)
		}
	}
}

func TestProcessFallbackUnavailable(t *testing.T) {
	executor := &fakeExecutor{t: t, videoBytes: 4096, audioBytes: 4096, decryptOutBytes: 10}
	pipeline := testPipeline(t, executor, false)

	err := pipeline.Process(context.Background(), testJob(t))
	if !errors.Is(err, services.ErrDecryption) {
		t.Fatalf("expected ErrDecryption, got %v", err)
	}
	if executor.invoked("packager") != 0 {
		t.Fatal("packager must not be attempted when not installed")
	}
}

func TestProcessFallbackPath(t *testing.T) {
	executor := &fakeExecutor{
		t:                t,
		videoBytes:       4096,
		audioBytes:       4096,
		decryptOutBytes:  10,
		packagerOutBytes: 4096,
		remuxOutBytes:    4096,
	}
	pipeline := testPipeline(t, executor, true)
	job := testJob(t)

	if err := pipeline.Process(context.Background(), job); err != nil {
		t.Fatalf("fallback process: %v", err)
	}
	if got := executor.invoked("packager"); got != 2 {
		t.Fatalf("expected packager per track, got %d calls", got)
	}
	info, err := os.Stat(job.OutputPath)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() < 1000 {
		t.Fatalf("output below threshold: %d", info.Size())
	}

	for _, call := range executor.calls {
		if call[0] != "packager" {
			continue
		}
		if !slices.Contains(call[1:], "--enable_raw_key_decryption") {
			t.Fatalf("packager args missing raw key flag: %v", call)
		}
	}
}

func TestProcessJudgesPrimaryByOutputNotExitStatus(t *testing.T) {
	executor := &fakeExecutor{t: t, videoBytes: 4096, audioBytes: 4096, decryptOutBytes: 4096, ffmpegErr: errors.New("exit status 1")}
	pipeline := testPipeline(t, executor, false)
	job := testJob(t)

	if err := pipeline.Process(context.Background(), job); err != nil {
		t.Fatalf("complete output must win over a non-zero exit: %v", err)
	}
	info, err := os.Stat(job.OutputPath)
	if err != nil {
		t.Fatalf("output must survive a non-zero decrypt exit: %v", err)
	}
	if info.Size() < 1000 {
		t.Fatalf("output below threshold: %d", info.Size())
	}
	if executor.invoked("packager") != 0 {
		t.Fatal("fallback must not run when the primary output is complete")
	}
}

func TestProcessJudgesTracksByPresenceNotExitStatus(t *testing.T) {
	executor := &fakeExecutor{t: t, videoBytes: 4096, videoErr: errors.New("exit status 1"), decryptOutBytes: 4096}
	pipeline := testPipeline(t, executor, false)
	job := testJob(t)

	if err := pipeline.Process(context.Background(), job); err != nil {
		t.Fatalf("present video track must win over a non-zero downloader exit: %v", err)
	}
	if _, err := os.Stat(job.OutputPath); err != nil {
		t.Fatalf("stat output: %v", err)
	}
}

func TestProcessNoKeys(t *testing.T) {
	executor := &fakeExecutor{t: t}
	pipeline := testPipeline(t, executor, true)
	job := testJob(t)
	job.Keys = nil

	if err := pipeline.Process(context.Background(), job); !errors.Is(err, services.ErrDecryption) {
		t.Fatalf("expected ErrDecryption, got %v", err)
	}
	if len(executor.calls) != 0 {
		t.Fatalf("no tools should run without keys, got %v", executor.calls)
	}
}
