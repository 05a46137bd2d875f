package decrypt

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/PyotrToheed/Pyotr-x-udemy/internal/config"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/fileutil"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/license"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/logging"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/services"
)

// Job is one protected lecture to materialize.
type Job struct {
	ManifestURL string
	Keys        []license.ContentKey
	Title       string
	OutputPath  string
}

// Pipeline drives the download, decrypt, and remux tools.
type Pipeline struct {
	ytdlp    string
	ffmpeg   string
	packager string
	workDir  string
	executor Executor
	lookPath func(string) (string, error)
	logger   *slog.Logger
}

// NewPipeline builds a pipeline from the configured tool names.
func NewPipeline(cfg *config.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		ytdlp:    cfg.Tools.YtDlp,
		ffmpeg:   cfg.Tools.FFmpeg,
		packager: cfg.Tools.Packager,
		workDir:  cfg.Paths.WorkDir,
		executor: commandExecutor{},
		lookPath: exec.LookPath,
		logger:   logging.WithComponent(logger, "decrypt"),
	}
}

// WithExecutor substitutes the tool runner. Tests use this to fabricate
// tool side effects without running anything.
func (p *Pipeline) WithExecutor(executor Executor) *Pipeline {
	p.executor = executor
	return p
}

// WithLookPath substitutes binary resolution for tests.
func (p *Pipeline) WithLookPath(lookPath func(string) (string, error)) *Pipeline {
	p.lookPath = lookPath
	return p
}

// Process downloads the elementary streams for job, decrypts them, and
// remuxes into job.OutputPath. The job fails only if the output
// post-condition is unmet after both the primary pass and the fallback.
func (p *Pipeline) Process(ctx context.Context, job Job) error {
	if len(job.Keys) == 0 {
		return services.Wrap(services.ErrDecryption, "decrypt", "process", "no content keys for job", nil)
	}

	tempDir := filepath.Join(p.workDir, "udl-"+uuid.NewString())
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return services.Wrap(services.ErrTrackDownload, "decrypt", "create work dir", tempDir, err)
	}
	defer os.RemoveAll(tempDir)

	videoPath, audioPath, err := p.downloadTracks(ctx, job.ManifestURL, tempDir)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0o755); err != nil {
		return services.Wrap(services.ErrDecryption, "decrypt", "create output dir", filepath.Dir(job.OutputPath), err)
	}

	key := job.Keys[0]
	if p.primaryDecrypt(ctx, key, videoPath, audioPath, job.Title, job.OutputPath) {
		return nil
	}
	p.logger.Warn("primary decrypt pass produced no usable output, trying packager fallback",
		logging.String("output", job.OutputPath))

	return p.fallbackDecrypt(ctx, key, videoPath, audioPath, job.Title, job.OutputPath, tempDir)
}

// downloadTracks fetches the video and audio elementary streams into dir.
// Success is judged by track presence, not downloader exit status. The
// video track is mandatory; a lecture can legitimately carry no separate
// audio stream.
func (p *Pipeline) downloadTracks(ctx context.Context, manifestURL, dir string) (video, audio string, err error) {
	p.run(ctx, p.ytdlp, []string{
		"-f", "bestvideo",
		"--allow-unplayable-formats",
		"--no-warnings",
		"--no-check-certificates",
		"-o", filepath.Join(dir, "video.%(ext)s"),
		manifestURL,
	})
	video = p.findTrack(dir, "video.*")
	if video == "" {
		return "", "", services.Wrap(services.ErrTrackDownload, "decrypt", "download video track", "no video stream produced", nil)
	}

	p.run(ctx, p.ytdlp, []string{
		"-f", "bestaudio",
		"--allow-unplayable-formats",
		"--no-warnings",
		"--no-check-certificates",
		"-o", filepath.Join(dir, "audio.%(ext)s"),
		manifestURL,
	})
	audio = p.findTrack(dir, "audio.*")
	if audio == "" {
		p.logger.Warn("no audio stream produced, continuing with video only")
	}
	return video, audio, nil
}

func (p *Pipeline) findTrack(dir, pattern string) string {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}

// primaryDecrypt decrypts and remuxes in one pass. Success means the
// output post-condition holds, nothing else; the tool's exit status is
// logged and otherwise ignored.
func (p *Pipeline) primaryDecrypt(ctx context.Context, key license.ContentKey, video, audio, title, output string) bool {
	args := []string{"-y", "-decryption_key", key.Key, "-i", video}
	if audio != "" {
		args = append(args, "-decryption_key", key.Key, "-i", audio)
	}
	args = append(args,
		"-c", "copy",
		"-movflags", "+faststart",
		"-metadata", "title="+title,
		output,
	)
	p.run(ctx, p.ffmpeg, args)
	return fileutil.OutputComplete(output, fileutil.MinOutputBytes)
}

// fallbackDecrypt decrypts each track with the standalone packager, then
// remuxes the decrypted tracks copy-only. Only the first content key is
// applied per track; multi-key streams are out of reach of this path.
func (p *Pipeline) fallbackDecrypt(ctx context.Context, key license.ContentKey, video, audio, title, output, tempDir string) error {
	if _, err := p.lookPath(p.packager); err != nil {
		return services.Wrap(services.ErrDecryption, "decrypt", "fallback", fmt.Sprintf("primary pass failed and %s is not installed", p.packager), nil)
	}

	decryptedVideo := filepath.Join(tempDir, "video_dec.mp4")
	p.packagerDecrypt(ctx, key, video, "video", decryptedVideo)
	if _, err := os.Stat(decryptedVideo); err != nil {
		return services.Wrap(services.ErrDecryption, "decrypt", "fallback video", "packager produced no decrypted video", nil)
	}

	decryptedAudio := ""
	if audio != "" {
		decryptedAudio = filepath.Join(tempDir, "audio_dec.m4a")
		p.packagerDecrypt(ctx, key, audio, "audio", decryptedAudio)
		if _, err := os.Stat(decryptedAudio); err != nil {
			p.logger.Warn("packager produced no decrypted audio, remuxing video only")
			decryptedAudio = ""
		}
	}

	args := []string{"-y", "-i", decryptedVideo}
	if decryptedAudio != "" {
		args = append(args, "-i", decryptedAudio)
	}
	args = append(args,
		"-c", "copy",
		"-movflags", "+faststart",
		"-metadata", "title="+title,
		output,
	)
	p.run(ctx, p.ffmpeg, args)
	if !fileutil.OutputComplete(output, fileutil.MinOutputBytes) {
		return services.Wrap(services.ErrDecryption, "decrypt", "fallback", fmt.Sprintf("output %s below completion threshold", output), nil)
	}
	return nil
}

func (p *Pipeline) packagerDecrypt(ctx context.Context, key license.ContentKey, input, stream, output string) {
	p.run(ctx, p.packager, []string{
		fmt.Sprintf("input=%s,stream=%s,output=%s", input, stream, output),
		"--enable_raw_key_decryption",
		"--keys", fmt.Sprintf("key_id=%s:key=%s", key.ID, key.Key),
	})
}

// run executes a tool and logs a non-zero exit without failing on it;
// every stage decides success by its own output post-condition.
func (p *Pipeline) run(ctx context.Context, binary string, args []string) {
	p.logger.Debug("running tool", logging.String("binary", binary), logging.Any("args", args))
	err := p.executor.Run(ctx, binary, args, func(line string) {
		p.logger.Debug(line, logging.String("tool", filepath.Base(binary)))
	})
	if err != nil {
		p.logger.Warn("tool exited with error, judging stage by its output",
			logging.String("binary", binary), logging.Error(err))
	}
}
