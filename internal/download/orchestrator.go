package download

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/PyotrToheed/Pyotr-x-udemy/internal/config"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/course"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/decrypt"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/fileutil"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/license"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/logging"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/manifest"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/metadata"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/services"
)

// Portal is the slice of the metadata client the orchestrator uses.
type Portal interface {
	FreshVideoAsset(ctx context.Context, courseID, lectureID int64) (*metadata.FreshAsset, error)
	ArticleBody(ctx context.Context, courseID, lectureID int64) (string, error)
	FetchManifest(ctx context.Context, manifestURL string) (string, error)
	DownloadTo(ctx context.Context, fileURL, path string) error
}

// LicenseExchanger posts challenges to the license server.
type LicenseExchanger interface {
	Exchange(ctx context.Context, token string, challenge []byte) ([]byte, error)
}

// Decrypter materializes one protected lecture.
type Decrypter interface {
	Process(ctx context.Context, job decrypt.Job) error
}

// Counters aggregates per-lecture outcomes for the run summary.
type Counters struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Summary is the result of one orchestrator run.
type Summary struct {
	Counters
	Elapsed    time.Duration
	CapReached bool
}

// Options select which part of the curriculum a run covers.
type Options struct {
	// Chapters restricts the run to the listed chapter ordinals. Nil means
	// every chapter.
	Chapters course.ChapterFilter
	// Force bypasses the per-run lecture cap.
	Force bool
}

// Orchestrator drives a full course download, one lecture at a time.
type Orchestrator struct {
	cfg      *config.Config
	portal   Portal
	licenses LicenseExchanger
	device   *license.Device
	pipeline Decrypter
	logger   *slog.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	randMS func(minMS, maxMS int) time.Duration
}

// NewOrchestrator wires an orchestrator from its collaborators. device may
// be nil when no protected lecture is expected; protected lectures then
// fail individually with a device error.
func NewOrchestrator(cfg *config.Config, portal Portal, licenses LicenseExchanger, device *license.Device, pipeline Decrypter, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		portal:   portal,
		licenses: licenses,
		device:   device,
		pipeline: pipeline,
		logger:   logging.WithComponent(logger, "download"),
		sleep:    sleepContext,
		randMS: func(minMS, maxMS int) time.Duration {
			if maxMS <= minMS {
				return time.Duration(minMS) * time.Millisecond
			}
			return time.Duration(minMS+rand.IntN(maxMS-minMS)) * time.Millisecond
		},
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run walks the curriculum sequentially. Per-lecture failures are counted
// and logged, never fatal; only context cancellation stops the walk early
// with an error.
func (o *Orchestrator) Run(ctx context.Context, curriculum *course.Curriculum, opts Options) (*Summary, error) {
	started := time.Now()
	summary := &Summary{}
	courseDir := filepath.Join(o.cfg.Paths.OutputDir, fileutil.SanitizeName(curriculum.Course.Title))

	o.logger.Info("starting course download",
		logging.String("course", curriculum.Course.Title),
		logging.Int("lectures", curriculum.Lectures()),
		logging.Int("chapters", curriculum.Chapters()))

	chapterDir := ""
	// Lectures preceding the first chapter item belong to no ordinal and
	// are always in scope, filter or not.
	chapterActive := true
	processed := 0

walk:
	for _, item := range curriculum.Items {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = time.Since(started)
			o.logger.Info("run interrupted, partial outputs kept for resume")
			return summary, err
		}

		switch entry := item.(type) {
		case course.Chapter:
			chapterActive = opts.Chapters.Includes(entry.Index)
			chapterDir = fmt.Sprintf("%02d - %s", entry.Index, fileutil.SanitizeName(entry.Title))
			if !chapterActive {
				o.logger.Info("chapter excluded by filter", logging.Int("chapter", entry.Index), logging.String("title", entry.Title))
			}
		case course.Lecture:
			if !chapterActive {
				continue
			}
			processed++
			if !opts.Force && processed > o.cfg.Limits.RunLectureCap {
				summary.CapReached = true
				o.logger.Warn("per-run lecture cap reached, stopping",
					logging.Int("cap", o.cfg.Limits.RunLectureCap))
				break walk
			}

			outcome := o.processLecture(ctx, curriculum.Course, entry, filepath.Join(courseDir, chapterDir))
			switch outcome {
			case outcomeDownloaded:
				summary.Downloaded++
			case outcomeSkipped:
				summary.Skipped++
			case outcomeFailed:
				summary.Failed++
			}
			if outcome != outcomeSkipped {
				if err := o.pause(ctx, o.cfg.Delays.LectureMinMS, o.cfg.Delays.LectureMaxMS); err != nil {
					summary.Elapsed = time.Since(started)
					return summary, err
				}
			}
		}
	}

	summary.Elapsed = time.Since(started)
	o.logger.Info("run complete",
		logging.Int("downloaded", summary.Downloaded),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
		logging.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

type outcome int

const (
	outcomeDownloaded outcome = iota
	outcomeSkipped
	outcomeFailed
)

// processLecture resolves one lecture to completion: primary asset first,
// then captions and supplements. Errors never escape; they resolve to a
// Failed outcome with one logged status line.
func (o *Orchestrator) processLecture(ctx context.Context, info course.Info, lecture course.Lecture, dir string) outcome {
	base := fmt.Sprintf("%03d %s", lecture.Index, fileutil.SanitizeName(lecture.Title))
	result := o.primaryAsset(ctx, info, lecture, dir, base)

	// Captions and supplements are fetched regardless of the primary
	// outcome; each is independently resumable.
	o.fetchExtras(ctx, lecture, dir, base)
	return result
}

func (o *Orchestrator) primaryAsset(ctx context.Context, info course.Info, lecture course.Lecture, dir, base string) outcome {
	if lecture.Asset == nil {
		o.logger.Info("lecture has no primary asset, skipping", logging.Int("lecture", lecture.Index), logging.String("title", lecture.Title))
		return outcomeSkipped
	}

	switch lecture.Asset.Kind {
	case course.AssetVideo:
		return o.resolve(lecture, filepath.Join(dir, base+".mp4"), func(outputPath string) error {
			if lecture.Asset.Video.Protected() {
				return o.protectedVideo(ctx, info, lecture, outputPath)
			}
			return o.plainVideo(ctx, lecture, outputPath)
		})
	case course.AssetArticle:
		return o.resolve(lecture, filepath.Join(dir, base+".html"), func(outputPath string) error {
			return o.article(ctx, info, lecture, outputPath)
		})
	case course.AssetFile:
		// File assets ride along in the supplement fetch below; only the
		// placement as a primary asset is worth noting.
		o.logger.Info("lecture primary asset is a file, fetched with supplements",
			logging.Int("lecture", lecture.Index), logging.String("title", lecture.Title))
		return outcomeSkipped
	default:
		o.logger.Info("unsupported asset kind, skipping",
			logging.Int("lecture", lecture.Index),
			logging.String("title", lecture.Title),
			logging.String("kind", lecture.Asset.Kind.String()))
		return outcomeSkipped
	}
}

// resolve applies the resume rule, runs fetch, and turns the result into
// an outcome with its status line.
func (o *Orchestrator) resolve(lecture course.Lecture, outputPath string, fetch func(outputPath string) error) outcome {
	if fileutil.OutputComplete(outputPath, fileutil.MinOutputBytes) {
		o.logger.Info("already downloaded, skipping",
			logging.Int("lecture", lecture.Index), logging.String("title", lecture.Title))
		return outcomeSkipped
	}
	if err := fetch(outputPath); err != nil {
		o.logger.Error("lecture failed",
			logging.Int("lecture", lecture.Index),
			logging.String("title", lecture.Title),
			logging.String("cause", services.FailureTag(err)),
			logging.Error(err))
		return outcomeFailed
	}
	size := int64(0)
	if info, err := os.Stat(outputPath); err == nil {
		size = info.Size()
	}
	o.logger.Info("lecture downloaded",
		logging.Int("lecture", lecture.Index),
		logging.String("title", lecture.Title),
		logging.Int64("bytes", size))
	return outcomeDownloaded
}

// plainVideo downloads the best direct stream within the quality ceiling.
func (o *Orchestrator) plainVideo(ctx context.Context, lecture course.Lecture, outputPath string) error {
	source := selectStream(lecture.Asset.Video.StreamSources, o.cfg.Limits.MaxQuality)
	if source == nil {
		return services.Wrap(services.ErrTrackDownload, "download", "plain video", "no usable stream source", nil)
	}
	o.logger.Info("downloading direct stream",
		logging.Int("lecture", lecture.Index), logging.Int("quality", source.Quality))
	if err := o.portal.DownloadTo(ctx, source.URL, outputPath); err != nil {
		return services.Wrap(services.ErrTrackDownload, "download", "plain video", "stream download failed", err)
	}
	if !fileutil.OutputComplete(outputPath, fileutil.MinOutputBytes) {
		return services.Wrap(services.ErrTrackDownload, "download", "plain video", "output below completion threshold", nil)
	}
	return nil
}

// selectStream picks the highest quality within the ceiling, falling back
// to the lowest available rendition when everything exceeds it.
func selectStream(sources []course.StreamSource, maxQuality int) *course.StreamSource {
	var best, lowest *course.StreamSource
	for i := range sources {
		src := &sources[i]
		if src.URL == "" {
			continue
		}
		if lowest == nil || src.Quality < lowest.Quality {
			lowest = src
		}
		if src.Quality > maxQuality {
			continue
		}
		if best == nil || src.Quality > best.Quality {
			best = src
		}
	}
	if best != nil {
		return best
	}
	return lowest
}

// protectedVideo runs the full license workflow for one lecture. The
// listing token is never used; a fresh one is fetched here because tokens
// expire within minutes of issue.
func (o *Orchestrator) protectedVideo(ctx context.Context, info course.Info, lecture course.Lecture, outputPath string) error {
	fresh, err := o.portal.FreshVideoAsset(ctx, info.ID, lecture.ID)
	if err != nil {
		return services.Wrap(services.ErrManifestFetch, "download", "refresh lecture asset", "portal request failed", err)
	}
	if fresh.LicenseToken == "" {
		return services.Wrap(services.ErrLicenseTokenMissing, "download", "refresh lecture asset", "portal returned no license token", nil)
	}
	manifestURL := fresh.ManifestURL
	if manifestURL == "" {
		manifestURL = course.ManifestURL(lecture.Asset.Video.ProtectedSources)
	}
	if manifestURL == "" {
		return services.Wrap(services.ErrManifestFetch, "download", "refresh lecture asset", "no manifest URL for lecture", nil)
	}

	if err := o.pause(ctx, o.cfg.Delays.APIMinMS, o.cfg.Delays.APIMaxMS); err != nil {
		return err
	}
	text, err := o.portal.FetchManifest(ctx, manifestURL)
	if err != nil {
		return err
	}
	header, err := protectionHeader(manifest.Parse(text))
	if err != nil {
		return err
	}

	session, err := license.OpenSession(o.device)
	if err != nil {
		return err
	}
	defer session.Close()

	challenge, err := session.RequestChallenge(header)
	if err != nil {
		return err
	}
	if err := o.pause(ctx, o.cfg.Delays.APIMinMS, o.cfg.Delays.APIMaxMS); err != nil {
		return err
	}
	response, err := o.licenses.Exchange(ctx, fresh.LicenseToken, challenge)
	if err != nil {
		return err
	}
	if err := session.SubmitLicense(response); err != nil {
		return err
	}
	keys := session.ContentKeys()
	if len(keys) == 0 {
		return services.Wrap(services.ErrLicenseRejected, "download", "collect keys", "license carried no content keys", nil)
	}

	return o.pipeline.Process(ctx, decrypt.Job{
		ManifestURL: manifestURL,
		Keys:        keys,
		Title:       lecture.Title,
		OutputPath:  outputPath,
	})
}

const articleTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body>
<h1>%s</h1>
%s
</body>
</html>
`

// article writes the lecture body into a minimal standalone document,
// fetching the body when the export carried none.
func (o *Orchestrator) article(ctx context.Context, info course.Info, lecture course.Lecture, outputPath string) error {
	body := ""
	if lecture.Asset.Article != nil {
		body = lecture.Asset.Article.Body
	}
	if strings.TrimSpace(body) == "" {
		fetched, err := o.portal.ArticleBody(ctx, info.ID, lecture.ID)
		if err != nil {
			return fmt.Errorf("fetch article body: %w", err)
		}
		body = fetched
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	document := fmt.Sprintf(articleTemplate, lecture.Title, lecture.Title, body)
	return os.WriteFile(outputPath, []byte(document), 0o644)
}

// fetchExtras downloads captions and supplementary files. Each file is
// skipped when it already exists; individual failures are logged and do
// not affect the lecture outcome.
func (o *Orchestrator) fetchExtras(ctx context.Context, lecture course.Lecture, dir, base string) {
	if lecture.Asset != nil {
		for _, caption := range lecture.Asset.Captions {
			target := filepath.Join(dir, base+"."+caption.Locale+captionExt(caption.URL))
			o.fetchExtra(ctx, "caption", caption.URL, target)
		}
	}
	for _, supplement := range lecture.Supplements {
		name := fileutil.SanitizeName(supplement.Filename)
		if name == "" {
			continue
		}
		target := filepath.Join(dir, fmt.Sprintf("%03d %s", lecture.Index, name))
		o.fetchExtra(ctx, "supplement", supplement.URL, target)
	}
}

func (o *Orchestrator) fetchExtra(ctx context.Context, kind, fileURL, target string) {
	if fileURL == "" {
		return
	}
	if _, err := os.Stat(target); err == nil {
		return
	}
	if err := o.portal.DownloadTo(ctx, fileURL, target); err != nil {
		o.logger.Warn(kind+" download failed", logging.String("target", filepath.Base(target)), logging.Error(err))
	}
}

func captionExt(captionURL string) string {
	parsed, err := url.Parse(captionURL)
	if err != nil {
		return ".vtt"
	}
	if ext := path.Ext(parsed.Path); ext != "" {
		return ext
	}
	return ".vtt"
}

// protectionHeader picks the manifest's own header when present and
// synthesizes one from the first key id otherwise.
func protectionHeader(prot manifest.Protection) (string, error) {
	if len(prot.Headers) > 0 {
		return prot.Headers[0], nil
	}
	if len(prot.KeyIDs) > 0 {
		return manifest.SynthesizeHeader(prot.KeyIDs[0])
	}
	return "", services.Wrap(services.ErrNoProtectionMetadata, "download", "extract protection", "manifest has neither header nor key id", nil)
}

func (o *Orchestrator) pause(ctx context.Context, minMS, maxMS int) error {
	if maxMS <= 0 {
		return nil
	}
	return o.sleep(ctx, o.randMS(minMS, maxMS))
}
