package course

import "testing"

const sampleExport = `{
  "course": {"id": 4221, "title": "Systems Programming"},
  "items": [
    {"_class": "chapter", "object_index": 1, "title": "Getting Started"},
    {"_class": "lecture", "id": 101, "object_index": 1, "title": "Welcome",
     "asset": {"asset_type": "Video",
       "stream_urls": {"Video": [
         {"label": "720", "file": "https://cdn.example.com/720.mp4"},
         {"label": "auto", "file": "https://cdn.example.com/auto.m3u8"},
         {"label": "1080", "file": "https://cdn.example.com/1080.mp4"}
       ]},
       "captions": [{"locale_id": "en_US", "url": "https://cdn.example.com/en.vtt"}]
     },
     "supplementary_assets": [
       {"filename": "slides.pdf", "download_urls": {"File": [{"file": "https://cdn.example.com/slides.pdf"}]}}
     ]},
    {"_class": "lecture", "id": 102, "object_index": 2, "title": "DRM Lecture",
     "asset": {"asset_type": "Video", "media_license_token": "tok-from-listing",
       "media_sources": [
         {"type": "application/x-mpegURL", "src": "https://cdn.example.com/stream.m3u8"},
         {"type": "application/dash+xml", "src": "https://cdn.example.com/stream.mpd"}
       ]}},
    {"_class": "quiz", "id": 900, "title": "Checkpoint"},
    {"_class": "lecture", "id": 103, "object_index": 3, "title": "Notes",
     "asset": {"asset_type": "Article", "body": "<p>hello</p>"}}
  ]
}`

func TestParseExportResolvesVariants(t *testing.T) {
	curriculum, err := ParseExport([]byte(sampleExport))
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if curriculum.Course.ID != 4221 {
		t.Fatalf("unexpected course id: %d", curriculum.Course.ID)
	}
	if got := len(curriculum.Items); got != 4 {
		t.Fatalf("expected quiz to be dropped, got %d items", got)
	}
	if curriculum.Chapters() != 1 || curriculum.Lectures() != 3 {
		t.Fatalf("unexpected counts: %d chapters, %d lectures", curriculum.Chapters(), curriculum.Lectures())
	}

	plain, ok := curriculum.Items[1].(Lecture)
	if !ok {
		t.Fatalf("expected lecture at index 1, got %T", curriculum.Items[1])
	}
	if plain.Asset.Kind != AssetVideo {
		t.Fatalf("unexpected asset kind: %v", plain.Asset.Kind)
	}
	if got := len(plain.Asset.Video.StreamSources); got != 2 {
		t.Fatalf("non-numeric renditions must be dropped, got %d sources", got)
	}
	if plain.Asset.Video.Protected() {
		t.Fatal("plain-source video must not be protected")
	}
	if len(plain.Supplements) != 1 || plain.Supplements[0].Filename != "slides.pdf" {
		t.Fatalf("unexpected supplements: %+v", plain.Supplements)
	}
	if len(plain.Asset.Captions) != 1 || plain.Asset.Captions[0].Locale != "en_US" {
		t.Fatalf("unexpected captions: %+v", plain.Asset.Captions)
	}

	protected := curriculum.Items[2].(Lecture)
	if !protected.Asset.Video.Protected() {
		t.Fatal("media-source video must be protected")
	}
	if protected.Asset.Video.ListingToken != "tok-from-listing" {
		t.Fatalf("listing token not carried: %q", protected.Asset.Video.ListingToken)
	}
	if got := ManifestURL(protected.Asset.Video.ProtectedSources); got != "https://cdn.example.com/stream.mpd" {
		t.Fatalf("expected DASH source preference, got %q", got)
	}

	article := curriculum.Items[3].(Lecture)
	if article.Asset.Kind != AssetArticle || article.Asset.Article.Body != "<p>hello</p>" {
		t.Fatalf("unexpected article asset: %+v", article.Asset)
	}
}

func TestParseExportRejectsMissingCourse(t *testing.T) {
	if _, err := ParseExport([]byte(`{"items": []}`)); err == nil {
		t.Fatal("expected error for export without course id")
	}
}

func TestManifestURLFallsBackToFirstSource(t *testing.T) {
	sources := []ProtectedSource{
		{MIMEType: "application/x-mpegURL", URL: "https://cdn.example.com/a.m3u8"},
		{MIMEType: "application/x-mpegURL", URL: "https://cdn.example.com/b.m3u8"},
	}
	if got := ManifestURL(sources); got != "https://cdn.example.com/a.m3u8" {
		t.Fatalf("unexpected fallback url: %q", got)
	}
	if got := ManifestURL(nil); got != "" {
		t.Fatalf("expected empty url for no sources, got %q", got)
	}
}
