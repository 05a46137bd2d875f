package course

// Info identifies the course a curriculum belongs to.
type Info struct {
	ID    int64
	Title string
}

// Item is a closed variant over the two curriculum entry kinds. Exactly one
// of the concrete types below satisfies it.
type Item interface {
	itemKind() string
}

// Chapter groups the lectures that follow it in curriculum order.
type Chapter struct {
	Index int
	Title string
}

func (Chapter) itemKind() string { return "chapter" }

// Lecture is a single curriculum leaf with at most one primary asset.
type Lecture struct {
	Index       int
	ID          int64
	Title       string
	Asset       *Asset
	Supplements []Supplement
}

func (Lecture) itemKind() string { return "lecture" }

// AssetKind enumerates the closed set of primary asset kinds.
type AssetKind int

const (
	AssetOther AssetKind = iota
	AssetVideo
	AssetArticle
	AssetEBook
	AssetFile
)

func (k AssetKind) String() string {
	switch k {
	case AssetVideo:
		return "Video"
	case AssetArticle:
		return "Article"
	case AssetEBook:
		return "E-Book"
	case AssetFile:
		return "File"
	default:
		return "Other"
	}
}

// Asset is the primary asset of a lecture. Only the field matching Kind is
// populated.
type Asset struct {
	Kind     AssetKind
	Video    *VideoAsset
	Article  *ArticleAsset
	Captions []Caption
}

// VideoAsset carries either plain stream sources or protected media
// sources. ListingToken is the license token captured at export time; it
// expires within minutes of issue and exists only so callers can detect that
// the lecture is protected — a fresh token must be fetched immediately
// before use.
type VideoAsset struct {
	StreamSources    []StreamSource
	ProtectedSources []ProtectedSource
	ListingToken     string
}

// Protected reports whether the video requires the license workflow.
func (v *VideoAsset) Protected() bool {
	return v != nil && len(v.ProtectedSources) > 0 && len(v.StreamSources) == 0
}

// StreamSource is a directly downloadable rendition of a non-protected
// video.
type StreamSource struct {
	Quality int
	URL     string
}

// ProtectedSource points at an adaptive manifest for a protection-wrapped
// video.
type ProtectedSource struct {
	MIMEType string
	URL      string
}

// ManifestURL returns the DASH manifest URL, preferring an explicit DASH
// source and falling back to the first source with a URL.
func ManifestURL(sources []ProtectedSource) string {
	for _, src := range sources {
		if src.MIMEType == "application/dash+xml" && src.URL != "" {
			return src.URL
		}
	}
	for _, src := range sources {
		if src.URL != "" {
			return src.URL
		}
	}
	return ""
}

// ArticleAsset is the rich-text body of a text lecture. Body may be empty in
// the export; the orchestrator then fetches it per lecture.
type ArticleAsset struct {
	Body string
}

// Caption is a subtitle track attached to an asset.
type Caption struct {
	Locale string
	URL    string
}

// Supplement is a lecture-level extra file.
type Supplement struct {
	Filename string
	URL      string
}

// Curriculum is the ordered item sequence for one course.
type Curriculum struct {
	Course Info
	Items  []Item
}

// Lectures counts lecture items.
func (c *Curriculum) Lectures() int {
	count := 0
	for _, item := range c.Items {
		if _, ok := item.(Lecture); ok {
			count++
		}
	}
	return count
}

// Chapters counts chapter items.
func (c *Curriculum) Chapters() int {
	count := 0
	for _, item := range c.Items {
		if _, ok := item.(Chapter); ok {
			count++
		}
	}
	return count
}
