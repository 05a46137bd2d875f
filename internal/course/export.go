package course

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// export mirrors the loosely-typed JSON the metadata collaborator writes.
// Field names follow the portal API payloads it passes through.
type export struct {
	Course struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	} `json:"course"`
	Items []exportItem `json:"items"`
}

type exportItem struct {
	Class               string            `json:"_class"`
	ID                  int64             `json:"id"`
	ObjectIndex         int               `json:"object_index"`
	Title               string            `json:"title"`
	Asset               *exportAsset      `json:"asset"`
	SupplementaryAssets []exportSupplement `json:"supplementary_assets"`
}

type exportAsset struct {
	AssetType         string `json:"asset_type"`
	Body              string `json:"body"`
	MediaLicenseToken string `json:"media_license_token"`
	StreamURLs        *struct {
		Video []exportStream `json:"Video"`
	} `json:"stream_urls"`
	MediaSources []exportMediaSource `json:"media_sources"`
	Captions     []exportCaption     `json:"captions"`
}

type exportStream struct {
	Label string `json:"label"`
	File  string `json:"file"`
	Src   string `json:"src"`
}

type exportMediaSource struct {
	Type string `json:"type"`
	Src  string `json:"src"`
}

type exportCaption struct {
	LocaleID string `json:"locale_id"`
	URL      string `json:"url"`
}

type exportSupplement struct {
	Title        string `json:"title"`
	Filename     string `json:"filename"`
	DownloadURLs *struct {
		File []exportStream `json:"File"`
	} `json:"download_urls"`
}

// LoadExport reads a curriculum export file and resolves it into the typed
// model.
func LoadExport(path string) (*Curriculum, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read curriculum export: %w", err)
	}
	return ParseExport(data)
}

// ParseExport resolves export JSON into a Curriculum. Unknown item classes
// (quizzes, practice tests) are dropped; the closed asset variants are
// resolved here once.
func ParseExport(data []byte) (*Curriculum, error) {
	var doc export
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse curriculum export: %w", err)
	}
	if doc.Course.ID == 0 {
		return nil, fmt.Errorf("curriculum export missing course id")
	}

	curriculum := &Curriculum{
		Course: Info{ID: doc.Course.ID, Title: strings.TrimSpace(doc.Course.Title)},
	}

	chapterOrdinal := 0
	for _, raw := range doc.Items {
		switch raw.Class {
		case "chapter":
			chapterOrdinal++
			index := raw.ObjectIndex
			if index == 0 {
				index = chapterOrdinal
			}
			curriculum.Items = append(curriculum.Items, Chapter{
				Index: index,
				Title: titleOrUntitled(raw.Title),
			})
		case "lecture":
			curriculum.Items = append(curriculum.Items, Lecture{
				Index:       raw.ObjectIndex,
				ID:          raw.ID,
				Title:       titleOrUntitled(raw.Title),
				Asset:       resolveAsset(raw.Asset),
				Supplements: resolveSupplements(raw.SupplementaryAssets),
			})
		}
	}
	return curriculum, nil
}

func titleOrUntitled(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "Untitled"
	}
	return title
}

func resolveAsset(raw *exportAsset) *Asset {
	if raw == nil {
		return nil
	}
	asset := &Asset{Kind: assetKind(raw.AssetType), Captions: resolveCaptions(raw.Captions)}
	switch asset.Kind {
	case AssetVideo:
		video := &VideoAsset{ListingToken: strings.TrimSpace(raw.MediaLicenseToken)}
		if raw.StreamURLs != nil {
			for _, stream := range raw.StreamURLs.Video {
				url := stream.File
				if url == "" {
					url = stream.Src
				}
				quality, err := strconv.Atoi(strings.TrimSpace(stream.Label))
				if err != nil || url == "" {
					// "auto" and other non-numeric renditions are not
					// directly selectable.
					continue
				}
				video.StreamSources = append(video.StreamSources, StreamSource{Quality: quality, URL: url})
			}
		}
		for _, src := range raw.MediaSources {
			if strings.TrimSpace(src.Src) == "" {
				continue
			}
			video.ProtectedSources = append(video.ProtectedSources, ProtectedSource{
				MIMEType: strings.TrimSpace(src.Type),
				URL:      strings.TrimSpace(src.Src),
			})
		}
		asset.Video = video
	case AssetArticle:
		asset.Article = &ArticleAsset{Body: raw.Body}
	}
	return asset
}

func assetKind(name string) AssetKind {
	switch strings.TrimSpace(name) {
	case "Video":
		return AssetVideo
	case "Article":
		return AssetArticle
	case "E-Book":
		return AssetEBook
	case "File":
		return AssetFile
	default:
		return AssetOther
	}
}

func resolveCaptions(raw []exportCaption) []Caption {
	captions := make([]Caption, 0, len(raw))
	for _, cap := range raw {
		if strings.TrimSpace(cap.URL) == "" {
			continue
		}
		locale := strings.TrimSpace(cap.LocaleID)
		if locale == "" {
			locale = "en"
		}
		captions = append(captions, Caption{Locale: locale, URL: cap.URL})
	}
	if len(captions) == 0 {
		return nil
	}
	return captions
}

func resolveSupplements(raw []exportSupplement) []Supplement {
	supplements := make([]Supplement, 0, len(raw))
	for _, sup := range raw {
		if sup.DownloadURLs == nil || len(sup.DownloadURLs.File) == 0 {
			continue
		}
		url := sup.DownloadURLs.File[0].File
		if url == "" {
			url = sup.DownloadURLs.File[0].Src
		}
		if url == "" {
			continue
		}
		name := strings.TrimSpace(sup.Filename)
		if name == "" {
			name = titleOrUntitled(sup.Title)
		}
		supplements = append(supplements, Supplement{Filename: name, URL: url})
	}
	if len(supplements) == 0 {
		return nil
	}
	return supplements
}
