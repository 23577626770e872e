package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	spanCacheTTL     = 30 * time.Minute
	spanCacheCleanup = 10 * time.Minute
)

// Service handles PDF document operations by orchestrating the
// collector and validator. Span extraction results are cached per
// (path, mtime) so repeated TOC generation runs on the same document
// do not re-parse it.
type Service struct {
	maxFileSize int64
	collector   *Collector
	validator   *Validator
	spanCache   *gocache.Cache
}

// NewService creates a new PDF service with all components
func NewService(maxFileSize int64) *Service {
	return &Service{
		maxFileSize: maxFileSize,
		collector:   NewCollector(maxFileSize),
		validator:   NewValidator(maxFileSize),
		spanCache:   gocache.New(spanCacheTTL, spanCacheCleanup),
	}
}

// OpenDocument validates a PDF and returns its basic information.
func (s *Service) OpenDocument(path string) (*DocumentInfo, error) {
	result, err := s.validator.ValidateFile(path)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, fmt.Errorf("document failed to load: %s", result.Message)
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}

	pages, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to determine page count: %w", err)
	}

	return &DocumentInfo{
		Path:      path,
		Name:      filepath.Base(path),
		Size:      fileInfo.Size(),
		PageCount: pages,
	}, nil
}

// CollectSpans returns the ordered text spans of a document, serving
// repeated requests for an unchanged file from cache.
func (s *Service) CollectSpans(path string) ([]TextSpan, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}

	key := fmt.Sprintf("%s|%d", path, fileInfo.ModTime().UnixNano())
	if cached, ok := s.spanCache.Get(key); ok {
		if spans, ok := cached.([]TextSpan); ok {
			return spans, nil
		}
	}

	spans, err := s.collector.CollectSpans(path)
	if err != nil {
		return nil, err
	}

	s.spanCache.Set(key, spans, gocache.DefaultExpiration)
	return spans, nil
}

// ValidateFile performs validation on a PDF file
func (s *Service) ValidateFile(path string) (*ValidateResult, error) {
	return s.validator.ValidateFile(path)
}

// PageCount returns the number of pages in a document.
func (s *Service) PageCount(path string) (int, error) {
	return api.PageCountFile(path)
}

// GetMaxFileSize returns the maximum file size limit
func (s *Service) GetMaxFileSize() int64 {
	return s.maxFileSize
}

// SaveOutline writes the given bookmark tree into a copy of the source
// document. The source file is never modified; outPath receives the
// copy with the TOC embedded as PDF outline entries.
func (s *Service) SaveOutline(inPath, outPath string, outline []Outline) error {
	if len(outline) == 0 {
		return fmt.Errorf("outline is empty, nothing to save")
	}

	pages, err := api.PageCountFile(inPath)
	if err != nil {
		return fmt.Errorf("failed to read source document: %w", err)
	}

	bookmarks := toBookmarks(outline, pages)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.AddBookmarksFile(inPath, outPath, bookmarks, true, conf); err != nil {
		return fmt.Errorf("failed to write bookmarks: %w", err)
	}

	return nil
}

// toBookmarks converts an outline tree into pdfcpu bookmarks, clamping
// page targets into the document's valid range.
func toBookmarks(outline []Outline, pageCount int) []pdfcpu.Bookmark {
	bookmarks := make([]pdfcpu.Bookmark, 0, len(outline))
	for _, entry := range outline {
		page := entry.Page
		if page < 1 {
			page = 1
		}
		if page > pageCount {
			page = pageCount
		}
		bookmarks = append(bookmarks, pdfcpu.Bookmark{
			Title:    entry.Title,
			PageFrom: page,
			Kids:     toBookmarks(entry.Kids, pageCount),
		})
	}
	return bookmarks
}
