package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var errNoDocument = errors.New("no document loaded")

// DocumentPage serves saved HTML keyed by URL. It lets the extractors run
// against page snapshots without a browser.
type DocumentPage struct {
	pages map[string]string
	doc   *goquery.Document
	url   string
}

func NewDocumentPage(pages map[string]string) *DocumentPage {
	return &DocumentPage{pages: pages}
}

func (p *DocumentPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	html, ok := p.pages[url]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPageNotFound, url)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}

	p.doc = doc
	p.url = url
	return nil
}

// URL returns the address of the loaded document.
func (p *DocumentPage) URL() string {
	return p.url
}

func (p *DocumentPage) QuerySelector(selector string) (Element, error) {
	if p.doc == nil {
		return nil, errNoDocument
	}
	return first(p.doc.Find(selector)), nil
}

func (p *DocumentPage) QuerySelectorAll(selector string) ([]Element, error) {
	if p.doc == nil {
		return nil, errNoDocument
	}
	return all(p.doc.Find(selector)), nil
}

func (p *DocumentPage) Close() error {
	p.doc = nil
	return nil
}

type documentElement struct {
	sel *goquery.Selection
}

func (e *documentElement) TextContent() (string, error) {
	return e.sel.Text(), nil
}

func (e *documentElement) GetAttribute(name string) (string, error) {
	return e.sel.AttrOr(name, ""), nil
}

func (e *documentElement) QuerySelector(selector string) (Element, error) {
	return first(e.sel.Find(selector)), nil
}

func (e *documentElement) QuerySelectorAll(selector string) ([]Element, error) {
	return all(e.sel.Find(selector)), nil
}

func first(sel *goquery.Selection) Element {
	if sel.Length() == 0 {
		return nil
	}
	return &documentElement{sel: sel.First()}
}

func all(sel *goquery.Selection) []Element {
	elements := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, &documentElement{sel: s})
	})
	return elements
}

// SnapshotSession hands out DocumentPages over a fixed set of pages.
type SnapshotSession struct {
	mu     sync.Mutex
	pages  map[string]string
	closes int
}

func NewSnapshotSession(pages map[string]string) *SnapshotSession {
	return &SnapshotSession{pages: pages}
}

func (s *SnapshotSession) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewDocumentPage(s.pages), nil
}

func (s *SnapshotSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// Closes reports how many times Close was called.
func (s *SnapshotSession) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}
