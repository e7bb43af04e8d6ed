package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

var ErrPageNotFound = errors.New("page not found")

// Page is the navigation and lookup capability the extractors work against.
// Lookups return a nil Element, not an error, when nothing matches.
type Page interface {
	Goto(ctx context.Context, url string, timeout time.Duration) error
	QuerySelector(selector string) (Element, error)
	QuerySelectorAll(selector string) ([]Element, error)
	Close() error
}

// Element is a node on a Page. GetAttribute returns "" for a missing attribute.
type Element interface {
	TextContent() (string, error)
	GetAttribute(name string) (string, error)
	QuerySelector(selector string) (Element, error)
	QuerySelectorAll(selector string) ([]Element, error)
}

type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	return nil
}

func (p *playwrightPage) QuerySelector(selector string) (Element, error) {
	handle, err := p.page.QuerySelector(selector)
	if err != nil {
		return nil, err
	}
	return wrapHandle(handle), nil
}

func (p *playwrightPage) QuerySelectorAll(selector string) ([]Element, error) {
	handles, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}
	return wrapHandles(handles), nil
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}

type playwrightElement struct {
	handle playwright.ElementHandle
}

func (e *playwrightElement) TextContent() (string, error) {
	return e.handle.TextContent()
}

func (e *playwrightElement) GetAttribute(name string) (string, error) {
	return e.handle.GetAttribute(name)
}

func (e *playwrightElement) QuerySelector(selector string) (Element, error) {
	handle, err := e.handle.QuerySelector(selector)
	if err != nil {
		return nil, err
	}
	return wrapHandle(handle), nil
}

func (e *playwrightElement) QuerySelectorAll(selector string) ([]Element, error) {
	handles, err := e.handle.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}
	return wrapHandles(handles), nil
}

// wrapHandle keeps a missing handle as an untyped nil Element.
func wrapHandle(handle playwright.ElementHandle) Element {
	if handle == nil {
		return nil
	}
	return &playwrightElement{handle: handle}
}

func wrapHandles(handles []playwright.ElementHandle) []Element {
	elements := make([]Element, 0, len(handles))
	for _, h := range handles {
		if h != nil {
			elements = append(elements, &playwrightElement{handle: h})
		}
	}
	return elements
}
