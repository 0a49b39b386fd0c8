package portal

import "context"

// Agent is the abstract browser-automation capability set the session needs.
// Any concrete driver (WebDriver, CDP, a test fake) can satisfy it; the core
// only ever asks for navigation, form filling, clicks, and rendered text.
type Agent interface {
	// Navigate loads the given URL.
	Navigate(ctx context.Context, url string) error
	// FillField types a value into the element with the given id.
	FillField(ctx context.Context, fieldID, value string) error
	// Click clicks the element matching the selector. Returns false without
	// error when no such element is present on the page.
	Click(ctx context.Context, selector string) (bool, error)
	// ReadPageText returns the rendered text of the current page.
	ReadPageText(ctx context.Context) (string, error)
	// ElementDisplayed reports whether the element with the given id exists
	// and is currently visible.
	ElementDisplayed(ctx context.Context, elementID string) (bool, error)
	// ElementTexts returns the text of every element matching the selector,
	// in document order.
	ElementTexts(ctx context.Context, selector string) ([]string, error)
	// Close releases the underlying browser context.
	Close(ctx context.Context) error
}
