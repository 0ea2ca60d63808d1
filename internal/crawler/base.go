package crawler

import (
	"io"

	apperrors "scholarsift/scholarworker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// createDocument parses HTML and drops script and style elements so their
// text never leaks into extracted fields.
func createDocument(reader io.Reader, sourceURL string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, apperrors.NewParsing(sourceURL, "failed to parse HTML", err)
	}
	doc.Find("script, style").Remove()
	return doc, nil
}
