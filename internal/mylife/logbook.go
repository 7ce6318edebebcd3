package mylife

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"github.com/jwulff/mylife-sync/internal/domain"
)

// ExtractEntries reads the logbook grid rows from a portal page in page order.
// Rows without an event type are ignored.
func ExtractEntries(doc *goquery.Document) []domain.Entry {
	var entries []domain.Entry
	doc.Find("tr.rgRow, tr.rgAltRow").Each(func(_ int, row *goquery.Selection) {
		event := cellText(row.Find("td.rgEvent"))
		if event == "" {
			return
		}
		e := domain.NewEntry(
			cellText(row.Find(`td:not([class]), td[class=""]`).First()),
			domain.EntryType(event),
			cellText(row.Find("td.rgValue")),
			cellText(row.Find("td.rgDate")),
			cellText(row.Find("td.rgTime")),
		)
		e.Note = cellText(row.Find("td.rgNote"))
		entries = append(entries, e)
	})
	return entries
}

// cellText folds non-breaking spaces and other compatibility forms the
// portal emits before trimming.
func cellText(s *goquery.Selection) string {
	return strings.TrimSpace(norm.NFKC.String(s.First().Text()))
}
