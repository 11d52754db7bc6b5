// Package shopping renders the consolidated shopping list. The database sums
// the cart (one GROUP BY query); this package only formats the result.
package shopping

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sakif/foodgram/internal/model"
)

// Format selects how a shopping list is rendered.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatText Format = "txt"
)

// ParseFormat maps the ?format= query value to a Format. An empty value means CSV.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(s) {
	case "", "csv":
		return FormatCSV, true
	case "txt", "text":
		return FormatText, true
	default:
		return "", false
	}
}

// Filename is the attachment name sent with the download.
func (f Format) Filename() string {
	return "shopping_cart." + string(f)
}

// ContentType is the MIME type of the rendered list.
func (f Format) ContentType() string {
	if f == FormatText {
		return "text/plain; charset=utf-8"
	}
	return "text/csv; charset=utf-8"
}

// Render writes items to w in the given format.
func Render(w io.Writer, f Format, items []model.ShoppingItem) error {
	if f == FormatText {
		return WriteText(w, items)
	}
	return WriteCSV(w, items)
}

// WriteCSV writes a UTF-8 BOM (so spreadsheet apps detect the encoding of
// non-ASCII names), a header row, and one "name (unit)", amount row per item.
// An empty list still produces the BOM and header.
func WriteCSV(w io.Writer, items []model.ShoppingItem) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return fmt.Errorf("writing BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write([]string{"Ingredient", "Amount"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, item := range items {
		row := []string{
			fmt.Sprintf("%s (%s)", item.Name, item.MeasurementUnit),
			strconv.Itoa(item.Amount),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %q: %w", item.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteText writes one "name  - amount(unit)" line per item. An empty list
// writes nothing.
func WriteText(w io.Writer, items []model.ShoppingItem) error {
	for _, item := range items {
		if _, err := fmt.Fprintf(w, "%s  - %d(%s)\n", item.Name, item.Amount, item.MeasurementUnit); err != nil {
			return fmt.Errorf("writing line %q: %w", item.Name, err)
		}
	}
	return nil
}
