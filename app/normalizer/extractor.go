package normalizer

import (
	"fmt"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// ExtractReadable pulls the main article text out of a full HTML page,
// dropping navigation, ads and other chrome. Used to backfill content for
// feed items that shipped only a headline or a short description.
func ExtractReadable(html []byte) (string, error) {
	if len(html) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(strings.NewReader(string(html)), nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	if article.TextContent == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	return article.TextContent, nil
}
