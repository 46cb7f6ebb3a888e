package extract

import "strings"

func (e *Extractor) extractText(s TextSubmission) (string, error) {
	text := strings.TrimSpace(s.Text)
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}
