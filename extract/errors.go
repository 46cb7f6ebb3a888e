package extract

import "errors"

var (
	// ErrEmptyText is returned when a text submission is empty or whitespace.
	ErrEmptyText = errors.New("extract: text is required")

	// ErrUnsupportedMedia is returned when an upload's media type is not in
	// the accepted set for its modality.
	ErrUnsupportedMedia = errors.New("extract: unsupported media type")

	// ErrEmptyUpload is returned when an uploaded file has no bytes even
	// after re-reading.
	ErrEmptyUpload = errors.New("extract: uploaded file is empty")

	// ErrUnreadable is returned when a document cannot be parsed at all.
	ErrUnreadable = errors.New("extract: unreadable document")

	// ErrNoText is returned when a document parses cleanly but yields no
	// usable text.
	ErrNoText = errors.New("extract: no readable text found")
)
