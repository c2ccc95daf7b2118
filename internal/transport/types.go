package transport

import (
	"context"
	"io"
)

type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// ParseModeMarkdown mirrors the platform's legacy Markdown parse mode,
// used for broadcast formatting (e.g. **bold**).
const ParseModeMarkdown = "Markdown"

// Adapter is the chat platform boundary. The broadcaster only needs
// SendText; export and chart replies use SendDocument/SendPhoto.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendDocument(ctx context.Context, to ChatTarget, file io.Reader, filename string) error
	SendPhoto(ctx context.Context, to ChatTarget, image io.Reader) error
}
