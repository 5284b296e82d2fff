package editor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"docbridge/internal/document"
)

const MsgUnsupportedFile = "The selected file type is not supported for the document editor."

// PickerTypes are the file types the editor opens from the file browser.
var PickerTypes = map[string]bool{
	".docx": true,
	".doc":  true,
	".txt":  true,
	".rtf":  true,
}

type Fetcher interface {
	Fetch(ctx context.Context, name string) (*document.Payload, error)
}

// Notifier shows a message to the user.
type Notifier interface {
	Notify(msg string)
}

type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }

// Bridge loads files picked in the file browser into the controller.
type Bridge struct {
	fetcher  Fetcher
	ctrl     *Controller
	notifier Notifier
	log      zerolog.Logger
	onLoad   func(name string, content []byte)
}

func NewBridge(fetcher Fetcher, ctrl *Controller, notifier Notifier, log zerolog.Logger) *Bridge {
	return &Bridge{fetcher: fetcher, ctrl: ctrl, notifier: notifier, log: log}
}

// OnLoad registers fn to run after a picked file replaced the session.
func (b *Bridge) OnLoad(fn func(name string, content []byte)) {
	b.onLoad = fn
}

// Select handles a file picked at path ("/team/Plan.docx"). Unsupported
// types are reported through the notifier and leave the session alone, as
// does a failed fetch.
func (b *Bridge) Select(ctx context.Context, path, fileType, fileName string) error {
	ext := strings.ToLower(strings.TrimSpace(fileType))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if !PickerTypes[ext] {
		if b.notifier != nil {
			b.notifier.Notify(MsgUnsupportedFile)
		}
		return fmt.Errorf("%w: %s", document.ErrUnsupportedFormat, fileType)
	}

	name := pickedName(path, fileName)
	payload, err := b.fetcher.Fetch(ctx, name)
	if err != nil {
		b.log.Error().Err(err).Str("document", name).Msg("error loading document")
		return err
	}
	if err := b.ctrl.Replace(name, payload.Content); err != nil {
		return err
	}
	b.log.Info().Str("document", name).Int64("bytes", payload.Size).Msg("document opened")
	if b.onLoad != nil {
		b.onLoad(name, payload.Content)
	}
	return nil
}

// pickedName turns the browser's path into a document name relative to the
// storage root, falling back to the bare file name.
func pickedName(path, fileName string) string {
	p := strings.Trim(strings.TrimSpace(path), "/")
	p = strings.TrimPrefix(p, document.Root)
	if p == "" {
		return strings.TrimSpace(fileName)
	}
	return p
}
