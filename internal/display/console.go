package display

import (
	"io"
	"log"

	"intrinsics-map-go/internal/types"
)

// Console prints each rendered snapshot as the two text blocks.
type Console struct {
	logger *log.Logger
}

// NewConsole writes to w, or to the standard logger when w is nil.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		return &Console{logger: log.Default()}
	}
	return &Console{logger: log.New(w, "", 0)}
}

func (c *Console) Render(snapshot types.DisplaySnapshot) {
	c.logger.Printf("---\nsession %s sample %d\n%s", snapshot.Session, snapshot.Count, snapshot.Text)
}
