package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"intrinsics-map-go/internal/types"
)

func Timestamp() string {
	return time.Now().Format("20060102_150405")
}

// WriteSummary writes the final snapshot of a session as text and returns the file path.
func WriteSummary(outputDir string, runTimestamp string, snapshot types.DisplaySnapshot) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}
	filename := filepath.Join(outputDir, fmt.Sprintf("%s_intrinsics_%s.txt", runTimestamp, fileSafe(snapshot.Session)))
	f, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	_, _ = fmt.Fprintf(f, "session: %s\n", snapshot.Session)
	_, _ = fmt.Fprintf(f, "samples: %d\n\n", snapshot.Count)
	_, _ = fmt.Fprintln(f, snapshot.Text)
	if err := f.Close(); err != nil {
		return "", err
	}
	return filename, nil
}

// fileSafe keeps name inside a single path element.
func fileSafe(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" {
		return "session"
	}
	return name
}
