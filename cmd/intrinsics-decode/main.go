package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"intrinsics-map-go/internal/ingest"
	"intrinsics-map-go/internal/processing"
)

func main() {
	path := flag.String("path", "", "Path to CBOR file or directory")
	limit := flag.Int("limit", 5, "Max number of image messages to print")
	flag.Parse()

	if *path == "" {
		log.Fatal("missing -path")
	}

	files, err := listFiles(*path)
	if err != nil {
		log.Fatalf("list files: %v", err)
	}

	var imageCount, sampleCount, startCount, endCount int
	// Folds every file in order, the same way a live session would.
	pipeline := processing.NewPipeline(nil)

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			log.Printf("read %s: %v", file, err)
			continue
		}

		msg, err := ingest.Decode(data)
		if err != nil {
			log.Printf("decode %s: %v", file, err)
			continue
		}

		switch msg.Type {
		case ingest.MessageStart:
			startCount++
			fmt.Printf("start: %s\n", file)
			for k, v := range msg.Meta {
				fmt.Printf("  %s: %v\n", k, v)
			}
		case ingest.MessageEnd:
			endCount++
		case ingest.MessageImage:
			imageCount++
			m, ok := msg.Frame.Matrix()
			if ok {
				sampleCount++
			}
			pipeline.OnFrame(msg.Frame)
			if imageCount > *limit {
				continue
			}
			fmt.Printf("image: %s\n", file)
			fmt.Printf("  image_id: %d\n", msg.Frame.ImageID)
			if !ok {
				fmt.Println("  intrinsics: none")
				continue
			}
			fmt.Printf("  intrinsics:\n%s\n", processing.Format(m))
		}
	}

	fmt.Printf("summary: start=%d image=%d samples=%d end=%d\n", startCount, imageCount, sampleCount, endCount)
	if avg, ok := pipeline.Accumulator().CurrentAverage(); ok {
		fmt.Printf("average over %d samples:\n%s\n", pipeline.Accumulator().Count(), processing.Format(avg))
	}
}

func listFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == ".cbor" {
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
