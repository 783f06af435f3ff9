/*
Example code showing how to analyse a directory of aerial plantation
photos, producing the stitched panorama, an annotated overview image and a
JSON record of every detected tree
*/
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/canopylabs/go-canopy"
	"github.com/canopylabs/go-canopy/render"
	"gocv.io/x/gocv"
)

// report is the JSON document written for the flight
type report struct {
	Stitched           bool                 `json:"stitched"`
	FramesUsed         int                  `json:"frames_used"`
	VegetationCoverage float64              `json:"vegetation_coverage"`
	Stats              canopy.HealthStats   `json:"stats"`
	Trees              []canopy.TreeSummary `json:"trees"`
}

func main() {

	dir := flag.String("dir", "images", "Directory of aerial photos to analyse")
	outDir := flag.String("out", ".", "Directory to write results to")
	labelFile := flag.String("labels", "", "Optional classifier labels text file")
	noEnhance := flag.Bool("no-enhance", false, "Skip contrast enhancement")
	flag.Parse()

	err := run(*dir, *outDir, *labelFile, *noEnhance)

	if err != nil {
		log.Fatal("Error: ", err)
	}
}

func run(dir, outDir, labelFile string, noEnhance bool) error {

	paths, err := imageFiles(dir)

	if err != nil {
		return err
	}

	log.Printf("Analysing %d images from %s\n", len(paths), dir)

	cfg := canopy.DefaultConfig()
	cfg.SkipEnhance = noEnhance

	if labelFile != "" {
		cfg.Labels, err = canopy.LoadLabels(labelFile)

		if err != nil {
			return err
		}
	}

	// pass a canopy.Classifier implementation here to get per tree disease
	// labels, without one trees are still counted and located
	pipeline, err := canopy.NewPipeline(cfg, nil)

	if err != nil {
		return err
	}

	defer pipeline.Close()

	res, err := pipeline.ProcessFiles(paths)

	if err != nil {
		return err
	}

	defer res.Close()

	// write the panorama
	panoFile := filepath.Join(outDir, "panorama.jpg")

	if ok := gocv.IMWrite(panoFile, res.Panorama); !ok {
		log.Printf("Failed to write %s\n", panoFile)
	}

	// write the annotated overview with a flight summary legend
	annotated := res.Annotate()
	defer annotated.Close()

	tr, err := render.NewDefaultTextRenderer(20)

	if err != nil {
		return err
	}

	defer tr.Close()

	lines := []string{
		fmt.Sprintf("Trees: %d", res.Stats.Total),
		fmt.Sprintf("Healthy: %d", res.Stats.Healthy),
		fmt.Sprintf("Diseased: %d", res.Stats.Diseased),
		fmt.Sprintf("Health: %.1f%%", res.Stats.HealthPercent),
	}

	if err := render.Legend(&annotated, tr, lines); err != nil {
		return err
	}

	annFile := filepath.Join(outDir, "annotated_trees.jpg")

	if ok := gocv.IMWrite(annFile, annotated); !ok {
		log.Printf("Failed to write %s\n", annFile)
	}

	// write the per tree JSON record
	doc := report{
		Stitched:           res.Stitched,
		FramesUsed:         res.FramesUsed,
		VegetationCoverage: res.VegetationCoverage,
		Stats:              res.Stats,
		Trees:              res.Trees,
	}

	buf, err := json.MarshalIndent(doc, "", "  ")

	if err != nil {
		return err
	}

	jsonFile := filepath.Join(outDir, "tree_data.json")

	if err := os.WriteFile(jsonFile, buf, 0644); err != nil {
		return err
	}

	log.Printf("Found %d trees, %d healthy, %d diseased, %d unclassified\n",
		res.Stats.Total, res.Stats.Healthy, res.Stats.Diseased,
		res.Stats.Unclassified)
	log.Printf("Results written to %s, %s and %s\n", panoFile, annFile,
		jsonFile)

	return nil
}

// imageFiles lists the image files in a directory in name order
func imageFiles(dir string) ([]string, error) {

	entries, err := os.ReadDir(dir)

	if err != nil {
		return nil, err
	}

	var paths []string

	for _, entry := range entries {

		if entry.IsDir() {
			continue
		}

		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}

	sort.Strings(paths)

	return paths, nil
}
