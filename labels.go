package canopy

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// DefaultLabels returns the disease classes the reference plantation health
// model was trained on.  Index order must match the classifier output.
func DefaultLabels() []string {
	return []string{
		"Healthy",
		"Leaf Blight",
		"Leaf Yellowing",
		"Powdery Mildew",
		"Rust",
	}
}

// LoadLabels reads the labels used to train the classifier from the given
// text file.  It should contain one label per line.
func LoadLabels(file string) ([]string, error) {

	// open the file
	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	// create a scanner to read the file.
	scanner := bufio.NewScanner(f)

	var labels []string

	// read and trim each line
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		labels = append(labels, line)
	}

	// check for errors during scanning
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return labels, nil
}
