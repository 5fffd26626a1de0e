package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"gorgonia.org/tensor"
)

// CIFAR-10 binary batch layout: each record is one label byte followed by
// 32x32x3 pixel bytes, channel-major.
const (
	cifarClasses   = 10
	cifarImageSize = 32 * 32 * 3
	cifarRowSize   = 1 + cifarImageSize
)

// LoadCIFAR10 reads a CIFAR-10 binary batch file into a restartable source.
// Pixels are normalized to [0,1] and stored as (3, 32, 32) float32 tensors.
func LoadCIFAR10(path string) (*SliceSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cifar batch: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	row := make([]byte, cifarRowSize)
	var samples []Sample
	for {
		if _, err := io.ReadFull(r, row); err != nil {
			if err == io.EOF {
				break
			}
			if err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("cifar batch %s: truncated record %d", path, len(samples))
			}
			return nil, err
		}
		label := int(row[0])
		if label >= cifarClasses {
			return nil, fmt.Errorf("cifar batch %s: label %d outside [0, %d)", path, label, cifarClasses)
		}
		backing := make([]float32, cifarImageSize)
		for i, b := range row[1:] {
			backing[i] = float32(b) / 255.0
		}
		t := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(3, 32, 32), tensor.WithBacking(backing))
		samples = append(samples, Sample{Input: t, Label: label})
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("cifar batch %s: no records", path)
	}
	return NewSliceSource(samples), nil
}
