package experiment

import (
	"fmt"
	"path/filepath"
	"strings"

	"qintegrity/domain/core"
)

const (
	MatrixExt = ".npy"
	ChartExt  = ".png"
)

// MatrixFileName names the persisted matrix of one repetition
func MatrixFileName(repetition, numTrials int) string {
	return fmt.Sprintf("num_detections_array_%d_for_%d_num_trials%s", repetition, numTrials, MatrixExt)
}

// ParseMatrixFileName recovers repetition and trial count from a matrix file name
func ParseMatrixFileName(name string) (repetition, numTrials int, err error) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, MatrixExt) {
		return 0, 0, fmt.Errorf("%w: %s lacks %s", core.ErrInvalidMatrixName, name, MatrixExt)
	}
	_, err = fmt.Sscanf(strings.TrimSuffix(base, MatrixExt), "num_detections_array_%d_for_%d_num_trials", &repetition, &numTrials)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s: %v", core.ErrInvalidMatrixName, name, err)
	}
	return repetition, numTrials, nil
}

// ChartFileName swaps the matrix file extension for the image extension
func ChartFileName(matrixFile string) string {
	return strings.TrimSuffix(matrixFile, filepath.Ext(matrixFile)) + ChartExt
}
