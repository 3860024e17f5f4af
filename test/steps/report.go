package steps

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/xuri/excelize/v2"
)

const sheetVideoAnalysis = "Video Analysis"

// reportWorkbook downloads the completed job's result workbook straight
// from the fake object store, grounded on report/xlsx.go's row layout:
// header row 1, scene i at row i+2, columns A Scene#, B Timecode,
// C Screenshot, D OCR Text, E NA Text.
func (s *StepContext) reportWorkbook(uploadID string) (*excelize.File, error) {
	payload, err := s.pollStatus(uploadID)
	if err != nil {
		return nil, err
	}
	if payload.Status != "completed" {
		return nil, fmt.Errorf("job %q has not completed (status %q)", uploadID, payload.Status)
	}

	key, err := s.resultKeyFor(uploadID)
	if err != nil {
		return nil, err
	}
	data, ok := s.ObjectStore.Get(key)
	if !ok {
		return nil, fmt.Errorf("result object %q not found in fake object store", key)
	}
	return excelize.OpenReader(bytes.NewReader(data))
}

type resultKeyOnly struct {
	ResultKey string `json:"resultKey"`
}

func (s *StepContext) resultKeyFor(uploadID string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, s.BaseURL+"/status/"+uploadID, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.WorkerToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed resultKeyOnly
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.ResultKey == "" {
		return "", fmt.Errorf("job %q has no resultKey yet", uploadID)
	}
	return parsed.ResultKey, nil
}

// CheckCellEquals asserts an exact cell match on the completed job's report.
func (s *StepContext) CheckCellEquals(uploadID, cell, want string) error {
	wb, err := s.reportWorkbook(uploadID)
	if err != nil {
		return err
	}
	defer wb.Close()

	got, err := wb.GetCellValue(sheetVideoAnalysis, cell)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("cell %s: expected %q, got %q", cell, want, got)
	}
	return nil
}

// CheckCellContains asserts a substring match, for narration cells whose
// exact transcription boundaries aren't worth pinning down in a scenario.
func (s *StepContext) CheckCellContains(uploadID, cell, substr string) error {
	wb, err := s.reportWorkbook(uploadID)
	if err != nil {
		return err
	}
	defer wb.Close()

	got, err := wb.GetCellValue(sheetVideoAnalysis, cell)
	if err != nil {
		return err
	}
	if !strings.Contains(got, substr) {
		return fmt.Errorf("cell %s: expected to contain %q, got %q", cell, substr, got)
	}
	return nil
}

// CheckCellEqualsStep reorders Gherkin's natural "cell X of upload Y" phrase
// order to CheckCellEquals' (uploadID, cell, want) signature.
func (s *StepContext) CheckCellEqualsStep(cell, uploadID, want string) error {
	return s.CheckCellEquals(uploadID, cell, want)
}

// CheckCellContainsStep is CheckCellEqualsStep's substring-match sibling.
func (s *StepContext) CheckCellContainsStep(cell, uploadID, substr string) error {
	return s.CheckCellContains(uploadID, cell, substr)
}

// CheckNoCellContainsAcrossReportStep reorders Gherkin's phrase order to
// CheckNoCellContainsAcrossReport's (uploadID, col, substr, rows) signature.
func (s *StepContext) CheckNoCellContainsAcrossReportStep(col, uploadID, substr string, rows int) error {
	return s.CheckNoCellContainsAcrossReport(uploadID, col, substr, rows)
}

// CheckNoCellContainsAcrossReport asserts a string appears in zero "Video
// Analysis" data rows, used by S3's persistent-overlay suppression check.
func (s *StepContext) CheckNoCellContainsAcrossReport(uploadID, col, substr string, rows int) error {
	wb, err := s.reportWorkbook(uploadID)
	if err != nil {
		return err
	}
	defer wb.Close()

	for row := 2; row < 2+rows; row++ {
		cell := fmt.Sprintf("%s%d", col, row)
		got, err := wb.GetCellValue(sheetVideoAnalysis, cell)
		if err != nil {
			return err
		}
		if strings.Contains(got, substr) {
			return fmt.Errorf("cell %s unexpectedly contains %q: %q", cell, substr, got)
		}
	}
	return nil
}
