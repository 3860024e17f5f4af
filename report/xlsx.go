package report

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/videoreport/api/config"
	"github.com/videoreport/api/job"
	"github.com/xuri/excelize/v2"
)

const (
	sheetVideoAnalysis = "Video Analysis"
	sheetStatistics    = "Statistics"
)

var analysisHeaders = []string{"Scene #", "Timecode", "Screenshot", "OCR Text", "NA Text"}

// Generate builds the two-sheet workbook (§4.6): "Video Analysis" (one row
// per scene, embedded screenshot, formula-based scene numbers) and
// "Statistics" (run counters, video metadata, detection parameters, and an
// optional warnings block). Scene screenshots are read from each scene's
// ScreenshotPath, a transient local file written during frame extraction.
func Generate(scenes []job.Scene, stats Stats) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeVideoAnalysisSheet(f, scenes, stats.Video.AspectRatio); err != nil {
		return nil, fmt.Errorf("writing Video Analysis sheet: %w", err)
	}
	if err := writeStatisticsSheet(f, scenes, stats); err != nil {
		return nil, fmt.Errorf("writing Statistics sheet: %w", err)
	}

	// excelize.NewFile() seeds a default "Sheet1" — drop it so invariant 2
	// (sheet set is exactly {Video Analysis, Statistics}) holds.
	_ = f.DeleteSheet("Sheet1")
	f.SetActiveSheet(0)

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serializing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeVideoAnalysisSheet(f *excelize.File, scenes []job.Scene, aspectRatio float64) error {
	sheet, err := f.NewSheet(sheetVideoAnalysis)
	if err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9D9D9"}, Pattern: 1},
		Border:    thinGreyBorder(),
		Alignment: &excelize.Alignment{Vertical: "center"},
	})
	if err != nil {
		return err
	}
	evenRowStyle, err := f.NewStyle(&excelize.Style{
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"#F2F2F2"}, Pattern: 1},
		Border: thinGreyBorder(),
	})
	if err != nil {
		return err
	}
	oddRowStyle, err := f.NewStyle(&excelize.Style{Border: thinGreyBorder()})
	if err != nil {
		return err
	}
	placeholderStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Italic: true},
		Border: thinGreyBorder(),
	})
	if err != nil {
		return err
	}

	for i, h := range analysisHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	imgHeight := int(math.Round(float64(config.ScreenshotWidthPx) / aspectRatioOrDefault(aspectRatio)))
	colWidth := math.Ceil(float64(config.ScreenshotWidthPx) / 7.0)
	if err := f.SetColWidth(sheet, "C", "C", colWidth); err != nil {
		return err
	}
	rowHeight := math.Round(float64(imgHeight) * 0.75)

	for i, scene := range scenes {
		row := i + 2
		style := oddRowStyle
		if i%2 == 1 {
			style = evenRowStyle
		}

		numCell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetCellFormula(sheet, numCell, "=ROW()-1"); err != nil {
			return err
		}

		tcCell, _ := excelize.CoordinatesToCellName(2, row)
		if err := f.SetCellValue(sheet, tcCell, scene.Timecode()); err != nil {
			return err
		}

		if err := f.SetRowHeight(sheet, row, rowHeight); err != nil {
			return err
		}

		if scene.ScreenshotPath != "" {
			if err := embedScreenshot(f, sheet, row, scene.ScreenshotPath, imgHeight); err != nil {
				return err
			}
		}

		ocrCell, _ := excelize.CoordinatesToCellName(4, row)
		ocrStyle := style
		ocrText := scene.OCRText
		if ocrText == "" {
			ocrText = "(no text detected)"
			ocrStyle = placeholderStyle
		}
		if err := f.SetCellValue(sheet, ocrCell, ocrText); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, ocrCell, ocrCell, ocrStyle); err != nil {
			return err
		}

		naCell, _ := excelize.CoordinatesToCellName(5, row)
		naStyle := style
		naText := scene.NarrationText
		if naText == "" {
			naText = "(no narration)"
			naStyle = placeholderStyle
		}
		if err := f.SetCellValue(sheet, naCell, naText); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, naCell, naCell, naStyle); err != nil {
			return err
		}

		for _, col := range []string{"A", "B", "C"} {
			cell := fmt.Sprintf("%s%d", col, row)
			if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
				return err
			}
		}
	}
	return nil
}

// embedScreenshot centers a 320-px-wide screenshot inside its cell. The
// offset is computed in pixels; excelize's GraphicOptions already expects
// pixel offsets, with config.EMUPerPixel (9525 EMU/px, per §4.6) recorded
// as the conversion factor a reader would need to verify the rendered
// offset against the OOXML the workbook serializes to.
func embedScreenshot(f *excelize.File, sheet string, row int, path string, imgHeight int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading screenshot %s: %w", path, err)
	}
	cell, _ := excelize.CoordinatesToCellName(3, row)

	// Column width is rounded up to a whole character width (≈7px/char);
	// row height is sized to exactly fit the image (§4.6: imgHeight·0.75
	// points, which converts back to imgHeight px at 0.75 points/px), so
	// only the column needs horizontal centering.
	colWidthPx := int(math.Ceil(float64(config.ScreenshotWidthPx)/7.0) * 7)
	offsetX := (colWidthPx - config.ScreenshotWidthPx) / 2
	offsetY := 0
	if offsetX < 0 {
		offsetX = 0
	}

	return f.AddPictureFromBytes(sheet, cell, &excelize.Picture{
		Extension: ".png",
		File:      data,
		Format: &excelize.GraphicOptions{
			OffsetX:         offsetX,
			OffsetY:         offsetY,
			LockAspectRatio: true,
		},
	})
}

func writeStatisticsSheet(f *excelize.File, scenes []job.Scene, stats Stats) error {
	sheet, err := f.NewSheet(sheetStatistics)
	if err != nil {
		return err
	}

	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	row := 1
	writeRow := func(label string, value interface{}) {
		labelCell, _ := excelize.CoordinatesToCellName(1, row)
		valueCell, _ := excelize.CoordinatesToCellName(2, row)
		_ = f.SetCellValue(sheet, labelCell, label)
		_ = f.SetCellStyle(sheet, labelCell, labelCell, labelStyle)
		_ = f.SetCellValue(sheet, valueCell, value)
		row++
	}

	writeRow("Total Scenes", len(scenes))
	writeRow("Scenes With OCR Text", stats.Metadata.ScenesWithOCR)
	writeRow("Scenes With Narration", stats.Metadata.ScenesWithNarration)
	writeRow("OCR Result Count", stats.Metadata.OCRResultCount)
	writeRow("Transcription Length (chars)", stats.Metadata.TranscriptionLengthChars)
	writeRow("Detection Mode", string(stats.Metadata.DetectionMode))
	row++

	writeRow("Video Width", stats.Video.Width)
	writeRow("Video Height", stats.Video.Height)
	writeRow("Aspect Ratio", stats.Video.AspectRatio)
	writeRow("Duration (sec)", stats.Video.DurationSec)
	row++

	writeRow("Min Scene Duration (sec)", stats.Params.MinSceneDurationSec)
	writeRow("Min Scene Interval (sec)", stats.Params.MinSceneIntervalSec)
	writeRow("Max Chunk Duration (sec)", stats.Params.MaxChunkDurationSec)
	writeRow("Min Speech Duration (sec)", stats.Params.MinSpeechDurationSec)
	for i, t := range stats.Params.SceneCutThresholds {
		writeRow(fmt.Sprintf("Scene Cut Threshold %d", i+1), t)
	}

	if len(stats.Warnings) > 0 {
		row++
		warningStyle, err := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true, Color: "#9C6500"},
			Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFEB9C"}, Pattern: 1},
		})
		if err != nil {
			return err
		}
		headerCell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheet, headerCell, "Processing Warnings")
		_ = f.SetCellStyle(sheet, headerCell, headerCell, warningStyle)
		row++
		for _, w := range stats.Warnings {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			_ = f.SetCellValue(sheet, cell, w)
			_ = f.SetCellStyle(sheet, cell, cell, warningStyle)
			row++
		}
	}

	return f.SetColWidth(sheet, "A", "A", 32)
}

func thinGreyBorder() []excelize.Border {
	sides := []string{"left", "right", "top", "bottom"}
	borders := make([]excelize.Border, 0, len(sides))
	for _, s := range sides {
		borders = append(borders, excelize.Border{Type: s, Color: "#BFBFBF", Style: 1})
	}
	return borders
}

func aspectRatioOrDefault(ratio float64) float64 {
	if ratio <= 0 {
		return 16.0 / 9.0
	}
	return ratio
}
