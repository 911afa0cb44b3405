package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"intelliquery/internal/config"
	"intelliquery/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 100
	defaultPageNumber   = 1
)

type extractor struct {
	cfg *config.Config
}

// ParseToMarkdown extracts the textual content of a document, normalizes it
// through markdown rendering, and returns it as overlap-chunked pieces with
// page (or sheet/slide) numbers.
func ParseToMarkdown(filePath string, cfg *config.Config) ([]models.Chunk, error) {
	if cfg == nil {
		cfg = &config.Config{
			RAG: config.RAGConfig{
				ChunkSize:    defaultChunkSize,
				ChunkOverlap: defaultChunkOverlap,
			},
		}
	} else if cfg.RAG.ChunkSize == 0 || cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkSize = defaultChunkSize
		cfg.RAG.ChunkOverlap = defaultChunkOverlap
	}

	e := extractor{cfg: cfg}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		return e.parsePDF(filePath)
	case ".docx":
		return e.parseDOCX(filePath)
	case ".pptx":
		return e.parsePPTX(filePath)
	case ".xlsx":
		return e.parseXLSX(filePath)
	case ".ods":
		return e.parseODS(filePath)
	case ".txt", ".csv", ".md":
		return e.parseText(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

func (e *extractor) parsePDF(filePath string) ([]models.Chunk, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	var chunks []models.Chunk
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, err
		}
		markdown, err := convertToMarkdown(pageText)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, e.getChunks(markdown, i)...)
	}
	return chunks, nil
}

func (e *extractor) parseDOCX(filePath string) ([]models.Chunk, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	var text strings.Builder
	for _, p := range strings.Split(content, "\n") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		text.WriteString(p)
		text.WriteString("\n")
	}
	markdown, err := convertToMarkdown(text.String())
	if err != nil {
		return nil, err
	}
	// DOCX has no page numbers.
	return e.getChunks(markdown, defaultPageNumber), nil
}

func (e *extractor) parsePPTX(filePath string) ([]models.Chunk, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var chunks []models.Chunk
	slideNum := 0
	for _, file := range f.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		slideNum++
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		slideText := extractTextFromXML(string(data))
		if strings.TrimSpace(slideText) == "" {
			continue
		}
		markdown, err := convertToMarkdown(slideText)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, e.getChunks(markdown, slideNum)...)
	}
	return chunks, nil
}

func (e *extractor) parseXLSX(filePath string) ([]models.Chunk, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var chunks []models.Chunk
	for sheetNum, sheet := range f.Sheets {
		var rows [][]string
		for _, row := range sheet.Rows {
			var cells []string
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			rows = append(rows, cells)
		}
		chunks = append(chunks, e.sheetChunks(sheet.Name, rows, sheetNum+1)...)
	}
	return chunks, nil
}

func (e *extractor) parseODS(filePath string) ([]models.Chunk, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var chunks []models.Chunk
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		chunks = append(chunks, e.sheetChunks(sheetName, rows, sheetNum+1)...)
	}
	return chunks, nil
}

// sheetChunks renders one spreadsheet sheet as CSV lines under a heading and
// chunks the result. The sheet number stands in for the page number.
func (e *extractor) sheetChunks(name string, rows [][]string, sheetNum int) []models.Chunk {
	var text strings.Builder
	text.WriteString(fmt.Sprintf("## Sheet: %s\n", name))
	for _, row := range rows {
		text.WriteString(csvLine(row))
		text.WriteString("\n")
	}
	markdown, err := convertToMarkdown(text.String())
	if err != nil {
		return nil
	}
	if strings.TrimSpace(markdown) == "" {
		return nil
	}
	return e.getChunks(markdown, sheetNum)
}

func csvLine(cells []string) string {
	quoted := make([]string, len(cells))
	for i, c := range cells {
		if strings.ContainsAny(c, ",\"\n") {
			c = "\"" + strings.ReplaceAll(c, "\"", "\"\"") + "\""
		}
		quoted[i] = c
	}
	return strings.Join(quoted, ",")
}

func (e *extractor) parseText(filePath string) ([]models.Chunk, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	markdown, err := convertToMarkdown(string(data))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(markdown) == "" {
		return nil, nil
	}
	return e.getChunks(markdown, defaultPageNumber), nil
}

func convertToMarkdown(text string) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return strings.Trim(buf.String(), " \t\n\r"), nil
}

// extractTextFromXML pulls the text runs (<a:t> elements) out of a
// drawingml slide document.
func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		endIdx := strings.Index(part, "</a:t>")
		if endIdx >= 0 {
			text.WriteString(part[:endIdx] + " ")
		}
	}
	return text.String()
}

// chunkContent splits content into chunks of at most maxChars with
// overlapChars of carry-over, preferring to break at a space, newline, or
// period within the last tenth of a chunk.
func chunkContent(content string, maxChars, overlapChars int) []string {
	if maxChars <= 0 {
		return nil
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}
	content = strings.TrimSpace(content)
	contentLen := len(content)
	if contentLen == 0 {
		return nil
	}
	if contentLen <= maxChars {
		return []string{content}
	}

	var chunks []string
	start := 0
	for start < contentLen {
		end := min(start+maxChars, contentLen)

		if end < contentLen {
			lookBack := min(maxChars/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if content[i] == ' ' || content[i] == '\n' || content[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		chunk := strings.TrimSpace(content[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		start += maxChars - overlapChars
		if start >= contentLen {
			break
		}
	}
	return chunks
}

func (e *extractor) getChunks(content string, pageNumber int) []models.Chunk {
	var chunks []models.Chunk
	for i, chunkString := range chunkContent(content, e.cfg.RAG.ChunkSize, e.cfg.RAG.ChunkOverlap) {
		chunks = append(chunks, models.Chunk{
			Content:    chunkString,
			PageNumber: pageNumber,
			ChunkID:    i + 1,
		})
	}
	return chunks
}
