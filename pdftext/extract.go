package pdftext

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ExtractLeading extrahiert den Text der ersten maxPages Seiten eines PDFs.
// Die Begrenzung ist Absicht (Kostenkontrolle beim Summarization-Service),
// kein Defekt. pdfcpu arbeitet dateibasiert, deshalb der Umweg über ein
// Temp-Verzeichnis.
func ExtractLeading(pdf []byte, maxPages int) (string, error) {
	if maxPages < 1 {
		maxPages = 1
	}

	tempDir, err := os.MkdirTemp("", "arxiv-digest-pdf")
	if err != nil {
		return "", fmt.Errorf("temp-Verzeichnis konnte nicht angelegt werden: %w", err)
	}
	defer os.RemoveAll(tempDir)

	tempFile := filepath.Join(tempDir, "paper.pdf")
	if err := os.WriteFile(tempFile, pdf, 0644); err != nil {
		return "", fmt.Errorf("temp-PDF konnte nicht geschrieben werden: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return "", fmt.Errorf("PDF konnte nicht gelesen werden: %w", err)
	}

	pageCount := pdfCtx.PageCount
	if pageCount > maxPages {
		pageCount = maxPages
	}

	pages := make([]string, 0, pageCount)
	for p := 1; p <= pageCount; p++ {
		pages = append(pages, fmt.Sprintf("%d", p))
	}

	outDir := filepath.Join(tempDir, "content")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", err
	}
	if err := api.ExtractContentFile(tempFile, outDir, pages, model.NewDefaultConfiguration()); err != nil {
		return "", fmt.Errorf("PDF-Inhalt konnte nicht extrahiert werden: %w", err)
	}

	// pdfcpu legt pro Seite eine Datei <basename>_Content_page_<n>.txt ab;
	// in Seitenreihenfolge lesen.
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", err
	}
	pageTexts := map[int]string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		idx := strings.LastIndex(name, "Content_page_")
		if idx < 0 {
			continue
		}
		numPart := strings.TrimSuffix(name[idx+len("Content_page_"):], filepath.Ext(name))
		pageNum, err := strconv.Atoi(numPart)
		if err != nil {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, name))
		if err == nil {
			pageTexts[pageNum] = string(content)
		}
	}

	nums := make([]int, 0, len(pageTexts))
	for n := range pageTexts {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	var text strings.Builder
	for _, n := range nums {
		if n > maxPages {
			break
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(pageTexts[n])
	}

	if text.Len() == 0 {
		return "", fmt.Errorf("kein Text extrahierbar")
	}
	return text.String(), nil
}
