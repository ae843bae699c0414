// Package export writes schedules to spreadsheets and reads them back.
package export

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/qhoangfmsc/30days-english/internal/challenge"
)

// SheetName is the single worksheet of an exported schedule.
const SheetName = "15 Days Challenge"

// ContentType is the MIME type of an xlsx workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type column struct {
	header string
	width  float64
}

var columns = []column{
	{"Day", 8},
	{"Tense", 20},
	{"Sentence to Translate", 50},
	{"Sample Translation", 50},
	{"New Vocabulary", 60},
	{"Review Vocabulary", 40},
}

const (
	vocabSeparator  = "; "
	reviewSeparator = ", "
)

// FileName returns the download name for a schedule exported on day now.
func FileName(now time.Time) string {
	return fmt.Sprintf("15-day-translation-%s.xlsx", now.Format(time.DateOnly))
}

// WriteSchedule writes s as a one-sheet workbook, one row per day.
func WriteSchedule(w io.Writer, s challenge.Schedule) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c.header
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, name, name, c.width); err != nil {
			return fmt.Errorf("setting column width: %w", err)
		}
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(SheetName, "A1", lastHeader, bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	for i, d := range s.Days {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{
			d.Day,
			cellText(d.Tense),
			cellText(d.SourceText),
			cellText(d.TargetText),
			cellText(FormatVocabulary(d.NewVocabulary)),
			cellText(strings.Join(d.ReviewVocabulary, reviewSeparator)),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("writing day %d: %w", d.Day, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// charEscape matches text a reader decodes as an _xHHHH_ character escape.
var charEscape = regexp.MustCompile(`_x[0-9A-Fa-f]{4}_`)

// cellText escapes literal _xHHHH_ runs with _x005F_ so they read back unchanged.
func cellText(s string) string {
	return charEscape.ReplaceAllString(s, "_x005F$0")
}

// ReadSchedule reads a workbook produced by WriteSchedule. Day, tense and both
// texts round-trip exactly; vocabulary cells are parsed on a best effort basis.
func ReadSchedule(r io.Reader) (challenge.Schedule, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return challenge.Schedule{}, fmt.Errorf("opening workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return challenge.Schedule{}, fmt.Errorf("reading rows: %w", err)
	}
	if len(rows) == 0 {
		return challenge.Schedule{}, errors.New("workbook is empty")
	}
	if len(rows[0]) < len(columns) || rows[0][0] != columns[0].header {
		return challenge.Schedule{}, fmt.Errorf("unexpected header %q", rows[0])
	}

	var s challenge.Schedule
	for i, row := range rows[1:] {
		// GetRows trims trailing empty cells.
		for len(row) < len(columns) {
			row = append(row, "")
		}
		day, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			return challenge.Schedule{}, fmt.Errorf("row %d: invalid day %q", i+2, row[0])
		}
		s.Days = append(s.Days, challenge.DayChallenge{
			Day: day,
			Lesson: challenge.Lesson{
				Tense:            row[1],
				SourceText:       row[2],
				TargetText:       row[3],
				NewVocabulary:    ParseVocabulary(row[4]),
				ReviewVocabulary: splitNonEmpty(row[5], reviewSeparator),
			},
		})
	}
	return s, nil
}

// FormatVocabulary renders entries as "word (type): translation" joined by "; ".
func FormatVocabulary(entries []challenge.VocabularyEntry) string {
	parts := make([]string, len(entries))
	for i, v := range entries {
		parts[i] = fmt.Sprintf("%s (%s): %s", v.Word, v.PartOfSpeech, v.Translation)
	}
	return strings.Join(parts, vocabSeparator)
}

// ParseVocabulary is the inverse of FormatVocabulary. Unparseable items keep
// their text as the word.
func ParseVocabulary(cell string) []challenge.VocabularyEntry {
	var out []challenge.VocabularyEntry
	for _, item := range splitNonEmpty(cell, vocabSeparator) {
		head, translation, ok := strings.Cut(item, "): ")
		if !ok {
			out = append(out, challenge.VocabularyEntry{Word: item})
			continue
		}
		word, pos, ok := strings.Cut(head, " (")
		if !ok {
			out = append(out, challenge.VocabularyEntry{Word: head, Translation: translation})
			continue
		}
		out = append(out, challenge.VocabularyEntry{Word: word, PartOfSpeech: pos, Translation: translation})
	}
	return out
}

func splitNonEmpty(s, sep string) []string {
	out := []string{}
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
