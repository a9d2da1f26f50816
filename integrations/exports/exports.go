// Package exports writes loan history snapshots for offline analysis.
package exports

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"lukechampine.com/blake3"

	"sentechain/native/lending"
)

var csvHeader = []string{
	"borrower",
	"loan_id",
	"principal",
	"interest_due",
	"total_due",
	"status",
	"score_at_request",
	"start_time",
	"due_date",
	"closed_at",
}

// Manifest describes one written export file.
type Manifest struct {
	Path     string `json:"path"`
	Format   string `json:"format"`
	Rows     int    `json:"rows"`
	Checksum string `json:"blake3"`
}

// WriteAll writes the CSV, Parquet and JSON Lines exports of loans into dir,
// named after the snapshot time, plus a checksum sidecar listing every file.
func WriteAll(dir string, loans []*lending.Loan, at time.Time) ([]Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("exports: create dir: %w", err)
	}
	base := "loans-" + at.UTC().Format("20060102T150405Z")
	csvManifest, err := LoansCSV(filepath.Join(dir, base+".csv"), loans)
	if err != nil {
		return nil, err
	}
	parquetManifest, err := LoansParquet(filepath.Join(dir, base+".parquet"), loans)
	if err != nil {
		return nil, err
	}
	jsonlManifest, err := LoansJSONL(filepath.Join(dir, base+".jsonl"), loans)
	if err != nil {
		return nil, err
	}
	manifests := []Manifest{*csvManifest, *parquetManifest, *jsonlManifest}
	if err := writeSums(filepath.Join(dir, base+".b3sums"), manifests); err != nil {
		return nil, err
	}
	return manifests, nil
}

// LoansCSV writes loans as CSV to path.
func LoansCSV(path string, loans []*lending.Loan) (*Manifest, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("exports: create csv: %w", err)
	}
	if err := WriteCSV(file, loans); err != nil {
		file.Close()
		return nil, err
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("exports: close csv: %w", err)
	}
	return manifest(path, "csv", countLoans(loans))
}

// WriteCSV streams loans as CSV to w.
func WriteCSV(w io.Writer, loans []*lending.Loan) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("exports: write csv header: %w", err)
	}
	for _, loan := range loans {
		if loan == nil {
			continue
		}
		record := []string{
			loan.Borrower.String(),
			strconv.FormatUint(loan.ID, 10),
			amount(loan.Principal),
			amount(loan.InterestDue),
			loan.TotalDue().String(),
			loan.Status.String(),
			strconv.FormatUint(loan.ScoreAtRequest, 10),
			strconv.FormatUint(loan.StartTime, 10),
			strconv.FormatUint(loan.DueDate, 10),
			strconv.FormatUint(loan.ClosedAt, 10),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("exports: write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("exports: flush csv: %w", err)
	}
	return nil
}

// LoanRow is the Parquet schema of a loan.
type LoanRow struct {
	Borrower       string `parquet:"name=borrower, type=BYTE_ARRAY, convertedtype=UTF8"`
	LoanID         int64  `parquet:"name=loan_id, type=INT64"`
	Principal      string `parquet:"name=principal, type=BYTE_ARRAY, convertedtype=UTF8"`
	InterestDue    string `parquet:"name=interest_due, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status         string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	ScoreAtRequest int64  `parquet:"name=score_at_request, type=INT64"`
	StartTime      int64  `parquet:"name=start_time, type=INT64"`
	DueDate        int64  `parquet:"name=due_date, type=INT64"`
	ClosedAt       int64  `parquet:"name=closed_at, type=INT64"`
}

// LoansParquet writes loans as a snappy-compressed Parquet file to path.
func LoansParquet(path string, loans []*lending.Loan) (*Manifest, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("exports: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(LoanRow), 1)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	rows := 0
	for _, loan := range loans {
		if loan == nil {
			continue
		}
		row := &LoanRow{
			Borrower:       loan.Borrower.String(),
			LoanID:         int64(loan.ID),
			Principal:      amount(loan.Principal),
			InterestDue:    amount(loan.InterestDue),
			Status:         loan.Status.String(),
			ScoreAtRequest: int64(loan.ScoreAtRequest),
			StartTime:      int64(loan.StartTime),
			DueDate:        int64(loan.DueDate),
			ClosedAt:       int64(loan.ClosedAt),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return nil, fmt.Errorf("exports: parquet write: %w", err)
		}
		rows++
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return nil, fmt.Errorf("exports: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("exports: close parquet file: %w", err)
	}
	return manifest(path, "parquet", rows)
}

// Checksum returns the hex blake3-256 digest of the file at path.
func Checksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func manifest(path, format string, rows int) (*Manifest, error) {
	sum, err := Checksum(path)
	if err != nil {
		return nil, fmt.Errorf("exports: checksum %s: %w", path, err)
	}
	return &Manifest{Path: path, Format: format, Rows: rows, Checksum: sum}, nil
}

func writeSums(path string, manifests []Manifest) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("exports: create checksums: %w", err)
	}
	for _, m := range manifests {
		if _, err := fmt.Fprintf(file, "%s  %s\n", m.Checksum, filepath.Base(m.Path)); err != nil {
			file.Close()
			return fmt.Errorf("exports: write checksums: %w", err)
		}
	}
	return file.Close()
}

func countLoans(loans []*lending.Loan) int {
	n := 0
	for _, loan := range loans {
		if loan != nil {
			n++
		}
	}
	return n
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
