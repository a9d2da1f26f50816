package exports

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"sentechain/crypto"
	"sentechain/native/lending"
)

func sampleLoans() []*lending.Loan {
	borrower := crypto.ModuleAddress("exports/borrower")
	return []*lending.Loan{
		{
			ID: 0, Borrower: borrower, Principal: big.NewInt(100), InterestDue: big.NewInt(8),
			StartTime: 10, DueDate: 20, Status: lending.LoanStatusRepaid, ScoreAtRequest: 75, ClosedAt: 15,
		},
		{
			ID: 1, Borrower: borrower, Principal: big.NewInt(200), InterestDue: big.NewInt(16),
			StartTime: 30, DueDate: 40, Status: lending.LoanStatusActive, ScoreAtRequest: 77,
		},
		nil,
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleLoans()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, csvHeader, records[0])
	require.Equal(t, "108", records[1][4])
	require.Equal(t, "repaid", records[1][5])
	require.Equal(t, "active", records[2][5])
	require.Equal(t, "0", records[2][9])
}

func TestWriteAllProducesVerifiableFiles(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	manifests, err := WriteAll(dir, sampleLoans(), at)
	require.NoError(t, err)
	require.Len(t, manifests, 3)
	require.Equal(t, "jsonl", manifests[2].Format)

	for _, m := range manifests {
		require.Equal(t, 2, m.Rows)
		sum, err := Checksum(m.Path)
		require.NoError(t, err)
		require.Equal(t, m.Checksum, sum)
		require.Len(t, m.Checksum, 64)
	}

	sums, err := os.ReadFile(filepath.Join(dir, "loans-20260301T120000Z.b3sums"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(sums)), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasSuffix(lines[0], "  loans-20260301T120000Z.csv"))
	require.True(t, strings.HasPrefix(lines[1], manifests[1].Checksum))
}

func TestLoansParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loans.parquet")
	m, err := LoansParquet(path, sampleLoans())
	require.NoError(t, err)
	require.Equal(t, "parquet", m.Format)

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(LoanRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	require.Equal(t, int64(2), pr.GetNumRows())
	rows := make([]LoanRow, 2)
	require.NoError(t, pr.Read(&rows))
	require.Equal(t, "100", rows[0].Principal)
	require.Equal(t, "repaid", rows[0].Status)
	require.Equal(t, int64(1), rows[1].LoanID)
	require.Equal(t, int64(77), rows[1].ScoreAtRequest)
}

func TestChecksumChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	a, err := LoansCSV(filepath.Join(dir, "a.csv"), sampleLoans()[:1])
	require.NoError(t, err)
	b, err := LoansCSV(filepath.Join(dir, "b.csv"), sampleLoans()[:2])
	require.NoError(t, err)
	require.NotEqual(t, a.Checksum, b.Checksum)
}

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONL(&buf, sampleLoans()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.Equal(t, "108", first["totalDue"])
	require.Equal(t, "repaid", first["status"])
	require.EqualValues(t, 15, first["closedAt"])
	require.NotContains(t, lines[1], "closedAt")
}
