package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_OrdersAndSplits(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/002_b.sql": {Data: []byte("-- second\nCREATE TABLE b (id INT);\nCREATE INDEX ib ON b (id);\n")},
		"sql/001_a.sql": {Data: []byte("CREATE TABLE a (id INT);")},
		"sql/003_e.sql": {Data: []byte("-- nothing here\n\n")},
		"sql/notes.txt": {Data: []byte("ignored")},
	}

	migs, err := Read(fsys, "sql")
	require.NoError(t, err)
	require.Len(t, migs, 2)

	assert.Equal(t, "001_a.sql", migs[0].Name)
	assert.Equal(t, []string{"CREATE TABLE a (id INT)"}, migs[0].Statements)
	assert.Equal(t, "002_b.sql", migs[1].Name)
	assert.Equal(t, []string{"CREATE TABLE b (id INT)", "CREATE INDEX ib ON b (id)"}, migs[1].Statements)
}

func TestRead_RejectsQuotedSemicolon(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/001.sql": {Data: []byte("INSERT INTO t VALUES ('a;b');")},
	}
	_, err := Read(fsys, "sql")
	assert.ErrorIs(t, err, ErrSemicolonInString)
}

func TestCheckStrings_EscapedQuote(t *testing.T) {
	assert.NoError(t, checkStrings("SELECT 'it''s'; SELECT 1;"))
}

func TestEmbeddedMigrationsParse(t *testing.T) {
	pg, err := Read(PostgresFS, "postgres")
	require.NoError(t, err)
	require.NotEmpty(t, pg)
	assert.Len(t, pg[0].Statements, 3)

	ch, err := Read(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.NotEmpty(t, ch)
	assert.Contains(t, ch[0].Statements[0], "signal_outcomes")
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/tracker")
	require.NoError(t, err)
	assert.Equal(t, "tracker", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}
