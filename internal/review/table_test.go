package review

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTable_Empty(t *testing.T) {
	table, err := ReadTable(strings.NewReader(""))
	require.NoError(t, err)
	assert.True(t, table.Empty())
	assert.Equal(t, Columns, table.Header())
}

func TestReadTable_ColumnsInAnyOrder(t *testing.T) {
	input := "ImageName,Feedback,Reviewer,Condition,DiagnosticNote\n" +
		"a.png,blurred,dr_a,Fungal,hyphae\n"

	table, err := ReadTable(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())

	assert.Equal(t, Record{
		Reviewer:       "dr_a",
		ImageName:      "a.png",
		Condition:      ConditionFungal,
		DiagnosticNote: "hyphae",
		Feedback:       "blurred",
	}, table.Record(0))
}

func TestReadTable_StripsBOMAndPadsShortRows(t *testing.T) {
	input := "\ufeffReviewer,ImageName,Condition,DiagnosticNote,Feedback\n" +
		"dr_a,a.png,Others\n"

	table, err := ReadTable(strings.NewReader(input))
	require.NoError(t, err)
	require.True(t, table.HasColumn(ColumnReviewer))
	assert.Equal(t, "dr_a", table.Get(0, ColumnReviewer))
	assert.Equal(t, "", table.Get(0, ColumnFeedback))
}

func TestReadTable_RejectsLongRows(t *testing.T) {
	input := "Reviewer,ImageName\n" +
		"dr_a,a.png,unexpected\n"

	_, err := ReadTable(strings.NewReader(input))
	require.Error(t, err)
}

func TestTable_WritePreservesQuotingAndExtraColumns(t *testing.T) {
	input := "Reviewer,ImageName,Condition,DiagnosticNote,Feedback,Site\n" +
		"dr_a,a.png,Bacterial,\"ring infiltrate, dense\",\"line one\nline two\",clinic-1\n"

	table, err := ReadTable(strings.NewReader(input))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, table.Write(&buf))

	again, err := ReadTable(&buf)
	require.NoError(t, err)
	assert.Equal(t, table.Header(), again.Header())
	assert.Equal(t, "ring infiltrate, dense", again.Get(0, ColumnDiagnosticNote))
	assert.Equal(t, "line one\nline two", again.Get(0, ColumnFeedback))
	assert.Equal(t, "clinic-1", again.Get(0, "Site"))
}

func TestTable_AppendAddsMissingColumns(t *testing.T) {
	table, err := ReadTable(strings.NewReader("ImageName\nold.png\n"))
	require.NoError(t, err)

	table.Append(Record{Reviewer: "dr_a", ImageName: "new.png", Condition: ConditionNotSure})

	require.Equal(t, 2, table.Len())
	for _, column := range Columns {
		assert.True(t, table.HasColumn(column), column)
	}
	assert.Equal(t, "", table.Get(0, ColumnReviewer))
	assert.Equal(t, "Not Sure", table.Get(1, ColumnCondition))
}

func TestTable_UpdateInPlace(t *testing.T) {
	table := NewTable()
	table.Append(Record{Reviewer: "dr_a", ImageName: "a.png", Condition: ConditionBacterial})
	table.Append(Record{Reviewer: "dr_a", ImageName: "b.png", Condition: ConditionFungal})

	err := table.Update(Record{ImageName: "b.png", Condition: ConditionOthers, DiagnosticNote: "n", Feedback: "f"})
	require.NoError(t, err)

	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"a.png", "b.png"}, table.ImageNames())
	assert.Equal(t, Record{
		Reviewer:       "dr_a",
		ImageName:      "b.png",
		Condition:      ConditionOthers,
		DiagnosticNote: "n",
		Feedback:       "f",
	}, table.Record(1))
	assert.Equal(t, ConditionBacterial, table.Record(0).Condition)
}

func TestTable_UpdateTouchesFirstDuplicateOnly(t *testing.T) {
	table := NewTable()
	table.Append(Record{ImageName: "a.png", Condition: ConditionBacterial})
	table.Append(Record{ImageName: "a.png", Condition: ConditionBacterial})

	require.NoError(t, table.Update(Record{ImageName: "a.png", Condition: ConditionFungal}))
	assert.Equal(t, ConditionFungal, table.Record(0).Condition)
	assert.Equal(t, ConditionBacterial, table.Record(1).Condition)
}

func TestTable_UpdateMissing(t *testing.T) {
	table := NewTable()
	err := table.Update(Record{ImageName: "ghost.png", Condition: ConditionFungal})
	require.ErrorIs(t, err, ErrReviewNotFound)
}

func TestTable_Prune(t *testing.T) {
	table := NewTable()
	for _, name := range []string{"a.png", "gone.png", "b.png", "also-gone.png"} {
		table.Append(Record{ImageName: name, Condition: ConditionBacterial})
	}

	removed := table.Prune(map[string]bool{"a.png": true, "b.png": true})

	assert.Equal(t, []string{"gone.png", "also-gone.png"}, removed)
	assert.Equal(t, []string{"a.png", "b.png"}, table.ImageNames())
}

func TestTable_FindUnknownCondition(t *testing.T) {
	table, err := ReadTable(strings.NewReader("Reviewer,ImageName,Condition\ndr_a,a.png,Viral\n"))
	require.NoError(t, err)

	rec, ok := table.Find("a.png")
	require.True(t, ok)
	assert.Equal(t, Condition("Viral"), rec.Condition)
	assert.False(t, rec.Condition.Valid())

	_, ok = table.Find("b.png")
	assert.False(t, ok)
}

func TestConcat_UnionOfColumns(t *testing.T) {
	first, err := ReadTable(strings.NewReader("Reviewer,ImageName,Condition,DiagnosticNote,Feedback\ndr_a,a.png,Fungal,,\n"))
	require.NoError(t, err)
	second, err := ReadTable(strings.NewReader("ImageName,Reviewer,Site\nb.png,dr_b,clinic-2\n"))
	require.NoError(t, err)

	merged := Concat(first, second)

	assert.Equal(t, append(append([]string(nil), Columns...), "Site"), merged.Header())
	require.Equal(t, 2, merged.Len())
	assert.Equal(t, []string{"dr_a", "a.png", "Fungal", "", "", ""}, merged.Row(0))
	assert.Equal(t, []string{"dr_b", "b.png", "", "", "", "clinic-2"}, merged.Row(1))
}

func TestConcat_NoTables(t *testing.T) {
	merged := Concat()
	assert.True(t, merged.Empty())
	assert.Equal(t, Columns, merged.Header())
}
