package review

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "data"), "")
	require.NoError(t, err)
	return store
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func loadFile(t *testing.T, path string) *Table {
	t.Helper()
	table, err := readTableFile(path)
	require.NoError(t, err)
	return table
}

func TestStore_Paths(t *testing.T) {
	store := newTestStore(t)
	assert.Equal(t, filepath.Join(store.DataFolder(), "reviews_dr_a.csv"), store.ReviewerPath("dr_a"))
	assert.Equal(t, filepath.Join(store.DataFolder(), "reviews_master.csv"), store.MasterPath())
}

func TestStore_LoadReviewer_Missing(t *testing.T) {
	store := newTestStore(t)
	table, err := store.LoadReviewer("nobody")
	require.NoError(t, err)
	assert.True(t, table.Empty())
	assert.False(t, store.ReviewerFileExists("nobody"))
}

func TestStore_LoadReviewer_NoImageNameColumn(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.ReviewerPath("dr_a"), []byte("Foo,Bar\n1,2\n"), 0o644))

	table, err := store.LoadReviewer("dr_a")
	require.NoError(t, err)
	assert.True(t, table.Empty())
	assert.Equal(t, Columns, table.Header())
}

func TestStore_LoadReviewer_Corrupt(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.ReviewerPath("dr_a"), []byte("Reviewer,ImageName\na,b,c,d\n"), 0o644))

	_, err := store.LoadReviewer("dr_a")
	require.Error(t, err)
}

func TestStore_Append_WritesOneRowToBothFiles(t *testing.T) {
	store := newTestStore(t)
	rec := Record{Reviewer: "dr_a", ImageName: "x.png", Condition: ConditionFungal, DiagnosticNote: "hyphae"}

	require.NoError(t, store.Append(rec))

	for _, path := range []string{store.ReviewerPath("dr_a"), store.MasterPath()} {
		table := loadFile(t, path)
		require.Equal(t, 1, table.Len(), path)
		assert.Equal(t, rec, table.Record(0), path)
	}

	require.NoError(t, store.Append(Record{Reviewer: "dr_a", ImageName: "y.png", Condition: ConditionOthers}))
	assert.Equal(t,
		"Reviewer,ImageName,Condition,DiagnosticNote,Feedback\n"+
			"dr_a,x.png,Fungal,hyphae,\n"+
			"dr_a,y.png,Others,,\n",
		readFile(t, store.ReviewerPath("dr_a")))
	assert.Equal(t, 2, loadFile(t, store.MasterPath()).Len())
}

func TestStore_Append_EmptyFileGetsHeader(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.ReviewerPath("dr_a"), nil, 0o644))

	require.NoError(t, store.Append(Record{Reviewer: "dr_a", ImageName: "x.png", Condition: ConditionBacterial}))

	table, err := store.LoadReviewer("dr_a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x.png"}, table.ImageNames())
}

func TestStore_Append_FollowsExistingHeaderOrder(t *testing.T) {
	store := newTestStore(t)
	existing := "ImageName,Reviewer,Condition,DiagnosticNote,Feedback,Site\nold.png,dr_a,Fungal,,,clinic-1"
	require.NoError(t, os.WriteFile(store.ReviewerPath("dr_a"), []byte(existing), 0o644))

	require.NoError(t, store.Append(Record{Reviewer: "dr_a", ImageName: "new.png", Condition: ConditionNotSure}))

	assert.Equal(t,
		existing+"\nnew.png,dr_a,Not Sure,,,\n",
		readFile(t, store.ReviewerPath("dr_a")))
}

func TestStore_SaveReviewer_UpdateKeepsRowCount(t *testing.T) {
	store := newTestStore(t)
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		require.NoError(t, store.Append(Record{Reviewer: "dr_a", ImageName: name, Condition: ConditionBacterial}))
	}

	table, err := store.LoadReviewer("dr_a")
	require.NoError(t, err)
	require.NoError(t, table.Update(Record{ImageName: "b.png", Condition: ConditionFungal, Feedback: "better"}))
	require.NoError(t, store.SaveReviewer("dr_a", table))

	reloaded, err := store.LoadReviewer("dr_a")
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Len())
	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, reloaded.ImageNames())
	assert.Equal(t, ConditionFungal, reloaded.Record(1).Condition)
	assert.Equal(t, "better", reloaded.Record(1).Feedback)

	leftovers, err := filepath.Glob(filepath.Join(store.DataFolder(), ".reviews-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestStore_RebuildMaster_UnionOfReviewerFiles(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Append(Record{Reviewer: "dr_b", ImageName: "b.png", Condition: ConditionOthers}))
	require.NoError(t, store.Append(Record{Reviewer: "dr_a", ImageName: "a.png", Condition: ConditionFungal}))
	require.NoError(t, store.Append(Record{Reviewer: "dr_a", ImageName: "c.png", Condition: ConditionNotSure}))

	// Master drifted away from the reviewer files
	require.NoError(t, os.WriteFile(store.MasterPath(), []byte("Reviewer,ImageName\nstale,stale.png\n"), 0o644))
	// An unreadable reviewer file must not abort the rebuild
	require.NoError(t, os.WriteFile(store.ReviewerPath("broken"), []byte("A,B\n1,2,3\n"), 0o644))

	rows, err := store.RebuildMaster()
	require.NoError(t, err)
	assert.Equal(t, 3, rows)

	master := loadFile(t, store.MasterPath())
	assert.Equal(t, Columns, master.Header())
	assert.Equal(t, []string{"a.png", "c.png", "b.png"}, master.ImageNames())
}

func TestStore_RebuildMaster_NoReviewerFiles(t *testing.T) {
	store := newTestStore(t)

	rows, err := store.RebuildMaster()
	require.NoError(t, err)
	assert.Equal(t, 0, rows)
	assert.Equal(t, "Reviewer,ImageName,Condition,DiagnosticNote,Feedback\n", readFile(t, store.MasterPath()))
}

func TestStore_Reviewers(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Append(Record{Reviewer: "zed", ImageName: "a.png", Condition: ConditionOthers}))
	require.NoError(t, store.Append(Record{Reviewer: "amy", ImageName: "a.png", Condition: ConditionOthers}))
	require.NoError(t, os.WriteFile(filepath.Join(store.DataFolder(), "notes.txt"), []byte("x"), 0o644))

	reviewers, err := store.Reviewers()
	require.NoError(t, err)
	assert.Equal(t, []string{"amy", "zed"}, reviewers)
}

func TestStore_ExportReviewer(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Append(Record{Reviewer: "dr_a", ImageName: "a.png", Condition: ConditionFungal, DiagnosticNote: "x, y"}))

	var buf bytes.Buffer
	require.NoError(t, store.ExportReviewer("dr_a", &buf))
	assert.Equal(t,
		"Reviewer,ImageName,Condition,DiagnosticNote,Feedback\ndr_a,a.png,Fungal,\"x, y\",\n",
		buf.String())

	err := store.ExportReviewer("missing", &buf)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore_NormalizeReviewerID_CustomMasterName(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "data"), "reviews_all.csv")
	require.NoError(t, err)

	for _, raw := range []string{"all", " ALL ", "All"} {
		_, err := store.NormalizeReviewerID(raw)
		assert.ErrorIs(t, err, ErrInvalidReviewer, raw)
	}

	// master is only reserved through the package rules
	id, err := store.NormalizeReviewerID("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", id)
}

func TestStore_CustomMasterName_KeepsReviewerFilesSeparate(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "data"), "reviews_all.csv")
	require.NoError(t, err)

	require.NoError(t, store.AppendNew(Record{Reviewer: "alice", ImageName: "a.png", Condition: ConditionFungal}))
	err = store.AppendNew(Record{Reviewer: "all", ImageName: "b.png", Condition: ConditionFungal})
	assert.ErrorIs(t, err, ErrInvalidReviewer)
	assert.ErrorIs(t, store.Append(Record{Reviewer: "all", ImageName: "b.png", Condition: ConditionFungal}), ErrInvalidReviewer)

	master := loadFile(t, store.MasterPath())
	assert.Equal(t, []string{"a.png"}, master.ImageNames())

	rows, err := store.RebuildMaster()
	require.NoError(t, err)
	assert.Equal(t, 1, rows)
	reviewers, err := store.Reviewers()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, reviewers)
}

func TestStore_AppendNew_RejectsDuplicate(t *testing.T) {
	store := newTestStore(t)
	rec := Record{Reviewer: "dr_a", ImageName: "a.png", Condition: ConditionFungal}

	require.NoError(t, store.AppendNew(rec))
	assert.ErrorIs(t, store.AppendNew(rec), ErrAlreadyReviewed)

	assert.Equal(t, 1, loadFile(t, store.ReviewerPath("dr_a")).Len())
	assert.Equal(t, 1, loadFile(t, store.MasterPath()).Len())
}

func TestStore_AppendNew_ConcurrentSubmits(t *testing.T) {
	store := newTestStore(t)
	rec := Record{Reviewer: "dr_a", ImageName: "a.png", Condition: ConditionOthers}

	const submits = 8
	var wg sync.WaitGroup
	errs := make(chan error, submits)
	for i := 0; i < submits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.AppendNew(rec)
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, ErrAlreadyReviewed), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, loadFile(t, store.ReviewerPath("dr_a")).Len())
	assert.Equal(t, 1, loadFile(t, store.MasterPath()).Len())
}
