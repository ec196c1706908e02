package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/bates-must-flow/internal/model"
	"github.com/Veraticus/bates-must-flow/internal/service"
)

func TestSetupTestDB_SeedsRuns(t *testing.T) {
	db := SetupTestDB(t,
		NewRun("r1").Finalized(101, 103).Build(),
		NewRun("r2").At(BaseTime.Add(time.Hour)).Failed(model.KindMissingStamps).Build(),
	)

	runs, err := db.Storage.ListRuns(context.Background(), service.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)

	r1 := db.MustGetRun("r1")
	assert.Equal(t, "000101-000103_Disc02_scan.pdf", r1.NewFileName)
	assert.Equal(t, 3, r1.PageCount)
	assert.True(t, r1.Succeeded())
}

func TestRunBuilder_Failed(t *testing.T) {
	r := NewRun("x").File("bad.pdf").Folder("Misc").Failed(model.KindInvalidFolderName).Build()
	assert.Equal(t, model.StageFailed, r.Stage)
	assert.Equal(t, "bad.pdf", r.OriginalFileName)
	assert.Equal(t, "Misc", r.FolderName)
	assert.False(t, r.Succeeded())
	require.Len(t, r.Trail, 2)
}
