package setting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prompt-manager/prompt-manager/internal/db/dbtest"
)

func TestGet(t *testing.T) {
	db := dbtest.Open(t)
	require.NoError(t, Set(db, "img_quality", "80"))

	testCases := []struct {
		name          string
		nilDB         bool
		settingName   string
		expectedError error
		expectedValue string
	}{
		{name: "nil database", nilDB: true, settingName: "x", expectedError: ErrDBNil},
		{name: "empty name", settingName: "", expectedError: ErrSettingNameEmpty},
		{name: "setting not found", settingName: "nonexistent", expectedError: ErrSettingNotFound},
		{name: "successful get", settingName: "img_quality", expectedValue: "80"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dbParam := db
			if tc.nilDB {
				dbParam = nil
			}

			s, err := Get(dbParam, tc.settingName)
			if tc.expectedError != nil {
				assert.ErrorIs(t, err, tc.expectedError)
				assert.Nil(t, s)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expectedValue, s.Value)
		})
	}
}

func TestSetUpserts(t *testing.T) {
	db := dbtest.Open(t)

	require.NoError(t, Set(db, "items_per_page", "24"))
	require.NoError(t, Set(db, "items_per_page", "48"))

	all, err := GetAll(db)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"items_per_page": "48"}, all)

	assert.ErrorIs(t, Set(db, "", "x"), ErrSettingNameEmpty)
	assert.ErrorIs(t, Set(nil, "a", "x"), ErrDBNil)
}

func TestDeleteByName(t *testing.T) {
	db := dbtest.Open(t)
	require.NoError(t, Set(db, "approval_gallery", "0"))

	require.NoError(t, DeleteByName(db, "approval_gallery"))
	assert.ErrorIs(t, DeleteByName(db, "approval_gallery"), ErrSettingNotFound)

	_, err := Get(db, "approval_gallery")
	assert.ErrorIs(t, err, ErrSettingNotFound)
}
