package properties

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ethpandaops/smart-pricing/internal/records"
	"github.com/ethpandaops/smart-pricing/internal/testutil"
	"github.com/ethpandaops/smart-pricing/internal/upstream/mocks"
)

func TestBuild(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)
	ctx := testutil.NewTestContext(t)

	src.EXPECT().PropertyMappings(gomock.Any()).Return([]records.PropertyMapping{
		{PropertyID: 20, HotelID: 7, Role: records.RoleClient},
		{PropertyID: 10, HotelID: 3, Role: records.RoleComp, IsUsingIMS: true},
		{PropertyID: 10, HotelID: 1, Role: records.RoleClient, IsUsingIMS: true},
		{PropertyID: 10, HotelID: 2, Role: records.RoleComp, IsUsingIMS: true},
		{PropertyID: 10, HotelID: 2, Role: records.RoleComp, IsUsingIMS: true},
		{PropertyID: 30, HotelID: 9, Role: records.RoleComp},
		{PropertyID: 20, HotelID: 8, Role: "owner"},
	}, nil)

	src.EXPECT().RoomTypeMappings(gomock.Any(), []int64{10, 20, 30}).Return([]records.RoomTypeMapping{
		{PropertyID: 10, Channel: "agoda", RoomName: "Deluxe Double", RoomType: "DLX"},
	}, nil)

	props, err := Build(ctx, testutil.NewTestLogger(), src)
	require.NoError(t, err)

	// Property 30 has no client hotel and is dropped.
	require.Len(t, props, 2)

	assert.Equal(t, int64(10), props[0].PropertyID)
	assert.Equal(t, []int64{1}, props[0].ClientIDs)
	assert.Equal(t, []int64{2, 3}, props[0].CompIDs)
	assert.True(t, props[0].IsUsingIMS)
	require.Len(t, props[0].RoomTypes, 1)

	assert.Equal(t, int64(20), props[1].PropertyID)
	assert.Equal(t, []int64{}, props[1].CompIDs)
	assert.False(t, props[1].IsUsingIMS)
}

func TestBuild_SourceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)

	src.EXPECT().PropertyMappings(gomock.Any()).Return(nil, errors.New("timeout"))

	_, err := Build(testutil.NewTestContext(t), testutil.NewTestLogger(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch property mappings")
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "properties", "properties.json")
	props := []records.Property{
		{PropertyID: 10, ClientIDs: []int64{1}, CompIDs: []int64{2, 3}, IsUsingIMS: true},
	}

	require.NoError(t, Save(path, props))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, props, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"is_using_IMS": true`)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content *string
		want    error
	}{
		{name: "missing", content: nil, want: ErrMissing},
		{name: "corrupt", content: strPtr(`[{"property_id":`), want: ErrInvalid},
		{name: "fails validation", content: strPtr(`[{"property_id": 1, "client_ids": []}]`), want: ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "properties.json")

			if tt.content != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tt.content), 0o600))
			}

			_, err := Load(path)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEntityIDsAndFind(t *testing.T) {
	props := []records.Property{
		{PropertyID: 10, ClientIDs: []int64{5}, CompIDs: []int64{2, 3}},
		{PropertyID: 11, ClientIDs: []int64{3}, CompIDs: []int64{1}},
	}

	assert.Equal(t, []int64{1, 2, 3, 5}, EntityIDs(props))

	p, ok := Find(props, 11)
	require.True(t, ok)
	assert.Equal(t, []int64{3}, p.ClientIDs)

	_, ok = Find(props, 99)
	assert.False(t, ok)
}

func strPtr(s string) *string {
	return &s
}
