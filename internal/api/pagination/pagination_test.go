package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    Page
		wantErr error
	}{
		{
			name: "defaults when nothing supplied",
			opts: Options{},
			want: Page{Limit: 20, Offset: 0},
		},
		{
			name: "page mode computes offset",
			opts: Options{Page: intPtr(3), PageSize: intPtr(10)},
			want: Page{Limit: 10, Offset: 20},
		},
		{
			name: "page mode missing page defaults to 1",
			opts: Options{PageSize: intPtr(15)},
			want: Page{Limit: 15, Offset: 0},
		},
		{
			name: "page mode missing pageSize defaults to 20",
			opts: Options{Page: intPtr(2)},
			want: Page{Limit: 20, Offset: 20},
		},
		{
			name: "offset mode",
			opts: Options{Limit: intPtr(5), Offset: intPtr(7)},
			want: Page{Limit: 5, Offset: 7},
		},
		{
			name: "offset mode missing limit defaults to 20",
			opts: Options{Offset: intPtr(3)},
			want: Page{Limit: 20, Offset: 3},
		},
		{
			name: "unlimited sentinel",
			opts: Options{Limit: intPtr(UnlimitedSentinel), Offset: intPtr(2)},
			want: Page{Offset: 2, Unlimited: true},
		},
		{
			name:    "mixing page and limit fails",
			opts:    Options{Page: intPtr(1), Limit: intPtr(5)},
			wantErr: ErrMixedStyles,
		},
		{
			name:    "mixing pageSize and offset fails",
			opts:    Options{PageSize: intPtr(10), Offset: intPtr(0)},
			wantErr: ErrMixedStyles,
		},
		{
			name:    "mixing all four fails",
			opts:    Options{Page: intPtr(1), PageSize: intPtr(10), Limit: intPtr(5), Offset: intPtr(0)},
			wantErr: ErrMixedStyles,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.opts)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPage_Slice(t *testing.T) {
	tests := []struct {
		name      string
		page      Page
		total     int
		wantStart int
		wantEnd   int
	}{
		{name: "window inside range", page: Page{Limit: 2, Offset: 1}, total: 5, wantStart: 1, wantEnd: 3},
		{name: "window past end clamps", page: Page{Limit: 10, Offset: 3}, total: 5, wantStart: 3, wantEnd: 5},
		{name: "offset past end yields empty", page: Page{Limit: 10, Offset: 9}, total: 5, wantStart: 5, wantEnd: 5},
		{name: "unlimited returns rest", page: Page{Offset: 2, Unlimited: true}, total: 5, wantStart: 2, wantEnd: 5},
		{name: "unlimited from zero returns all", page: Page{Unlimited: true}, total: 4, wantStart: 0, wantEnd: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.page.Slice(tt.total)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}
