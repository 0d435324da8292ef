package layout

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/martinsuchenak/labeld/internal/model"
)

func deviceIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("dev-%03d", i)
	}
	return ids
}

func TestValidateFit(t *testing.T) {
	tests := []struct {
		name        string
		sticker     Size
		page        Size
		margins     Margins
		wantFits    bool
		wantRotated bool
	}{
		{"small sticker on exact usable area", Size{50, 50}, Size{54, 54}, Margins{}, true, false},
		{"small sticker on A4", Size{50, 50}, Size{210, 297}, Margins{10, 10}, true, false},
		{"wide sticker needs rotation", Size{100, 50}, Size{101.6, 152.4}, Margins{0, 2}, true, true},
		{"portrait fits as is", Size{50, 100}, Size{101.6, 152.4}, Margins{0, 2}, true, false},
		{"too large either way", Size{200, 200}, Size{101.6, 152.4}, Margins{}, false, false},
		{"buffer rejects exact fit", Size{54, 54}, Size{54, 54}, Margins{}, false, false},
		{"margins consume page", Size{50, 50}, Size{60, 60}, Margins{5, 5}, false, false},
		{"fits unrotated even if rotation packs more", Size{60, 40}, Size{130, 200}, Margins{}, true, false},
		{"zero sticker", Size{0, 10}, Size{100, 100}, Margins{}, false, false},
		{"nan page", Size{10, 10}, Size{math.NaN(), 100}, Margins{}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fit := ValidateFit(tt.sticker, tt.page, tt.margins)
			assert.Equal(t, tt.wantFits, fit.Fits)
			assert.Equal(t, tt.wantRotated, fit.Rotated)
			if fit.Rotated {
				assert.Equal(t, tt.sticker.Rotated(), fit.Size)
			}
		})
	}
}

func TestPlanAutoFit_FourBySixForcesRotation(t *testing.T) {
	page := Size{Width: 101.6, Height: 152.4}
	sticker := Size{Width: 100, Height: 50}
	margins := Margins{Horizontal: 0, Vertical: 2}

	cols, _ := cells(sticker, margins.Usable(page))
	require.Equal(t, 0, cols, "unrotated sticker must leave no usable column")

	grid := GridFor(sticker.Rotated(), page, margins)
	assert.Equal(t, Grid{Columns: 1, Rows: 1}, grid)

	plan, err := PlanAutoFit(deviceIDs(3), sticker, page, margins)
	require.NoError(t, err)
	assert.Equal(t, 3, plan.TotalPages)
	require.Len(t, plan.Placements, 3)
	for i, p := range plan.Placements {
		assert.True(t, p.Rotated, "placement %d should be rotated", i)
		assert.Equal(t, i, p.Page)
		assert.Equal(t, 50.0, p.Width)
		assert.Equal(t, 100.0, p.Height)
		assert.Equal(t, 0.0, p.X)
		assert.Equal(t, 2.0, p.Y)
	}
}

func TestPlanAutoFit_GridRowMajor(t *testing.T) {
	// A4 with 10mm margins: usable 190x277, 50x30 stickers -> 3 cols, 8 rows.
	page := Size{Width: 210, Height: 297}
	sticker := Size{Width: 50, Height: 30}
	margins := Margins{Horizontal: 10, Vertical: 10}

	plan, err := PlanAutoFit(deviceIDs(30), sticker, page, margins)
	require.NoError(t, err)
	assert.Equal(t, 2, plan.TotalPages)

	second := plan.Placements[1]
	assert.Equal(t, 0, second.Page)
	assert.InDelta(t, 10+52.0, second.X, 1e-9)
	assert.InDelta(t, 10.0, second.Y, 1e-9)

	fourth := plan.Placements[3]
	assert.InDelta(t, 10.0, fourth.X, 1e-9)
	assert.InDelta(t, 10+32.0, fourth.Y, 1e-9)

	overflow := plan.Placements[24]
	assert.Equal(t, 1, overflow.Page)
	assert.InDelta(t, 10.0, overflow.X, 1e-9)
	assert.InDelta(t, 10.0, overflow.Y, 1e-9)
	assert.False(t, overflow.Rotated)
}

func TestPlanOnePerPage(t *testing.T) {
	page := Size{Width: 101.6, Height: 152.4}
	plan, err := PlanOnePerPage(deviceIDs(4), Size{100, 50}, page, Margins{0, 2})
	require.NoError(t, err)
	assert.Equal(t, 4, plan.TotalPages)
	for i, p := range plan.Placements {
		assert.Equal(t, i, p.Page)
		assert.True(t, p.Rotated)
		assert.InDelta(t, (101.6-50)/2, p.X, 1e-9)
		assert.InDelta(t, (152.4-100)/2, p.Y, 1e-9)
	}
}

func TestPlan_RejectsOversizedStickerWithoutPlan(t *testing.T) {
	for _, mode := range []Mode{ModeAutoFit, ModeOnePerPage} {
		plan, err := Plan(mode, deviceIDs(2), Size{300, 300}, Size{210, 297}, Margins{})
		assert.Nil(t, plan)
		assert.ErrorIs(t, err, ErrStickerTooLarge)
		assert.ErrorIs(t, err, model.ErrValidation)
		assert.True(t, IsValidation(err))
	}
}

func TestPlan_UnknownMode(t *testing.T) {
	_, err := Plan("spiral", deviceIDs(1), Size{10, 10}, Size{100, 100}, Margins{})
	assert.True(t, errors.Is(err, ErrUnknownMode))
}

func TestPlan_EmptyBatch(t *testing.T) {
	plan, err := PlanAutoFit(nil, Size{10, 10}, Size{100, 100}, Margins{})
	require.NoError(t, err)
	assert.Equal(t, 0, plan.TotalPages)
	assert.Empty(t, plan.Placements)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    Size
		wantErr bool
	}{
		{"A4", Size{210, 297}, false},
		{" letter ", Size{215.9, 279.4}, false},
		{"4x6", Size{101.6, 152.4}, false},
		{"100x50", Size{100, 50}, false},
		{"101.6x152.4mm", Size{101.6, 152.4}, false},
		{"100", Size{}, true},
		{"axb", Size{}, true},
		{"0x10", Size{}, true},
		{"20000x100", Size{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSize)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Contains(t, PageSizeNames(), "a4")
}

func TestValidateFit_NeverRotatesWhenUnrotatedFits(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sticker := Size{rapid.Float64Range(1, 300).Draw(t, "sw"), rapid.Float64Range(1, 300).Draw(t, "sh")}
		page := Size{rapid.Float64Range(10, 500).Draw(t, "pw"), rapid.Float64Range(10, 500).Draw(t, "ph")}
		margins := Margins{rapid.Float64Range(0, 20).Draw(t, "mh"), rapid.Float64Range(0, 20).Draw(t, "mv")}

		fit := ValidateFit(sticker, page, margins)
		usable := margins.Usable(page)
		if fitsAsIs(sticker, usable) {
			if !fit.Fits || fit.Rotated {
				t.Fatalf("sticker %s fits %s unrotated but got %+v", sticker, usable, fit)
			}
			return
		}
		if fit.Fits != fitsAsIs(sticker.Rotated(), usable) {
			t.Fatalf("fit %+v disagrees with rotated check", fit)
		}
	})
}

func TestPlanAutoFit_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sticker := Size{rapid.Float64Range(5, 150).Draw(t, "sw"), rapid.Float64Range(5, 150).Draw(t, "sh")}
		page := Size{rapid.Float64Range(50, 400).Draw(t, "pw"), rapid.Float64Range(50, 400).Draw(t, "ph")}
		margins := Margins{rapid.Float64Range(0, 10).Draw(t, "mh"), rapid.Float64Range(0, 10).Draw(t, "mv")}
		n := rapid.IntRange(0, 120).Draw(t, "n")

		plan, err := PlanAutoFit(deviceIDs(n), sticker, page, margins)
		if !ValidateFit(sticker, page, margins).Fits {
			if err == nil || plan != nil {
				t.Fatalf("expected validation error without plan, got plan=%v err=%v", plan, err)
			}
			return
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(plan.Placements) != n {
			t.Fatalf("got %d placements for %d devices", len(plan.Placements), n)
		}

		maxPage := -1
		for _, p := range plan.Placements {
			if p.X+p.Width > page.Width-margins.Horizontal+1e-9 || p.Y+p.Height > page.Height-margins.Vertical+1e-9 {
				t.Fatalf("placement %+v exceeds usable area of page %s", p, page)
			}
			maxPage = max(maxPage, p.Page)
		}
		if plan.TotalPages != maxPage+1 {
			t.Fatalf("total pages %d but last page index %d", plan.TotalPages, maxPage)
		}
	})
}

func TestPlan_RejectsInvalidGeometry(t *testing.T) {
	huge := float64(3) * (1 << 32)
	tests := []struct {
		name    string
		sticker Size
		page    Size
		margins Margins
	}{
		{"oversized page", Size{1, 1}, Size{huge, huge}, Margins{}},
		{"negative margins", Size{120, 120}, Size{100, 100}, Margins{-20, -20}},
		{"negative vertical margin", Size{10, 10}, Size{100, 100}, Margins{5, -1}},
		{"NaN margin", Size{10, 10}, Size{100, 100}, Margins{math.NaN(), 5}},
		{"infinite margin", Size{10, 10}, Size{100, 100}, Margins{5, math.Inf(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, mode := range []Mode{ModeAutoFit, ModeOnePerPage} {
				plan, err := Plan(mode, deviceIDs(2), tt.sticker, tt.page, tt.margins)
				assert.Nil(t, plan)
				assert.ErrorIs(t, err, ErrInvalidSize)
			}
			if !tt.margins.valid() {
				assert.False(t, ValidateFit(tt.sticker, tt.page, tt.margins).Fits)
			}
		})
	}
}

func TestGridFor_CapsHugePages(t *testing.T) {
	huge := float64(3) * (1 << 32)
	grid := GridFor(Size{1, 1}, Size{huge, huge}, Margins{})
	assert.Equal(t, maxCells, grid.Columns)
	assert.Equal(t, maxCells, grid.Rows)
	assert.Positive(t, grid.PerPage())
}

func TestPlanAutoFit_LargestAllowedPage(t *testing.T) {
	plan, err := PlanAutoFit(deviceIDs(3), Size{1, 1}, Size{MaxPageMM, MaxPageMM}, Margins{})
	require.NoError(t, err)
	assert.Equal(t, 1, plan.TotalPages)
	assert.Equal(t, 3.0, plan.Placements[1].X)
}
