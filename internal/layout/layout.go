// Package layout plans how rendered stickers are placed on printed pages.
//
// All lengths are millimetres. Every fit decision includes BufferMM around a
// sticker: page and sticker sizes go through unit conversions on their way to
// the renderer, and an exact fit on paper is rejected there after rounding.
package layout

import (
	"errors"
	"fmt"
	"math"

	"github.com/martinsuchenak/labeld/internal/model"
)

// BufferMM is the tolerance added to each sticker dimension.
const BufferMM = 2.0

// MaxPageMM bounds each page dimension. Continuous label rolls stay well
// below it.
const MaxPageMM = 10000.0

// maxCells caps the grid along one axis so Columns*Rows fits in an int.
const maxCells = 1 << 15

// ErrStickerTooLarge is returned when a sticker fits the page in neither
// orientation. The caller can retry with another page size.
var ErrStickerTooLarge = fmt.Errorf("sticker does not fit page: %w", model.ErrValidation)

// ErrInvalidSize is returned for non-positive or non-finite dimensions,
// pages larger than MaxPageMM, and negative or non-finite margins.
var ErrInvalidSize = fmt.Errorf("invalid size: %w", model.ErrValidation)

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rotated returns the size with width and height swapped.
func (s Size) Rotated() Size {
	return Size{Width: s.Height, Height: s.Width}
}

func (s Size) String() string {
	return fmt.Sprintf("%gx%gmm", s.Width, s.Height)
}

func (s Size) valid() bool {
	return s.Width > 0 && s.Height > 0 && !math.IsInf(s.Width, 0) && !math.IsInf(s.Height, 0)
}

// Margins are applied on both sides of each axis.
type Margins struct {
	Horizontal float64 `json:"horizontal"`
	Vertical   float64 `json:"vertical"`
}

func (m Margins) valid() bool {
	return finite(m.Horizontal) && finite(m.Vertical) && m.Horizontal >= 0 && m.Vertical >= 0
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Usable returns the page area inside the margins.
func (m Margins) Usable(page Size) Size {
	return Size{
		Width:  page.Width - 2*m.Horizontal,
		Height: page.Height - 2*m.Vertical,
	}
}

// Fit is the outcome of a fit check.
type Fit struct {
	Fits    bool `json:"fits"`
	Rotated bool `json:"rotated"`
	// Size is the sticker size as it will be placed.
	Size Size `json:"size"`
}

// Grid is the per-page cell arrangement for one sticker size.
type Grid struct {
	Columns int
	Rows    int
}

// PerPage returns the number of stickers on a page.
func (g Grid) PerPage() int {
	return g.Columns * g.Rows
}

// cells returns how many buffered stickers fit along each axis, without the
// lower bound of one applied.
func cells(sticker, usable Size) (cols, rows int) {
	return axisCells(usable.Width, sticker.Width), axisCells(usable.Height, sticker.Height)
}

func axisCells(usable, length float64) int {
	n := math.Floor(usable / (length + BufferMM))
	switch {
	case math.IsNaN(n) || n < 0:
		return 0
	case n > maxCells:
		return maxCells
	}
	return int(n)
}

func fitsAsIs(sticker, usable Size) bool {
	cols, rows := cells(sticker, usable)
	return cols >= 1 && rows >= 1
}

// ValidateFit reports whether the sticker can be printed on the page and
// whether it must be rotated. A sticker that fits unrotated is never rotated,
// even if rotation would pack more per page.
func ValidateFit(sticker, page Size, margins Margins) Fit {
	if !sticker.valid() || !page.valid() || !margins.valid() {
		return Fit{}
	}
	usable := margins.Usable(page)
	if fitsAsIs(sticker, usable) {
		return Fit{Fits: true, Size: sticker}
	}
	if fitsAsIs(sticker.Rotated(), usable) {
		return Fit{Fits: true, Rotated: true, Size: sticker.Rotated()}
	}
	return Fit{}
}

// GridFor computes the auto-fit grid for an already oriented sticker.
func GridFor(placed, page Size, margins Margins) Grid {
	cols, rows := cells(placed, margins.Usable(page))
	return Grid{Columns: max(1, cols), Rows: max(1, rows)}
}

// Check validates both sizes and returns the orientation to use, or an error
// wrapping model.ErrValidation.
func Check(sticker, page Size, margins Margins) (Fit, error) {
	if !sticker.valid() {
		return Fit{}, fmt.Errorf("sticker %s: %w", sticker, ErrInvalidSize)
	}
	if !page.valid() || page.Width > MaxPageMM || page.Height > MaxPageMM {
		return Fit{}, fmt.Errorf("page %s: %w", page, ErrInvalidSize)
	}
	if !margins.valid() {
		return Fit{}, fmt.Errorf("margins %g/%g: %w", margins.Horizontal, margins.Vertical, ErrInvalidSize)
	}
	fit := ValidateFit(sticker, page, margins)
	if !fit.Fits {
		return Fit{}, fmt.Errorf("sticker %s on page %s with margins %g/%g: %w",
			sticker, page, margins.Horizontal, margins.Vertical, ErrStickerTooLarge)
	}
	return fit, nil
}

// PlanAutoFit tiles stickers row-major in a grid, filling each page before
// starting the next.
func PlanAutoFit(deviceIDs []string, sticker, page Size, margins Margins) (*model.LayoutPlan, error) {
	fit, err := Check(sticker, page, margins)
	if err != nil {
		return nil, err
	}

	placed := fit.Size
	grid := GridFor(placed, page, margins)
	perPage := grid.PerPage()

	plan := &model.LayoutPlan{
		Placements: make([]model.Placement, 0, len(deviceIDs)),
		TotalPages: pageCount(len(deviceIDs), perPage),
	}
	for i, id := range deviceIDs {
		slot := i % perPage
		col, row := slot%grid.Columns, slot/grid.Columns
		plan.Placements = append(plan.Placements, model.Placement{
			DeviceID: id,
			Page:     i / perPage,
			X:        margins.Horizontal + float64(col)*(placed.Width+BufferMM),
			Y:        margins.Vertical + float64(row)*(placed.Height+BufferMM),
			Width:    placed.Width,
			Height:   placed.Height,
			Rotated:  fit.Rotated,
		})
	}
	return plan, nil
}

// PlanOnePerPage centers each sticker alone on its own page.
func PlanOnePerPage(deviceIDs []string, sticker, page Size, margins Margins) (*model.LayoutPlan, error) {
	fit, err := Check(sticker, page, margins)
	if err != nil {
		return nil, err
	}

	placed := fit.Size
	plan := &model.LayoutPlan{
		Placements: make([]model.Placement, 0, len(deviceIDs)),
		TotalPages: len(deviceIDs),
	}
	for i, id := range deviceIDs {
		plan.Placements = append(plan.Placements, model.Placement{
			DeviceID: id,
			Page:     i,
			X:        (page.Width - placed.Width) / 2,
			Y:        (page.Height - placed.Height) / 2,
			Width:    placed.Width,
			Height:   placed.Height,
			Rotated:  fit.Rotated,
		})
	}
	return plan, nil
}

// Mode selects a layout strategy.
type Mode string

const (
	ModeAutoFit    Mode = "autofit"
	ModeOnePerPage Mode = "one_per_page"
)

// ErrUnknownMode is returned by Plan for unsupported modes.
var ErrUnknownMode = fmt.Errorf("unknown layout mode: %w", model.ErrValidation)

// Plan dispatches to the planner for mode. An empty mode means autofit.
func Plan(mode Mode, deviceIDs []string, sticker, page Size, margins Margins) (*model.LayoutPlan, error) {
	switch mode {
	case ModeAutoFit, "":
		return PlanAutoFit(deviceIDs, sticker, page, margins)
	case ModeOnePerPage:
		return PlanOnePerPage(deviceIDs, sticker, page, margins)
	default:
		return nil, fmt.Errorf("%q: %w", mode, ErrUnknownMode)
	}
}

// IsValidation reports whether err is a caller-correctable layout error.
func IsValidation(err error) bool {
	return errors.Is(err, model.ErrValidation)
}

func pageCount(n, perPage int) int {
	if n == 0 {
		return 0
	}
	return (n + perPage - 1) / perPage
}
