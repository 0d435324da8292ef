package mcp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinsuchenak/labeld/internal/layout"
	"github.com/martinsuchenak/labeld/internal/model"
)

var a4 = Defaults{Page: layout.Size{Width: 210, Height: 297}, Margins: layout.Margins{Horizontal: 5, Vertical: 5}}

func TestResolvePage(t *testing.T) {
	tests := []struct {
		name         string
		page, mh, mv string
		wantPage     layout.Size
		wantMargins  layout.Margins
		wantErr      bool
	}{
		{name: "defaults", wantPage: a4.Page, wantMargins: a4.Margins},
		{name: "named page", page: "4x6", wantPage: layout.Size{Width: 101.6, Height: 152.4}, wantMargins: a4.Margins},
		{name: "explicit page and margins", page: "100x50", mh: "0", mv: "2.5mm",
			wantPage: layout.Size{Width: 100, Height: 50}, wantMargins: layout.Margins{Horizontal: 0, Vertical: 2.5}},
		{name: "unknown page", page: "napkin", wantErr: true},
		{name: "bad margin", mh: "wide", wantErr: true},
		{name: "negative margin", mv: "-1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, margins, err := resolvePage(a4, tt.page, tt.mh, tt.mv)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantMargins, margins)
		})
	}
}

func TestParseBool(t *testing.T) {
	v, err := parseBool("")
	assert.NoError(t, err)
	assert.False(t, v)

	v, err = parseBool("true")
	assert.NoError(t, err)
	assert.True(t, v)

	_, err = parseBool("sometimes")
	assert.Error(t, err)
}

func TestFitSummary(t *testing.T) {
	assert.Equal(t, "Fits as designed on 210x297mm: 3 columns x 9 rows, 27 per page",
		fitSummary(layout.Size{Width: 62, Height: 29}, a4.Page, a4.Margins))
	assert.Equal(t, "Fits rotated 90° on 210x297mm: 1 columns x 1 rows, 1 per page",
		fitSummary(layout.Size{Width: 250, Height: 100}, a4.Page, a4.Margins))
	assert.True(t, strings.HasPrefix(fitSummary(layout.Size{Width: 300, Height: 300}, a4.Page, a4.Margins), "Does not fit"))
}

func TestSummaries(t *testing.T) {
	shared := &model.Template{ID: "t1", Name: "Standard", Document: model.TemplateDocument{Width: 62, Height: 29}}
	owned := &model.Template{ID: "t2", OwnerID: "o1", Name: "Switch", Compatibility: []string{"switch", "router"},
		Document: model.TemplateDocument{Width: 100, Height: 50}}

	assert.Equal(t, "- Standard (ID: t1, 62x29mm, shared, universal)", templateSummary(shared))
	assert.Equal(t, "- Switch (ID: t2, 100x50mm, owner, switch, router)", templateSummary(owned))

	m := &model.MatchResult{Template: owned, Reason: model.ReasonCompatible, Confidence: 0.6, MatchedBy: "switch"}
	assert.Equal(t, "Switch (ID: t2) reason=compatible confidence=0.6 matched_by=switch", matchSummary(m))
}

func TestHandleRequest_RequiresToken(t *testing.T) {
	s := NewServer(nil, nil, nil, a4, "secret")

	for _, auth := range []string{"", "Bearer wrong", "secret"} {
		req := httptest.NewRequest("POST", "/mcp", strings.NewReader(`{}`))
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		w := httptest.NewRecorder()
		s.HandleRequest(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "auth %q", auth)
	}
}
