package matching

import (
	"sort"
	"strings"

	"github.com/martinsuchenak/labeld/internal/model"
)

// scopeIndex is the in-memory view of one owner's templates and mappings.
type scopeIndex struct {
	templates []*model.Template // scan order
	byID      map[string]*model.Template
	defaults  map[string]*model.Template // normalized classification
	fallback  *model.Template
}

func newScopeIndex(templates []*model.Template) *scopeIndex {
	idx := &scopeIndex{
		byID:     make(map[string]*model.Template, len(templates)),
		defaults: make(map[string]*model.Template),
	}
	for _, t := range templates {
		if t == nil {
			continue
		}
		if _, dup := idx.byID[t.ID]; dup {
			continue
		}
		idx.byID[t.ID] = t
		idx.templates = append(idx.templates, t)
	}

	// Explicit compatibility beats universal, the owner's own beats shared.
	sort.SliceStable(idx.templates, func(i, j int) bool {
		a, b := idx.templates[i], idx.templates[j]
		if au, bu := a.IsUniversal(), b.IsUniversal(); au != bu {
			return bu
		}
		if as, bs := a.IsShared(), b.IsShared(); as != bs {
			return bs
		}
		if an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name); an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})

	for _, t := range idx.templates {
		if t.IsShared() {
			idx.fallback = t
			break
		}
	}
	if idx.fallback == nil && len(idx.templates) > 0 {
		idx.fallback = idx.templates[0]
	}
	return idx
}

// addDefault registers an active mapping. Mappings to templates the owner
// cannot see are ignored.
func (idx *scopeIndex) addDefault(m *model.DefaultMapping) {
	if m == nil || !m.Active {
		return
	}
	class := model.NormalizeClassification(m.Classification)
	if class == "" {
		return
	}
	if t, ok := idx.byID[m.TemplateID]; ok {
		idx.defaults[class] = t
	}
}

func (idx *scopeIndex) match(classification string) (*model.MatchResult, error) {
	if len(idx.templates) == 0 {
		return nil, ErrNoTemplates
	}
	class := strings.TrimSpace(classification)

	if class != "" {
		if t, ok := idx.defaults[strings.ToLower(class)]; ok {
			return &model.MatchResult{
				Template:   t,
				Reason:     model.ReasonConnectionDefault,
				Confidence: ConfidenceDefault,
				MatchedBy:  class,
			}, nil
		}
		for _, t := range idx.templates {
			if t.IsCompatibleWith(class) {
				return &model.MatchResult{
					Template:   t,
					Reason:     model.ReasonCompatible,
					Confidence: ConfidenceCompatible,
					MatchedBy:  class,
				}, nil
			}
		}
	}

	res := &model.MatchResult{
		Template:   idx.fallback,
		Reason:     model.ReasonFallback,
		Confidence: ConfidenceFallback,
	}
	if class != "" {
		res.Reason = model.ReasonFallbackIncompatible
		res.MatchedBy = class
	}
	return res, nil
}
