package ops

import (
	"strings"

	"github.com/bnema/odfops/internal/domain"
)

type AddStyleSpec struct {
	Header
	StyleName        string             `json:"styleName"`
	StyleFamily      domain.StyleFamily `json:"styleFamily"`
	IsAutomaticStyle bool               `json:"isAutomaticStyle"`
	SetProperties    map[string]string  `json:"setProperties,omitempty"`
}

func (s AddStyleSpec) kind() domain.OpType { return domain.OpAddStyle }

func (s AddStyleSpec) withHeader(h Header) Spec {
	s.Header = h
	return s
}

func (s AddStyleSpec) prepare() (Spec, error) {
	if err := s.Header.validate(); err != nil {
		return nil, err
	}
	if err := validateStyleRef(s.OpType, s.StyleName, s.StyleFamily); err != nil {
		return nil, err
	}
	s.SetProperties = emptyToNilMap(s.SetProperties)

	return s, nil
}

func (s AddStyleSpec) build() Operation {
	return &AddStyle{meta: newMeta(s.Header, true), spec: s}
}

type AddStyle struct {
	meta
	spec AddStyleSpec
}

func (o *AddStyle) Spec() Spec { return o.spec }

func (o *AddStyle) Execute(doc Document) bool {
	if _, ok := doc.GetStyle(o.spec.StyleName, o.spec.StyleFamily); ok {
		return false
	}

	style := domain.Style{
		Name:       o.spec.StyleName,
		Family:     o.spec.StyleFamily,
		Automatic:  o.spec.IsAutomaticStyle,
		Properties: cloneProperties(o.spec.SetProperties),
	}
	doc.AddStyle(style)

	kind := domain.EventCommonStyleCreated
	if style.Automatic {
		kind = domain.EventAutomaticStyleCreated
	}
	doc.Emit(o.event(kind, style.Key()))
	return true
}

type RemoveStyleSpec struct {
	Header
	StyleName   string             `json:"styleName"`
	StyleFamily domain.StyleFamily `json:"styleFamily"`
}

func (s RemoveStyleSpec) kind() domain.OpType { return domain.OpRemoveStyle }

func (s RemoveStyleSpec) withHeader(h Header) Spec {
	s.Header = h
	return s
}

func (s RemoveStyleSpec) prepare() (Spec, error) {
	if err := s.Header.validate(); err != nil {
		return nil, err
	}
	if err := validateStyleRef(s.OpType, s.StyleName, s.StyleFamily); err != nil {
		return nil, err
	}

	return s, nil
}

func (s RemoveStyleSpec) build() Operation {
	return &RemoveStyle{meta: newMeta(s.Header, true), spec: s}
}

type RemoveStyle struct {
	meta
	spec RemoveStyleSpec
}

func (o *RemoveStyle) Spec() Spec { return o.spec }

func (o *RemoveStyle) Execute(doc Document) bool {
	style, ok := doc.GetStyle(o.spec.StyleName, o.spec.StyleFamily)
	if !ok {
		return false
	}

	doc.RemoveStyle(style.Name, style.Family)

	kind := domain.EventCommonStyleDeleted
	if style.Automatic {
		kind = domain.EventAutomaticStyleDeleted
	}
	doc.Emit(o.event(kind, style.Key()))
	return true
}

func validateStyleRef(opType domain.OpType, name string, family domain.StyleFamily) error {
	if strings.TrimSpace(name) == "" {
		return malformed(opType, "styleName is required")
	}
	if strings.TrimSpace(string(family)) == "" {
		return malformed(opType, "styleFamily is required")
	}

	return nil
}

func cloneProperties(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}

	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}

	return out
}
