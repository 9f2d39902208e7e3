package ops

import "github.com/bnema/odfops/internal/domain"

// Metadata fields maintained by the editor itself.
var blockedMetadata = map[string]struct{}{
	"dc:date":             {},
	"dc:creator":          {},
	"meta:editing-cycles": {},
}

type UpdateMetadataSpec struct {
	Header
	SetProperties     map[string]string `json:"setProperties,omitempty"`
	RemovedProperties []string          `json:"removedProperties,omitempty"`
}

func (s UpdateMetadataSpec) kind() domain.OpType { return domain.OpUpdateMetadata }

func (s UpdateMetadataSpec) withHeader(h Header) Spec {
	s.Header = h
	return s
}

func (s UpdateMetadataSpec) prepare() (Spec, error) {
	if err := s.Header.validate(); err != nil {
		return nil, err
	}
	s.SetProperties = emptyToNilMap(s.SetProperties)
	s.RemovedProperties = emptyToNilStrings(s.RemovedProperties)
	if s.SetProperties == nil && s.RemovedProperties == nil {
		return nil, malformed(s.OpType, "setProperties or removedProperties is required")
	}
	for key := range s.SetProperties {
		if _, blocked := blockedMetadata[key]; blocked {
			return nil, malformed(s.OpType, "metadata %q cannot be set", key)
		}
	}
	for _, key := range s.RemovedProperties {
		if _, blocked := blockedMetadata[key]; blocked {
			return nil, malformed(s.OpType, "metadata %q cannot be removed", key)
		}
	}

	return s, nil
}

func (s UpdateMetadataSpec) build() Operation {
	return &UpdateMetadata{meta: newMeta(s.Header, true), spec: s}
}

type UpdateMetadata struct {
	meta
	spec UpdateMetadataSpec
}

func (o *UpdateMetadata) Spec() Spec { return o.spec }

func (o *UpdateMetadata) Execute(doc Document) bool {
	doc.UpdateMetadata(o.spec.SetProperties, o.spec.RemovedProperties)
	doc.Emit(o.event(domain.EventMetadataUpdated, nil))
	return true
}
