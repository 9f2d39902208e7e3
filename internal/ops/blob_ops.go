package ops

import (
	"strings"

	"github.com/bnema/odfops/internal/domain"
)

type SetBlobSpec struct {
	Header
	Filename string `json:"filename"`
	Mimetype string `json:"mimetype"`
	Content  string `json:"content"`
}

func (s SetBlobSpec) kind() domain.OpType { return domain.OpSetBlob }

func (s SetBlobSpec) withHeader(h Header) Spec {
	s.Header = h
	return s
}

func (s SetBlobSpec) prepare() (Spec, error) {
	if err := s.Header.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.Filename) == "" {
		return nil, malformed(s.OpType, "filename is required")
	}

	return s, nil
}

func (s SetBlobSpec) build() Operation {
	return &SetBlob{meta: newMeta(s.Header, true), spec: s}
}

// SetBlob stores or replaces an embedded file.
type SetBlob struct {
	meta
	spec SetBlobSpec
}

func (o *SetBlob) Spec() Spec { return o.spec }

func (o *SetBlob) Execute(doc Document) bool {
	blob := domain.Blob{
		Filename: o.spec.Filename,
		Mimetype: o.spec.Mimetype,
		Content:  o.spec.Content,
	}
	doc.SetBlob(blob)
	doc.Emit(o.event(domain.EventBlobSet, blob.Filename))
	return true
}

type RemoveBlobSpec struct {
	Header
	Filename string `json:"filename"`
}

func (s RemoveBlobSpec) kind() domain.OpType { return domain.OpRemoveBlob }

func (s RemoveBlobSpec) withHeader(h Header) Spec {
	s.Header = h
	return s
}

func (s RemoveBlobSpec) prepare() (Spec, error) {
	if err := s.Header.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.Filename) == "" {
		return nil, malformed(s.OpType, "filename is required")
	}

	return s, nil
}

func (s RemoveBlobSpec) build() Operation {
	return &RemoveBlob{meta: newMeta(s.Header, true), spec: s}
}

type RemoveBlob struct {
	meta
	spec RemoveBlobSpec
}

func (o *RemoveBlob) Spec() Spec { return o.spec }

func (o *RemoveBlob) Execute(doc Document) bool {
	if _, ok := doc.GetBlob(o.spec.Filename); !ok {
		return false
	}

	doc.RemoveBlob(o.spec.Filename)
	doc.Emit(o.event(domain.EventBlobRemoved, o.spec.Filename))
	return true
}
