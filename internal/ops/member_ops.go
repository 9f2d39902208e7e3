package ops

import "github.com/bnema/odfops/internal/domain"

type AddMemberSpec struct {
	Header
	SetProperties domain.MemberProperties `json:"setProperties"`
}

func (s AddMemberSpec) kind() domain.OpType { return domain.OpAddMember }

func (s AddMemberSpec) withHeader(h Header) Spec {
	s.Header = h
	return s
}

func (s AddMemberSpec) prepare() (Spec, error) {
	if err := s.Header.validate(); err != nil {
		return nil, err
	}
	s.SetProperties.Extra = emptyToNilMap(s.SetProperties.Extra)

	return s, nil
}

func (s AddMemberSpec) build() Operation {
	return &AddMember{meta: newMeta(s.Header, false), spec: s}
}

// AddMember registers a collaborator. Missing display properties get the
// member defaults.
type AddMember struct {
	meta
	spec AddMemberSpec
}

func (o *AddMember) Spec() Spec { return o.spec }

func (o *AddMember) Execute(doc Document) bool {
	if _, ok := doc.GetMember(o.MemberID()); ok {
		return false
	}

	member := domain.NewMember(o.MemberID(), o.spec.SetProperties)
	doc.AddMember(member)
	doc.Emit(o.event(domain.EventMemberAdded, member))
	return true
}

type UpdateMemberSpec struct {
	Header
	SetProperties     *domain.MemberProperties `json:"setProperties,omitempty"`
	RemovedProperties []string                 `json:"removedProperties,omitempty"`
}

func (s UpdateMemberSpec) kind() domain.OpType { return domain.OpUpdateMember }

func (s UpdateMemberSpec) withHeader(h Header) Spec {
	s.Header = h
	return s
}

func (s UpdateMemberSpec) prepare() (Spec, error) {
	if err := s.Header.validate(); err != nil {
		return nil, err
	}
	if s.SetProperties != nil {
		props := *s.SetProperties
		props.Extra = emptyToNilMap(props.Extra)
		s.SetProperties = &props
		if props.IsZero() {
			s.SetProperties = nil
		}
	}
	s.RemovedProperties = emptyToNilStrings(s.RemovedProperties)
	if s.SetProperties == nil && s.RemovedProperties == nil {
		return nil, malformed(s.OpType, "setProperties or removedProperties is required")
	}

	return s, nil
}

func (s UpdateMemberSpec) build() Operation {
	return &UpdateMember{meta: newMeta(s.Header, false), spec: s}
}

type UpdateMember struct {
	meta
	spec UpdateMemberSpec
}

func (o *UpdateMember) Spec() Spec { return o.spec }

func (o *UpdateMember) Execute(doc Document) bool {
	member, ok := doc.GetMember(o.MemberID())
	if !ok {
		return false
	}

	if len(o.spec.RemovedProperties) > 0 {
		member = member.WithoutProperties(o.spec.RemovedProperties)
	}
	if o.spec.SetProperties != nil {
		member = member.WithProperties(*o.spec.SetProperties)
	}

	doc.UpdateMember(member)
	doc.Emit(o.event(domain.EventMemberUpdated, member))
	return true
}

type RemoveMemberSpec struct {
	Header
}

func (s RemoveMemberSpec) kind() domain.OpType { return domain.OpRemoveMember }

func (s RemoveMemberSpec) withHeader(h Header) Spec {
	s.Header = h
	return s
}

func (s RemoveMemberSpec) prepare() (Spec, error) {
	if err := s.Header.validate(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s RemoveMemberSpec) build() Operation {
	return &RemoveMember{meta: newMeta(s.Header, false), spec: s}
}

// RemoveMember drops a collaborator from the registry. The member's cursor, if
// any, stays in the document: member and cursor lifecycles are independent.
type RemoveMember struct {
	meta
	spec RemoveMemberSpec
}

func (o *RemoveMember) Spec() Spec { return o.spec }

func (o *RemoveMember) Execute(doc Document) bool {
	if _, ok := doc.GetMember(o.MemberID()); !ok {
		return false
	}

	doc.RemoveMember(o.MemberID())
	doc.Emit(o.event(domain.EventMemberRemoved, o.MemberID()))
	return true
}
