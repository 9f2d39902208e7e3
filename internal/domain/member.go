package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type MemberID string

const (
	DefaultMemberFullName = "Unknown Author"
	DefaultMemberColor    = "black"
	DefaultMemberImageURL = "avatar-joe.png"
)

const (
	memberFullNameKey = "fullName"
	memberColorKey    = "color"
	memberImageURLKey = "imageUrl"
)

// MemberProperties share one flat object on the wire.
type MemberProperties struct {
	FullName string
	Color    string
	ImageURL string
	Extra    map[string]string
}

func (p MemberProperties) MarshalJSON() ([]byte, error) {
	flat := make(map[string]string, len(p.Extra)+3)
	for key, value := range p.Extra {
		flat[key] = value
	}
	if p.FullName != "" {
		flat[memberFullNameKey] = p.FullName
	}
	if p.Color != "" {
		flat[memberColorKey] = p.Color
	}
	if p.ImageURL != "" {
		flat[memberImageURLKey] = p.ImageURL
	}

	return json.Marshal(flat)
}

func (p *MemberProperties) UnmarshalJSON(data []byte) error {
	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	*p = MemberProperties{}
	for key, value := range flat {
		switch key {
		case memberFullNameKey:
			p.FullName = value
		case memberColorKey:
			p.Color = value
		case memberImageURLKey:
			p.ImageURL = value
		default:
			if p.Extra == nil {
				p.Extra = map[string]string{}
			}
			p.Extra[key] = value
		}
	}

	return nil
}

func (p MemberProperties) IsZero() bool {
	return p.FullName == "" && p.Color == "" && p.ImageURL == "" && len(p.Extra) == 0
}

type Member struct {
	ID         MemberID         `json:"id"`
	Properties MemberProperties `json:"properties"`
}

func NewMember(id MemberID, props MemberProperties) Member {
	if props.FullName == "" {
		props.FullName = DefaultMemberFullName
	}
	if props.Color == "" {
		props.Color = DefaultMemberColor
	}
	if props.ImageURL == "" {
		props.ImageURL = DefaultMemberImageURL
	}
	props.Extra = cloneStrings(props.Extra)

	return Member{ID: id, Properties: props}
}

func (m Member) Validate() error {
	if strings.TrimSpace(string(m.ID)) == "" {
		return fmt.Errorf("member id is required")
	}

	return nil
}

func (m Member) WithProperties(set MemberProperties) Member {
	next := m
	next.Properties.Extra = cloneStrings(m.Properties.Extra)
	if set.FullName != "" {
		next.Properties.FullName = set.FullName
	}
	if set.Color != "" {
		next.Properties.Color = set.Color
	}
	if set.ImageURL != "" {
		next.Properties.ImageURL = set.ImageURL
	}
	for key, value := range set.Extra {
		if next.Properties.Extra == nil {
			next.Properties.Extra = map[string]string{}
		}
		next.Properties.Extra[key] = value
	}

	return next
}

// WithoutProperties drops the named extra properties. The display name, color
// and image are never removed.
func (m Member) WithoutProperties(keys []string) Member {
	next := m
	next.Properties.Extra = cloneStrings(m.Properties.Extra)
	for _, key := range keys {
		delete(next.Properties.Extra, key)
	}
	if len(next.Properties.Extra) == 0 {
		next.Properties.Extra = nil
	}

	return next
}

func cloneStrings(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}

	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}

	return out
}
