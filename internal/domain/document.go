package domain

type Paragraph struct {
	Style string `json:"style,omitempty"`
	Text  string `json:"text"`
}

// DocumentState is a canonical, order-stable view of a document replica. Two
// replicas that applied the same operations in the same order produce equal
// states.
type DocumentState struct {
	Members    []Member          `json:"members"`
	Cursors    []Cursor          `json:"cursors"`
	Styles     []Style           `json:"styles"`
	Blobs      []Blob            `json:"blobs"`
	Paragraphs []Paragraph       `json:"paragraphs"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
