package domain

// Blob is an embedded file of the document container, content base64 encoded.
type Blob struct {
	Filename string `json:"filename"`
	Mimetype string `json:"mimetype"`
	Content  string `json:"content"`
}
