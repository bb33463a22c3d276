package types

// Document is a JSON document kept next to a resource version. The set of
// documents is closed: *Versions, *Log and *Chat.
type Document interface {
	FileName() string
}

var (
	_ Document = (*Versions)(nil)
	_ Document = (*Log)(nil)
	_ Document = (*Chat)(nil)
)
