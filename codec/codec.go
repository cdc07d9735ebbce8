// Package codec encodes the JSON documents stored next to snapshots, such as
// the snapshot manifest.
//
// Documents record the codec name, so a store written with one codec can
// still be read after the default changes.
package codec

// Codec encodes and decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used for new documents.
var Default Codec = GoJSON{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case JSON{}.Name():
		return JSON{}, true
	case GoJSON{}.Name():
		return GoJSON{}, true
	default:
		return nil, false
	}
}
