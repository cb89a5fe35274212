package codec

import (
	"errors"
	"fmt"

	"github.com/mycelium-labs/mycelium/internal/integrations"
)

// ErrUnknownFormat is returned by For for formats without a codec.
var ErrUnknownFormat = errors.New("unknown config format")

// Codec renders and injects a server table in one config format.
type Codec interface {
	// Render returns a document holding only the managed subtree.
	Render(servers Servers) ([]byte, error)
	// Inject replaces the managed subtree of existing with servers and
	// returns the new document.
	Inject(existing []byte, servers Servers) ([]byte, error)
	// Remove deletes one server from existing. It reports false, and
	// returns existing unchanged, when the server is absent or the
	// document cannot be read.
	Remove(existing []byte, name string) ([]byte, bool, error)
}

// For returns the codec for an MCP descriptor.
func For(d integrations.MCPDescriptor) (Codec, error) {
	path := managedPath(d)
	switch d.Format {
	case integrations.FormatJSON:
		return jsonCodec{path: path}, nil
	case integrations.FormatJSONC:
		return jsoncCodec{path: path}, nil
	case integrations.FormatYAML:
		return yamlCodec{path: path}, nil
	case integrations.FormatTOML:
		return tomlCodec{path: path}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, d.Format)
	}
}

// ManagedPath returns the key segments of the subtree owned by mycelium.
func ManagedPath(d integrations.MCPDescriptor) []string {
	return managedPath(d)
}

func managedPath(d integrations.MCPDescriptor) []string {
	path := d.KeyPath()
	if d.Shape == integrations.ShapeEntries {
		path = append(path, "entries")
	}
	return path
}
